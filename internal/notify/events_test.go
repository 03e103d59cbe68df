package notify

import (
	"testing"
	"time"

	"gridworks/internal/model"
)

func TestDedupKeysAreStableAndDistinct(t *testing.T) {
	sub := &model.Submission{
		ID:          7,
		ProjectID:   1,
		AuthorID:    42,
		Type:        model.SubmissionProgress,
		Status:      model.SubmissionApproved,
		Title:       "week 3",
		SubmittedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}

	a := SubmissionReviewed(sub, model.ActionApproved)
	b := SubmissionReviewed(sub, model.ActionApproved)
	if a.DedupKey == "" || a.DedupKey != b.DedupKey {
		t.Errorf("dedup key not stable: %q vs %q", a.DedupKey, b.DedupKey)
	}

	c := SubmissionReviewed(sub, model.ActionRejected)
	if c.DedupKey == a.DedupKey {
		t.Error("different actions share a dedup key")
	}

	// 同一提交发给不同审核员的通知各自独立去重
	r1 := NewSubmission(100, sub)
	r2 := NewSubmission(101, sub)
	if r1.DedupKey == r2.DedupKey {
		t.Error("different recipients share a dedup key")
	}
	if r1.UserID != 100 || r2.UserID != 101 {
		t.Errorf("recipient ids wrong: %d, %d", r1.UserID, r2.UserID)
	}
}
