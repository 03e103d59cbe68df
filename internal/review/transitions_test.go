package review

import (
	"testing"

	"gridworks/internal/model"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from model.SubmissionStatus
		to   model.SubmissionStatus
		want bool
	}{
		{model.SubmissionPending, model.SubmissionUnderReview, true},
		{model.SubmissionPending, model.SubmissionApproved, true},
		{model.SubmissionPending, model.SubmissionRejected, true},
		{model.SubmissionPending, model.SubmissionFlagged, true},
		{model.SubmissionPending, model.SubmissionNeedsClarity, true},
		{model.SubmissionUnderReview, model.SubmissionApproved, true},
		{model.SubmissionUnderReview, model.SubmissionPending, false},
		{model.SubmissionFlagged, model.SubmissionUnderReview, true},
		{model.SubmissionFlagged, model.SubmissionRejected, true},
		{model.SubmissionNeedsClarity, model.SubmissionPending, true},
		{model.SubmissionNeedsClarity, model.SubmissionApproved, false},
		{model.SubmissionNeedsClarity, model.SubmissionRejected, false},
	}

	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	all := []model.SubmissionStatus{
		model.SubmissionPending,
		model.SubmissionUnderReview,
		model.SubmissionApproved,
		model.SubmissionRejected,
		model.SubmissionFlagged,
		model.SubmissionNeedsClarity,
	}

	for _, from := range []model.SubmissionStatus{model.SubmissionApproved, model.SubmissionRejected} {
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("terminal status %s must not transition to %s", from, to)
			}
		}
	}
}
