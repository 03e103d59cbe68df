package review

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	mqcontracts "gridworks/contracts/mq"
	"gridworks/internal/apperr"
	"gridworks/internal/model"
	"gridworks/internal/progress"
	"gridworks/pkg/rbac"
)

const (
	testProjectID    = int64(1)
	testContractorID = int64(10)
)

func newTestService(st *memStore) *Service {
	return NewService(st, progress.DefaultPolicy(), zap.NewNop())
}

func seedStore() *memStore {
	st := newMemStore()
	st.nextID = 1000

	cid := testContractorID
	st.projects[testProjectID] = model.Project{
		ID:           testProjectID,
		Name:         "Ring road phase 2",
		Status:       model.ProjectInProgress,
		ContractorID: &cid,
	}
	for i := int64(1); i <= 4; i++ {
		st.milestones[i] = model.Milestone{
			ID:         i,
			ProjectID:  testProjectID,
			PhaseOrder: int(i),
			Status:     model.MilestonePending,
		}
	}
	st.reviewers = []model.User{
		{ID: 100, Role: rbac.RoleMEOfficer, Active: true},
		{ID: 101, Role: rbac.RoleMEOfficer, Active: true},
	}
	return st
}

func contractorActor() model.Actor {
	cid := testContractorID
	return model.Actor{UserID: 7, Role: rbac.RoleContractor, ContractorID: &cid}
}

func officerActor() model.Actor {
	return model.Actor{UserID: 100, Role: rbac.RoleMEOfficer}
}

func adminActor() model.Actor {
	return model.Actor{UserID: 1, Role: rbac.RoleAdmin}
}

// seedSubmission plants a PENDING submission directly, bypassing Submit, so
// review tests control their input exactly.
func seedSubmission(st *memStore, typ model.SubmissionType, milestoneID *int64) int64 {
	st.nextID++
	id := st.nextID
	now := time.Now().UTC()
	st.submissions[id] = model.Submission{
		ID:           id,
		ProjectID:    testProjectID,
		MilestoneID:  milestoneID,
		ContractorID: testContractorID,
		AuthorID:     7,
		Type:         typ,
		Status:       model.SubmissionPending,
		Title:        "progress claim",
		SubmittedAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return id
}

func TestSubmitCreatesPendingWithAuditAndFanout(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)

	sub, err := svc.Submit(context.Background(), contractorActor(), SubmitInput{
		ProjectID:   testProjectID,
		Type:        model.SubmissionProgress,
		Title:       "week 14 progress",
		Description: "earthworks at 40%",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Status != model.SubmissionPending {
		t.Errorf("status = %s, want PENDING", sub.Status)
	}
	if sub.ContractorID != testContractorID || sub.AuthorID != 7 {
		t.Errorf("ownership not stamped: contractor %d author %d", sub.ContractorID, sub.AuthorID)
	}

	if len(st.audits) != 1 || st.audits[0].Action != "submission.create" {
		t.Fatalf("audits = %+v, want one submission.create", st.audits)
	}
	if got := st.eventCount(mqcontracts.RoutingKeyNotificationCreated); got != len(st.reviewers) {
		t.Errorf("staged %d reviewer notifications, want %d", got, len(st.reviewers))
	}
}

func TestSubmitValidation(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	ctx := context.Background()
	bad := 120

	cases := []struct {
		name  string
		actor model.Actor
		in    SubmitInput
		check func(error) bool
	}{
		{"unknown type", contractorActor(),
			SubmitInput{ProjectID: testProjectID, Type: "BOGUS", Title: "x"}, apperr.IsValidation},
		{"empty title", contractorActor(),
			SubmitInput{ProjectID: testProjectID, Type: model.SubmissionProgress}, apperr.IsValidation},
		{"progress out of range", contractorActor(),
			SubmitInput{ProjectID: testProjectID, Type: model.SubmissionProgress, Title: "x", Progress: &bad}, apperr.IsValidation},
		{"milestone type without milestone", contractorActor(),
			SubmitInput{ProjectID: testProjectID, Type: model.SubmissionMilestone, Title: "x"}, apperr.IsValidation},
		{"missing project", contractorActor(),
			SubmitInput{ProjectID: 999, Type: model.SubmissionProgress, Title: "x"}, apperr.IsNotFound},
		{"viewer role", model.Actor{UserID: 5, Role: rbac.RoleViewer},
			SubmitInput{ProjectID: testProjectID, Type: model.SubmissionProgress, Title: "x"}, apperr.IsForbidden},
	}

	for _, c := range cases {
		if _, err := svc.Submit(ctx, c.actor, c.in); err == nil || !c.check(err) {
			t.Errorf("%s: err = %v, wrong kind", c.name, err)
		}
	}

	otherCID := int64(99)
	stranger := model.Actor{UserID: 8, Role: rbac.RoleContractor, ContractorID: &otherCID}
	if _, err := svc.Submit(ctx, stranger, SubmitInput{ProjectID: testProjectID, Type: model.SubmissionProgress, Title: "x"}); !apperr.IsForbidden(err) {
		t.Errorf("foreign contractor: err = %v, want Forbidden", err)
	}

	if len(st.submissions) != 0 || len(st.audits) != 0 || len(st.events) != 0 {
		t.Errorf("rejected submits left writes behind: %d subs, %d audits, %d events",
			len(st.submissions), len(st.audits), len(st.events))
	}
}

func TestReviewApproveCascadesMilestoneAndProgress(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	msID := int64(1)
	pct := 100
	subID := seedSubmission(st, model.SubmissionMilestone, &msID)
	s := st.submissions[subID]
	s.Progress = &pct
	st.submissions[subID] = s

	reviewed, err := svc.Review(context.Background(), officerActor(), subID, ReviewInput{
		Action:   model.ActionApproved,
		Comments: "verified on site",
	})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if reviewed.Status != model.SubmissionApproved {
		t.Errorf("status = %s, want APPROVED", reviewed.Status)
	}
	if reviewed.ReviewedBy == nil || *reviewed.ReviewedBy != 100 || reviewed.ReviewedAt == nil {
		t.Errorf("review stamp missing: %+v", reviewed)
	}

	if len(st.approvals) != 1 || st.approvals[0].Action != model.ActionApproved {
		t.Fatalf("approvals = %+v, want one APPROVED", st.approvals)
	}

	ms := st.milestones[msID]
	if ms.Status != model.MilestoneCompleted || ms.CompletedDate == nil || ms.Progress != 100 {
		t.Errorf("milestone not completed: %+v", ms)
	}

	// 1 完成且已核验，3 未完成 → milestone 25，physical 100，verified 100
	// round(25*0.70 + 100*0.20 + 100*0.10) = 48
	p := st.projects[testProjectID]
	if p.Progress != 48 {
		t.Errorf("project progress = %d, want 48", p.Progress)
	}
	if p.ProgressConfidence == "" {
		t.Error("confidence not written")
	}

	if got := st.eventCount(mqcontracts.RoutingKeyProjectUpdated); got != 1 {
		t.Errorf("project.updated events = %d, want 1", got)
	}
	if got := st.eventCount(mqcontracts.RoutingKeyNotificationCreated); got != 1 {
		t.Errorf("notification.created events = %d, want 1", got)
	}
	if len(st.audits) != 1 || st.audits[0].Action != "submission.review" {
		t.Fatalf("audits = %+v, want one submission.review", st.audits)
	}
	if len(st.audits[0].Before) == 0 || len(st.audits[0].After) == 0 {
		t.Error("audit entry missing before/after snapshots")
	}
}

func TestReviewTerminalIsConflictWithNoSideEffects(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	subID := seedSubmission(st, model.SubmissionProgress, nil)
	ctx := context.Background()

	if _, err := svc.Review(ctx, officerActor(), subID, ReviewInput{Action: model.ActionRejected}); err != nil {
		t.Fatalf("first review: %v", err)
	}

	approvals, audits, events := len(st.approvals), len(st.audits), len(st.events)

	_, err := svc.Review(ctx, officerActor(), subID, ReviewInput{Action: model.ActionApproved})
	if !apperr.IsConflict(err) {
		t.Fatalf("err = %v, want Conflict", err)
	}
	if st.submissions[subID].Status != model.SubmissionRejected {
		t.Errorf("status changed to %s after conflict", st.submissions[subID].Status)
	}
	if len(st.approvals) != approvals || len(st.audits) != audits || len(st.events) != events {
		t.Error("conflicting review left writes behind")
	}
}

func TestStartReviewIsNotADecision(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	subID := seedSubmission(st, model.SubmissionProgress, nil)
	ctx := context.Background()

	sub, err := svc.Review(ctx, officerActor(), subID, ReviewInput{Action: model.ActionStartReview})
	if err != nil {
		t.Fatalf("start review: %v", err)
	}
	if sub.Status != model.SubmissionUnderReview {
		t.Errorf("status = %s, want UNDER_REVIEW", sub.Status)
	}
	if len(st.approvals) != 0 {
		t.Errorf("START_REVIEW appended an approval record: %+v", st.approvals)
	}
	if sub.ReviewedAt != nil || sub.ReviewedBy != nil {
		t.Error("START_REVIEW stamped a decision")
	}
	if got := st.eventCount(mqcontracts.RoutingKeyNotificationCreated); got != 0 {
		t.Errorf("START_REVIEW staged %d notifications, want 0", got)
	}

	if _, err := svc.Review(ctx, officerActor(), subID, ReviewInput{Action: model.ActionApproved}); err != nil {
		t.Fatalf("approve after start: %v", err)
	}
	if len(st.approvals) != 1 {
		t.Errorf("approvals = %d, want 1", len(st.approvals))
	}
}

func TestClarificationCycle(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	subID := seedSubmission(st, model.SubmissionProgress, nil)
	ctx := context.Background()

	if _, err := svc.Review(ctx, officerActor(), subID, ReviewInput{Action: model.ActionRequestClarification, Comments: "photos missing"}); err != nil {
		t.Fatalf("request clarification: %v", err)
	}
	if st.submissions[subID].Status != model.SubmissionNeedsClarity {
		t.Fatalf("status = %s, want REQUIRES_CLARIFICATION", st.submissions[subID].Status)
	}

	// 等待澄清的提交不能直接审批，只能由承包商重新提交
	if _, err := svc.Review(ctx, officerActor(), subID, ReviewInput{Action: model.ActionApproved}); !apperr.IsConflict(err) {
		t.Fatalf("approve while awaiting clarification: err = %v, want Conflict", err)
	}

	sub, err := svc.Resubmit(ctx, contractorActor(), subID, "photos attached")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if sub.Status != model.SubmissionPending {
		t.Errorf("status = %s, want PENDING", sub.Status)
	}
	if sub.Description != "photos attached" {
		t.Errorf("description = %q, not amended", sub.Description)
	}

	if _, err := svc.Resubmit(ctx, contractorActor(), subID, ""); !apperr.IsConflict(err) {
		t.Errorf("second resubmit: err = %v, want Conflict", err)
	}

	if _, err := svc.Review(ctx, officerActor(), subID, ReviewInput{Action: model.ActionApproved}); err != nil {
		t.Fatalf("approve after resubmit: %v", err)
	}
}

func TestResubmitOwnership(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	subID := seedSubmission(st, model.SubmissionProgress, nil)
	ctx := context.Background()

	if _, err := svc.Review(ctx, officerActor(), subID, ReviewInput{Action: model.ActionRequestClarification}); err != nil {
		t.Fatalf("request clarification: %v", err)
	}

	otherCID := int64(99)
	stranger := model.Actor{UserID: 8, Role: rbac.RoleContractor, ContractorID: &otherCID}
	if _, err := svc.Resubmit(ctx, stranger, subID, "mine now"); !apperr.IsForbidden(err) {
		t.Errorf("err = %v, want Forbidden", err)
	}
}

func TestWithdraw(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	subID := seedSubmission(st, model.SubmissionProgress, nil)
	ctx := context.Background()

	if err := svc.Withdraw(ctx, contractorActor(), subID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, ok := st.submissions[subID]; ok {
		t.Error("submission still present after withdraw")
	}
	if len(st.audits) != 1 || st.audits[0].Action != "submission.withdraw" {
		t.Fatalf("audits = %+v, want one submission.withdraw", st.audits)
	}

	// 已有审批动作的提交不可撤回
	reviewedID := seedSubmission(st, model.SubmissionProgress, nil)
	if _, err := svc.Review(ctx, officerActor(), reviewedID, ReviewInput{Action: model.ActionFlagged}); err != nil {
		t.Fatalf("flag: %v", err)
	}
	if err := svc.Withdraw(ctx, contractorActor(), reviewedID); !apperr.IsConflict(err) {
		t.Errorf("withdraw flagged: err = %v, want Conflict", err)
	}
}

func TestOverrideProgress(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	ctx := context.Background()

	if err := svc.OverrideProgress(ctx, adminActor(), testProjectID, OverrideInput{Progress: 42, Reason: "field audit"}); err != nil {
		t.Fatalf("override: %v", err)
	}
	if st.projects[testProjectID].Progress != 42 {
		t.Errorf("progress = %d, want 42", st.projects[testProjectID].Progress)
	}
	if len(st.audits) != 1 || st.audits[0].Action != "project.override_progress" {
		t.Fatalf("audits = %+v, want one project.override_progress", st.audits)
	}
	if got := st.eventCount(mqcontracts.RoutingKeyProjectUpdated); got != 1 {
		t.Errorf("project.updated events = %d, want 1", got)
	}

	if err := svc.OverrideProgress(ctx, adminActor(), testProjectID, OverrideInput{Progress: 42}); !apperr.IsValidation(err) {
		t.Errorf("missing reason: err = %v, want Validation", err)
	}
	if err := svc.OverrideProgress(ctx, officerActor(), testProjectID, OverrideInput{Progress: 42, Reason: "x"}); !apperr.IsForbidden(err) {
		t.Errorf("officer override: err = %v, want Forbidden", err)
	}
	if err := svc.OverrideProgress(ctx, adminActor(), 999, OverrideInput{Progress: 42, Reason: "x"}); !apperr.IsNotFound(err) {
		t.Errorf("missing project: err = %v, want NotFound", err)
	}
}

func TestConcurrentReviewSingleWinner(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	subID := seedSubmission(st, model.SubmissionProgress, nil)

	const reviewers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0

	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := model.Actor{UserID: int64(200 + n), Role: rbac.RoleMEOfficer}
			_, err := svc.Review(context.Background(), actor, subID, ReviewInput{Action: model.ActionApproved})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperr.IsConflict(err):
				conflicts++
			default:
				t.Errorf("reviewer %d: unexpected error %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || conflicts != reviewers-1 {
		t.Errorf("wins = %d conflicts = %d, want 1 and %d", wins, conflicts, reviewers-1)
	}
	if len(st.approvals) != 1 {
		t.Errorf("approvals = %d, want exactly 1", len(st.approvals))
	}
}

func TestReviewRollsBackWhenLateWriteFails(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	msID := int64(1)
	subID := seedSubmission(st, model.SubmissionMilestone, &msID)
	st.failOn = "InsertAudit"

	_, err := svc.Review(context.Background(), officerActor(), subID, ReviewInput{Action: model.ActionApproved})
	if err == nil {
		t.Fatal("expected forced failure")
	}

	if st.submissions[subID].Status != model.SubmissionPending {
		t.Errorf("status = %s, want PENDING after rollback", st.submissions[subID].Status)
	}
	if st.milestones[msID].Status != model.MilestonePending {
		t.Errorf("milestone status = %s, want PENDING after rollback", st.milestones[msID].Status)
	}
	if len(st.approvals) != 0 || len(st.events) != 0 {
		t.Errorf("rollback left %d approvals and %d events", len(st.approvals), len(st.events))
	}
	if st.projects[testProjectID].Progress != 0 {
		t.Errorf("project progress = %d, want 0 after rollback", st.projects[testProjectID].Progress)
	}
}

func TestReviewUnknownAction(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	subID := seedSubmission(st, model.SubmissionProgress, nil)

	if _, err := svc.Review(context.Background(), officerActor(), subID, ReviewInput{Action: "ESCALATE"}); !apperr.IsValidation(err) {
		t.Errorf("err = %v, want Validation", err)
	}
	if _, err := svc.Review(context.Background(), officerActor(), 999, ReviewInput{Action: model.ActionApproved}); !apperr.IsNotFound(err) {
		t.Errorf("missing submission: err = %v, want NotFound", err)
	}
	if _, err := svc.Review(context.Background(), contractorActor(), subID, ReviewInput{Action: model.ActionApproved}); !apperr.IsForbidden(err) {
		t.Errorf("contractor review: err = %v, want Forbidden", err)
	}
}

func TestRecomputeDerivedStatus(t *testing.T) {
	// 拒绝也是审核结论，会触发重算：NOT_STARTED 项目从此进入 IN_PROGRESS
	st := seedStore()
	p := st.projects[testProjectID]
	p.Status = model.ProjectNotStarted
	st.projects[testProjectID] = p
	svc := newTestService(st)

	subID := seedSubmission(st, model.SubmissionProgress, nil)
	if _, err := svc.Review(context.Background(), officerActor(), subID, ReviewInput{Action: model.ActionRejected}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := st.projects[testProjectID]; got.Progress != 0 || got.Status != model.ProjectInProgress {
		t.Errorf("after rejection: progress %d status %s, want 0 IN_PROGRESS", got.Progress, got.Status)
	}

	// 派生状态只有两档：100 → COMPLETED，其余一律 IN_PROGRESS
	st = newMemStore()
	st.nextID = 1000
	cid := testContractorID
	st.projects[testProjectID] = model.Project{
		ID:           testProjectID,
		Name:         "Substation upgrade",
		Status:       model.ProjectInProgress,
		ContractorID: &cid,
	}
	const total = 10
	for i := int64(1); i <= total; i++ {
		st.milestones[i] = model.Milestone{
			ID:         i,
			ProjectID:  testProjectID,
			PhaseOrder: int(i),
			Status:     model.MilestonePending,
		}
	}
	svc = newTestService(st)
	pct := 100

	approveMilestone := func(msID int64) {
		t.Helper()
		id := seedSubmission(st, model.SubmissionMilestone, &msID)
		s := st.submissions[id]
		s.Progress = &pct
		st.submissions[id] = s
		if _, err := svc.Review(context.Background(), officerActor(), id, ReviewInput{Action: model.ActionApproved}); err != nil {
			t.Fatalf("approve milestone %d: %v", msID, err)
		}
	}

	for i := int64(1); i < total; i++ {
		approveMilestone(i)
	}
	// 9/10 完成且核验 → round(90*0.70 + 100*0.20 + 100*0.10) = 93
	if got := st.projects[testProjectID]; got.Progress != 93 || got.Status != model.ProjectInProgress {
		t.Errorf("at 9 of 10: progress %d status %s, want 93 IN_PROGRESS", got.Progress, got.Status)
	}

	approveMilestone(total)
	if got := st.projects[testProjectID]; got.Progress != 100 || got.Status != model.ProjectCompleted {
		t.Errorf("at 10 of 10: progress %d status %s, want 100 COMPLETED", got.Progress, got.Status)
	}
}

func TestRecomputePreservesFrozenStatus(t *testing.T) {
	st := seedStore()
	p := st.projects[testProjectID]
	p.Status = model.ProjectOnHold
	st.projects[testProjectID] = p
	svc := newTestService(st)

	msID := int64(1)
	pct := 100
	subID := seedSubmission(st, model.SubmissionMilestone, &msID)
	s := st.submissions[subID]
	s.Progress = &pct
	st.submissions[subID] = s

	if _, err := svc.Review(context.Background(), officerActor(), subID, ReviewInput{Action: model.ActionApproved}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got := st.projects[testProjectID]
	if got.Status != model.ProjectOnHold {
		t.Errorf("status = %s, want ON_HOLD preserved", got.Status)
	}
	if got.Progress != 48 {
		t.Errorf("progress = %d, want 48", got.Progress)
	}
}

func TestSnapshotComputesWithoutWriting(t *testing.T) {
	st := seedStore()
	svc := newTestService(st)
	msID := int64(1)
	subID := seedSubmission(st, model.SubmissionMilestone, &msID)
	ctx := context.Background()

	if _, err := svc.Review(ctx, officerActor(), subID, ReviewInput{Action: model.ActionApproved}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	audits, events := len(st.audits), len(st.events)

	res, err := svc.Snapshot(ctx, testProjectID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.OverallProgress != st.projects[testProjectID].Progress {
		t.Errorf("snapshot overall = %d, stored = %d", res.OverallProgress, st.projects[testProjectID].Progress)
	}
	if len(st.audits) != audits || len(st.events) != events {
		t.Error("snapshot wrote to the store")
	}

	if _, err := svc.Snapshot(ctx, 999); !apperr.IsNotFound(err) {
		t.Errorf("missing project: err = %v, want NotFound", err)
	}
}
