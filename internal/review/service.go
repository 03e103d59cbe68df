// Package review implements the submission review workflow: intake of
// contractor submissions, the reviewer state machine, and the transactional
// cascade (approval record, milestone completion, progress recomputation,
// audit, outbox events) that a decision triggers.
package review

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	mqcontracts "gridworks/contracts/mq"
	"gridworks/internal/apperr"
	"gridworks/internal/model"
	"gridworks/internal/notify"
	"gridworks/internal/progress"
	"gridworks/pkg/metrics"
	"gridworks/pkg/rbac"
)

type Service struct {
	tx     TxRunner
	policy progress.Policy
	logger *zap.Logger
}

func NewService(tx TxRunner, policy progress.Policy, logger *zap.Logger) *Service {
	return &Service{tx: tx, policy: policy, logger: logger}
}

// SubmitInput 承包商提交的创建参数
type SubmitInput struct {
	ProjectID        int64
	MilestoneID      *int64
	Type             model.SubmissionType
	Title            string
	Description      string
	Progress         *int
	QualityScore     *int
	EstimatedValue   *float64
	Priority         string
	SafetyCompliance *bool
	WeatherImpact    string
	DueDate          *time.Time
}

// ReviewInput 审批动作参数
type ReviewInput struct {
	Action   model.ReviewAction
	Comments string
}

// OverrideInput 管理员进度覆盖参数
type OverrideInput struct {
	Progress int
	Reason   string
}

// Submit creates a PENDING submission for the actor's contractor and fans a
// notification out to every active reviewer through the outbox.
func (s *Service) Submit(ctx context.Context, actor model.Actor, in SubmitInput) (*model.Submission, error) {
	if err := rbac.CheckCapability(actor.Role, rbac.CapabilitySubmitClaim); err != nil {
		return nil, apperr.Forbidden("role %s cannot create submissions", actor.Role)
	}
	if actor.ContractorID == nil {
		return nil, apperr.Forbidden("user %d has no contractor binding", actor.UserID)
	}
	if !model.ValidSubmissionType(in.Type) {
		return nil, apperr.Validation("unknown submission type %q", in.Type)
	}
	if in.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.Progress != nil && (*in.Progress < 0 || *in.Progress > 100) {
		return nil, apperr.Validation("progress %d out of range [0,100]", *in.Progress)
	}
	if in.Type == model.SubmissionMilestone && in.MilestoneID == nil {
		return nil, apperr.Validation("milestone submissions must reference a milestone")
	}

	var created *model.Submission
	err := s.tx.WithinTx(ctx, func(store Store) error {
		project, err := store.GetProject(ctx, in.ProjectID)
		if err != nil {
			return err
		}
		if project == nil {
			return apperr.NotFound("project %d not found", in.ProjectID)
		}
		if project.ContractorID == nil || *project.ContractorID != *actor.ContractorID {
			return apperr.Forbidden("project %d is not assigned to contractor %d", in.ProjectID, *actor.ContractorID)
		}
		if in.MilestoneID != nil {
			m, err := store.GetMilestone(ctx, *in.MilestoneID)
			if err != nil {
				return err
			}
			if m == nil || m.ProjectID != in.ProjectID {
				return apperr.NotFound("milestone %d not found on project %d", *in.MilestoneID, in.ProjectID)
			}
		}

		now := time.Now().UTC()
		sub := &model.Submission{
			ProjectID:        in.ProjectID,
			MilestoneID:      in.MilestoneID,
			ContractorID:     *actor.ContractorID,
			AuthorID:         actor.UserID,
			Type:             in.Type,
			Status:           model.SubmissionPending,
			Title:            in.Title,
			Description:      in.Description,
			Progress:         in.Progress,
			QualityScore:     in.QualityScore,
			EstimatedValue:   in.EstimatedValue,
			Priority:         in.Priority,
			SafetyCompliance: in.SafetyCompliance,
			WeatherImpact:    in.WeatherImpact,
			DueDate:          in.DueDate,
			SubmittedAt:      now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := store.InsertSubmission(ctx, sub); err != nil {
			return err
		}

		after, _ := json.Marshal(sub)
		if err := store.InsertAudit(ctx, &model.AuditLogEntry{
			ActorID:    actor.UserID,
			Action:     "submission.create",
			EntityType: "submission",
			EntityID:   sub.ID,
			After:      after,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		reviewers, err := store.ListActiveReviewers(ctx)
		if err != nil {
			return err
		}
		for _, r := range reviewers {
			payload := notify.NewSubmission(r.ID, sub)
			if err := store.EnqueueEvent(ctx, mqcontracts.RoutingKeyNotificationCreated, &sub.ID, payload); err != nil {
				return err
			}
		}

		created = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrementSubmissionCreated(string(created.Type))
	s.logger.Info("submission created",
		zap.Int64("submission_id", created.ID),
		zap.Int64("project_id", created.ProjectID),
		zap.String("type", string(created.Type)))
	return created, nil
}

// Review applies a reviewer action to a submission. The whole cascade runs in
// one transaction behind a row lock: when reviewers race, exactly one action
// lands and the rest surface a Conflict.
func (s *Service) Review(ctx context.Context, actor model.Actor, submissionID int64, in ReviewInput) (*model.Submission, error) {
	if err := rbac.CheckCapability(actor.Role, rbac.CapabilityReviewSubmission); err != nil {
		return nil, apperr.Forbidden("role %s cannot review submissions", actor.Role)
	}
	target, ok := model.ActionStatus(in.Action)
	if !ok {
		return nil, apperr.Validation("unknown review action %q", in.Action)
	}

	var reviewed *model.Submission
	err := s.tx.WithinTx(ctx, func(store Store) error {
		sub, err := store.GetSubmissionForUpdate(ctx, submissionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperr.NotFound("submission %d not found", submissionID)
		}
		if sub.Status.Terminal() {
			return apperr.Conflict("submission %d is already %s", submissionID, sub.Status)
		}
		if !CanTransition(sub.Status, target) {
			return apperr.Conflict("submission %d cannot move from %s to %s", submissionID, sub.Status, target)
		}

		before, _ := json.Marshal(sub)
		now := time.Now().UTC()

		if in.Action.Decision() {
			if err := store.InsertApproval(ctx, &model.Approval{
				SubmissionID: sub.ID,
				ReviewerID:   actor.UserID,
				Action:       in.Action,
				Comments:     in.Comments,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
			reviewerID := actor.UserID
			sub.ReviewedAt = &now
			sub.ReviewedBy = &reviewerID
			sub.ReviewComments = in.Comments
		}
		sub.Status = target
		sub.UpdatedAt = now
		if err := store.UpdateSubmissionReview(ctx, sub); err != nil {
			return err
		}

		// 批准里程碑类提交会级联完成对应里程碑
		if in.Action == model.ActionApproved && sub.Type == model.SubmissionMilestone && sub.MilestoneID != nil {
			if err := s.completeMilestone(ctx, store, sub, now); err != nil {
				return err
			}
		}

		if in.Action.Decision() {
			if err := s.recomputeProject(ctx, store, sub.ProjectID, now); err != nil {
				return err
			}
		}

		after, _ := json.Marshal(sub)
		if err := store.InsertAudit(ctx, &model.AuditLogEntry{
			ActorID:    actor.UserID,
			Action:     "submission.review",
			EntityType: "submission",
			EntityID:   sub.ID,
			Before:     before,
			After:      after,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		if in.Action.Decision() {
			payload := notify.SubmissionReviewed(sub, in.Action)
			if err := store.EnqueueEvent(ctx, mqcontracts.RoutingKeyNotificationCreated, &sub.ID, payload); err != nil {
				return err
			}
		}

		reviewed = sub
		return nil
	})
	if err != nil {
		if apperr.IsConflict(err) {
			metrics.IncrementReviewConflict()
		}
		return nil, err
	}

	metrics.IncrementReview(string(in.Action))
	s.logger.Info("submission reviewed",
		zap.Int64("submission_id", reviewed.ID),
		zap.String("action", string(in.Action)),
		zap.String("status", string(reviewed.Status)),
		zap.Int64("reviewer_id", actor.UserID))
	return reviewed, nil
}

func (s *Service) completeMilestone(ctx context.Context, store Store, sub *model.Submission, now time.Time) error {
	m, err := store.GetMilestone(ctx, *sub.MilestoneID)
	if err != nil {
		return err
	}
	if m == nil || m.Status == model.MilestoneCompleted {
		return nil
	}
	m.Status = model.MilestoneCompleted
	m.CompletedDate = &now
	if sub.Progress != nil {
		m.Progress = *sub.Progress
	} else {
		m.Progress = 100
	}
	m.UpdatedAt = now
	return store.CompleteMilestone(ctx, m)
}

// recomputeProject rebuilds the project's progress from full history inside
// the review transaction so readers never observe a half-applied decision.
func (s *Service) recomputeProject(ctx context.Context, store Store, projectID int64, now time.Time) error {
	start := time.Now()

	project, err := store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return apperr.NotFound("project %d not found", projectID)
	}

	milestones, err := store.ListMilestones(ctx, projectID)
	if err != nil {
		return err
	}
	submissions, err := store.ListSubmissionsByProject(ctx, projectID)
	if err != nil {
		return err
	}
	approvals, err := store.ListApprovalsByProject(ctx, projectID)
	if err != nil {
		return err
	}

	res := progress.Compute(s.policy, milestones, submissions, approvals, now)

	// DELAYED / ON_HOLD / CANCELLED 状态由人工设置，重算不得覆盖
	status := project.Status
	if !status.Frozen() {
		if res.OverallProgress >= 100 {
			status = model.ProjectCompleted
		} else {
			status = model.ProjectInProgress
		}
	}

	if err := store.UpdateProjectProgress(ctx, projectID, res.OverallProgress, string(res.Confidence), status); err != nil {
		return err
	}
	metrics.ObserveProgressRecompute(time.Since(start))

	return store.EnqueueEvent(ctx, mqcontracts.RoutingKeyProjectUpdated, &projectID, mqcontracts.ProjectUpdatedPayload{
		ProjectID:  projectID,
		Progress:   res.OverallProgress,
		Confidence: string(res.Confidence),
		Status:     string(status),
		UpdatedAt:  now,
	})
}

// Resubmit moves a REQUIRES_CLARIFICATION submission back to PENDING with the
// contractor's amended details. This is the only permitted lifecycle cycle.
func (s *Service) Resubmit(ctx context.Context, actor model.Actor, submissionID int64, description string) (*model.Submission, error) {
	if err := rbac.CheckCapability(actor.Role, rbac.CapabilitySubmitClaim); err != nil {
		return nil, apperr.Forbidden("role %s cannot resubmit", actor.Role)
	}

	var resubmitted *model.Submission
	err := s.tx.WithinTx(ctx, func(store Store) error {
		sub, err := store.GetSubmissionForUpdate(ctx, submissionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperr.NotFound("submission %d not found", submissionID)
		}
		if actor.ContractorID == nil || sub.ContractorID != *actor.ContractorID {
			return apperr.Forbidden("submission %d does not belong to contractor", submissionID)
		}
		if sub.Status != model.SubmissionNeedsClarity {
			return apperr.Conflict("submission %d is %s, only REQUIRES_CLARIFICATION can be resubmitted", submissionID, sub.Status)
		}

		before, _ := json.Marshal(sub)
		now := time.Now().UTC()
		sub.Status = model.SubmissionPending
		if description != "" {
			sub.Description = description
		}
		sub.SubmittedAt = now
		sub.UpdatedAt = now
		if err := store.UpdateSubmissionReview(ctx, sub); err != nil {
			return err
		}

		after, _ := json.Marshal(sub)
		if err := store.InsertAudit(ctx, &model.AuditLogEntry{
			ActorID:    actor.UserID,
			Action:     "submission.resubmit",
			EntityType: "submission",
			EntityID:   sub.ID,
			Before:     before,
			After:      after,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		reviewers, err := store.ListActiveReviewers(ctx)
		if err != nil {
			return err
		}
		for _, r := range reviewers {
			payload := notify.NewSubmission(r.ID, sub)
			if err := store.EnqueueEvent(ctx, mqcontracts.RoutingKeyNotificationCreated, &sub.ID, payload); err != nil {
				return err
			}
		}

		resubmitted = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("submission resubmitted", zap.Int64("submission_id", resubmitted.ID))
	return resubmitted, nil
}

// Withdraw deletes a submission that nobody has acted on yet. Anything past
// PENDING already has review history and must stay.
func (s *Service) Withdraw(ctx context.Context, actor model.Actor, submissionID int64) error {
	if err := rbac.CheckCapability(actor.Role, rbac.CapabilitySubmitClaim); err != nil {
		return apperr.Forbidden("role %s cannot withdraw submissions", actor.Role)
	}

	return s.tx.WithinTx(ctx, func(store Store) error {
		sub, err := store.GetSubmissionForUpdate(ctx, submissionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperr.NotFound("submission %d not found", submissionID)
		}
		if actor.ContractorID == nil || sub.ContractorID != *actor.ContractorID {
			return apperr.Forbidden("submission %d does not belong to contractor", submissionID)
		}
		if sub.Status != model.SubmissionPending {
			return apperr.Conflict("submission %d is %s, only PENDING can be withdrawn", submissionID, sub.Status)
		}

		before, _ := json.Marshal(sub)
		if err := store.InsertAudit(ctx, &model.AuditLogEntry{
			ActorID:    actor.UserID,
			Action:     "submission.withdraw",
			EntityType: "submission",
			EntityID:   sub.ID,
			Before:     before,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			return err
		}
		return store.DeleteSubmission(ctx, sub.ID)
	})
}

// OverrideProgress lets an admin pin a project's progress value outside the
// calculator, with the reason captured in the audit trail.
func (s *Service) OverrideProgress(ctx context.Context, actor model.Actor, projectID int64, in OverrideInput) error {
	if err := rbac.CheckCapability(actor.Role, rbac.CapabilityOverrideProgress); err != nil {
		return apperr.Forbidden("role %s cannot override project progress", actor.Role)
	}
	if in.Progress < 0 || in.Progress > 100 {
		return apperr.Validation("progress %d out of range [0,100]", in.Progress)
	}
	if in.Reason == "" {
		return apperr.Validation("override reason is required")
	}

	return s.tx.WithinTx(ctx, func(store Store) error {
		project, err := store.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if project == nil {
			return apperr.NotFound("project %d not found", projectID)
		}

		before, _ := json.Marshal(project)
		now := time.Now().UTC()
		if err := store.UpdateProjectProgress(ctx, projectID, in.Progress, project.ProgressConfidence, project.Status); err != nil {
			return err
		}

		after, _ := json.Marshal(map[string]any{
			"progress": in.Progress,
			"reason":   in.Reason,
		})
		if err := store.InsertAudit(ctx, &model.AuditLogEntry{
			ActorID:    actor.UserID,
			Action:     "project.override_progress",
			EntityType: "project",
			EntityID:   projectID,
			Before:     before,
			After:      after,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		return store.EnqueueEvent(ctx, mqcontracts.RoutingKeyProjectUpdated, &projectID, mqcontracts.ProjectUpdatedPayload{
			ProjectID:  projectID,
			Progress:   in.Progress,
			Confidence: project.ProgressConfidence,
			Status:     string(project.Status),
			UpdatedAt:  now,
		})
	})
}

// Snapshot recomputes the progress breakdown for display without persisting
// anything.
func (s *Service) Snapshot(ctx context.Context, projectID int64) (*progress.Result, error) {
	var res *progress.Result
	err := s.tx.WithinTx(ctx, func(store Store) error {
		project, err := store.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if project == nil {
			return apperr.NotFound("project %d not found", projectID)
		}
		milestones, err := store.ListMilestones(ctx, projectID)
		if err != nil {
			return err
		}
		submissions, err := store.ListSubmissionsByProject(ctx, projectID)
		if err != nil {
			return err
		}
		approvals, err := store.ListApprovalsByProject(ctx, projectID)
		if err != nil {
			return err
		}
		r := progress.Compute(s.policy, milestones, submissions, approvals, time.Now().UTC())
		res = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
