package review

import (
	"context"

	"gridworks/internal/model"
)

// Store is the transactional view the state machine works against. All
// methods observe the enclosing transaction; Get* methods return (nil, nil)
// when the row does not exist.
//
// GetSubmissionForUpdate must take an exclusive lock on the submission row so
// that of N concurrent reviews exactly one proceeds and the rest observe the
// post-transition state.
type Store interface {
	GetSubmissionForUpdate(ctx context.Context, id int64) (*model.Submission, error)
	InsertSubmission(ctx context.Context, sub *model.Submission) error
	UpdateSubmissionReview(ctx context.Context, sub *model.Submission) error
	DeleteSubmission(ctx context.Context, id int64) error

	GetProject(ctx context.Context, id int64) (*model.Project, error)
	UpdateProjectProgress(ctx context.Context, projectID int64, progress int, confidence string, status model.ProjectStatus) error

	GetMilestone(ctx context.Context, id int64) (*model.Milestone, error)
	ListMilestones(ctx context.Context, projectID int64) ([]model.Milestone, error)
	CompleteMilestone(ctx context.Context, m *model.Milestone) error

	ListSubmissionsByProject(ctx context.Context, projectID int64) ([]model.Submission, error)
	ListApprovalsByProject(ctx context.Context, projectID int64) ([]model.Approval, error)
	InsertApproval(ctx context.Context, a *model.Approval) error

	InsertAudit(ctx context.Context, e *model.AuditLogEntry) error

	ListActiveReviewers(ctx context.Context) ([]model.User, error)

	// EnqueueEvent stages an outbox event inside the transaction; it is
	// published to MQ only after commit.
	EnqueueEvent(ctx context.Context, routingKey string, aggregateID *int64, payload any) error
}

// TxRunner executes fn within a single unit of work. If fn returns an error
// every write staged through the Store is rolled back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
}
