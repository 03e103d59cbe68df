package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"gridworks/internal/model"
	"gridworks/pkg/outbox"
)

const submissionColumns = `id, project_id, milestone_id, contractor_id, author_id, type, status,
	title, description, progress, quality_score, estimated_value, priority,
	safety_compliance, weather_impact, due_date, submitted_at, reviewed_at,
	reviewed_by, review_comments, created_at, updated_at`

// pgxStore 是 review.Store 的事务内实现，所有读写都走同一个 tx
type pgxStore struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	var s model.Submission
	err := row.Scan(
		&s.ID, &s.ProjectID, &s.MilestoneID, &s.ContractorID, &s.AuthorID, &s.Type, &s.Status,
		&s.Title, &s.Description, &s.Progress, &s.QualityScore, &s.EstimatedValue, &s.Priority,
		&s.SafetyCompliance, &s.WeatherImpact, &s.DueDate, &s.SubmittedAt, &s.ReviewedAt,
		&s.ReviewedBy, &s.ReviewComments, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSubmissionForUpdate 行级锁：并发审批时只有一个事务能继续
func (s *pgxStore) GetSubmissionForUpdate(ctx context.Context, id int64) (*model.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1 FOR UPDATE`, submissionColumns)

	sub, err := scanSubmission(s.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock submission: %w", err)
	}
	return sub, nil
}

func (s *pgxStore) InsertSubmission(ctx context.Context, sub *model.Submission) error {
	query := `
		INSERT INTO submissions (project_id, milestone_id, contractor_id, author_id, type, status,
			title, description, progress, quality_score, estimated_value, priority,
			safety_compliance, weather_impact, due_date, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`
	err := s.tx.QueryRow(ctx, query,
		sub.ProjectID, sub.MilestoneID, sub.ContractorID, sub.AuthorID, sub.Type, sub.Status,
		sub.Title, sub.Description, sub.Progress, sub.QualityScore, sub.EstimatedValue, sub.Priority,
		sub.SafetyCompliance, sub.WeatherImpact, sub.DueDate, sub.SubmittedAt, sub.CreatedAt, sub.UpdatedAt,
	).Scan(&sub.ID)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

func (s *pgxStore) UpdateSubmissionReview(ctx context.Context, sub *model.Submission) error {
	query := `
		UPDATE submissions
		SET status = $1, description = $2, submitted_at = $3, reviewed_at = $4,
		    reviewed_by = $5, review_comments = $6, updated_at = $7
		WHERE id = $8
	`
	tag, err := s.tx.Exec(ctx, query,
		sub.Status, sub.Description, sub.SubmittedAt, sub.ReviewedAt,
		sub.ReviewedBy, sub.ReviewComments, sub.UpdatedAt, sub.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission %d vanished during update", sub.ID)
	}
	return nil
}

func (s *pgxStore) DeleteSubmission(ctx context.Context, id int64) error {
	_, err := s.tx.Exec(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	return nil
}

func (s *pgxStore) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	query := `
		SELECT id, name, category, status, progress, progress_confidence,
		       budget_total, budget_spent, contractor_id, created_at, updated_at
		FROM projects WHERE id = $1
	`
	var p model.Project
	err := s.tx.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Category, &p.Status, &p.Progress, &p.ProgressConfidence,
		&p.BudgetTotal, &p.BudgetSpent, &p.ContractorID, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

func (s *pgxStore) UpdateProjectProgress(ctx context.Context, projectID int64, progress int, confidence string, status model.ProjectStatus) error {
	query := `
		UPDATE projects
		SET progress = $1, progress_confidence = $2, status = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := s.tx.Exec(ctx, query, progress, confidence, status, projectID)
	if err != nil {
		return fmt.Errorf("failed to update project progress: %w", err)
	}
	return nil
}

const milestoneColumns = `id, project_id, title, description, phase_order, weight, status,
	progress, budget_share, target_date, completed_date, created_at, updated_at`

func scanMilestone(row pgx.Row) (*model.Milestone, error) {
	var m model.Milestone
	err := row.Scan(
		&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.PhaseOrder, &m.Weight, &m.Status,
		&m.Progress, &m.BudgetShare, &m.TargetDate, &m.CompletedDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *pgxStore) GetMilestone(ctx context.Context, id int64) (*model.Milestone, error) {
	query := fmt.Sprintf(`SELECT %s FROM milestones WHERE id = $1`, milestoneColumns)

	m, err := scanMilestone(s.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}
	return m, nil
}

func (s *pgxStore) ListMilestones(ctx context.Context, projectID int64) ([]model.Milestone, error) {
	query := fmt.Sprintf(`SELECT %s FROM milestones WHERE project_id = $1 ORDER BY phase_order`, milestoneColumns)

	rows, err := s.tx.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	var out []model.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *pgxStore) CompleteMilestone(ctx context.Context, m *model.Milestone) error {
	query := `
		UPDATE milestones
		SET status = $1, progress = $2, completed_date = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := s.tx.Exec(ctx, query, m.Status, m.Progress, m.CompletedDate, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("failed to complete milestone: %w", err)
	}
	return nil
}

func (s *pgxStore) ListSubmissionsByProject(ctx context.Context, projectID int64) ([]model.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE project_id = $1 ORDER BY submitted_at`, submissionColumns)

	rows, err := s.tx.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func (s *pgxStore) ListApprovalsByProject(ctx context.Context, projectID int64) ([]model.Approval, error) {
	query := `
		SELECT a.id, a.submission_id, a.reviewer_id, a.action, a.comments, a.created_at
		FROM approvals a
		JOIN submissions s ON s.id = a.submission_id
		WHERE s.project_id = $1
		ORDER BY a.created_at
	`
	rows, err := s.tx.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var out []model.Approval
	for rows.Next() {
		var a model.Approval
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.ReviewerID, &a.Action, &a.Comments, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *pgxStore) InsertApproval(ctx context.Context, a *model.Approval) error {
	query := `
		INSERT INTO approvals (submission_id, reviewer_id, action, comments, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.tx.QueryRow(ctx, query, a.SubmissionID, a.ReviewerID, a.Action, a.Comments, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to insert approval: %w", err)
	}
	return nil
}

func (s *pgxStore) InsertAudit(ctx context.Context, e *model.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (actor_id, action, entity_type, entity_id, before, after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := s.tx.QueryRow(ctx, query, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Before, e.After, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (s *pgxStore) ListActiveReviewers(ctx context.Context) ([]model.User, error) {
	query := `
		SELECT id, email, name, role, contractor_id, active, created_at
		FROM users
		WHERE role IN ('ME_OFFICER', 'ADMIN') AND active = TRUE
	`
	rows, err := s.tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewers: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.ContractorID, &u.Active, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *pgxStore) EnqueueEvent(ctx context.Context, routingKey string, aggregateID *int64, payload any) error {
	aggregateType := "submission"
	if strings.HasPrefix(routingKey, "project.") {
		aggregateType = "project"
	}
	return outbox.InsertEventInTx(ctx, s.tx, s.outbox, aggregateType, aggregateID, routingKey, payload)
}
