package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gridworks/internal/model"
)

// SubmissionRepo 提供不需要事务的提交读取
type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

func (r *SubmissionRepo) GetByID(ctx context.Context, id int64) (*model.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1`, submissionColumns)

	sub, err := scanSubmission(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// ListFilter 按调用方角色裁剪：承包商视角必须带 ContractorID
type ListFilter struct {
	ProjectID    *int64
	Status       *model.SubmissionStatus
	ContractorID *int64
	Limit        int
}

func (r *SubmissionRepo) List(ctx context.Context, f ListFilter) ([]model.Submission, error) {
	var conds []string
	var args []any

	if f.ProjectID != nil {
		args = append(args, *f.ProjectID)
		conds = append(conds, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.ContractorID != nil {
		args = append(args, *f.ContractorID)
		conds = append(conds, fmt.Sprintf("contractor_id = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM submissions`, submissionColumns)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY submitted_at DESC"

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
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

// ListApprovals 返回一条提交的全部审批历史（只追加，时间升序）
func (r *SubmissionRepo) ListApprovals(ctx context.Context, submissionID int64) ([]model.Approval, error) {
	query := `
		SELECT id, submission_id, reviewer_id, action, comments, created_at
		FROM approvals
		WHERE submission_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, submissionID)
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
