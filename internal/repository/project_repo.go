package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gridworks/internal/model"
)

type ProjectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

func (r *ProjectRepo) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	query := `
		SELECT id, name, category, status, progress, progress_confidence,
		       budget_total, budget_spent, contractor_id, created_at, updated_at
		FROM projects WHERE id = $1
	`
	var p model.Project
	err := r.pool.QueryRow(ctx, query, id).Scan(
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

func (r *ProjectRepo) List(ctx context.Context) ([]model.Project, error) {
	query := `
		SELECT id, name, category, status, progress, progress_confidence,
		       budget_total, budget_spent, contractor_id, created_at, updated_at
		FROM projects ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Category, &p.Status, &p.Progress, &p.ProgressConfidence,
			&p.BudgetTotal, &p.BudgetSpent, &p.ContractorID, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
