// Package repository is the PostgreSQL persistence layer. TxManager gives the
// review workflow its unit of work; the plain repos serve untransacted reads
// for the HTTP layer.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"gridworks/internal/apperr"
	"gridworks/internal/review"
	"gridworks/pkg/outbox"
)

// TxManager 把 review.Store 的全部写操作绑定在一个 pgx 事务里
type TxManager struct {
	pool   *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewTxManager(pool *pgxpool.Pool, ob *outbox.Repository, logger *zap.Logger) *TxManager {
	return &TxManager{pool: pool, outbox: ob, logger: logger}
}

// WithinTx runs fn inside a single transaction. fn errors roll everything
// back, including staged outbox events; infrastructure failures surface as
// Transient so callers can tell them apart from business rejections.
func (m *TxManager) WithinTx(ctx context.Context, fn func(review.Store) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return apperr.Transient(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&pgxStore{tx: tx, outbox: m.outbox}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		m.logger.Error("transaction commit failed", zap.Error(err))
		return apperr.Transient(err, "failed to commit transaction")
	}
	return nil
}
