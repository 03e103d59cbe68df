package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontracts "gridworks/contracts/mq"
	"gridworks/internal/model"
	"gridworks/internal/repository"
	"gridworks/pkg/circuitbreaker"
	"gridworks/pkg/metrics"
	"gridworks/pkg/mq"
	"gridworks/pkg/outbox"
	"gridworks/pkg/util"
)

// NotificationSender 负责把 notification.created 事件落库并投递到具体渠道。
// 每个渠道一个熔断器：渠道故障时快速失败，消息进死信队列等待重放。
type NotificationSender struct {
	db         *pgxpool.Pool
	repo       *repository.NotificationRepo
	publisher  *mq.Publisher
	outboxRepo *outbox.Repository
	breakers   map[string]*circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewNotificationSender(
	db *pgxpool.Pool,
	repo *repository.NotificationRepo,
	publisher *mq.Publisher,
	logger *zap.Logger,
) *NotificationSender {
	breakers := make(map[string]*circuitbreaker.CircuitBreaker)
	for _, channel := range []string{"EMAIL", "SMS", "PUSH"} {
		breakers[channel] = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	}

	return &NotificationSender{
		db:         db,
		repo:       repo,
		publisher:  publisher,
		outboxRepo: outbox.NewRepository(db),
		breakers:   breakers,
		logger:     logger,
	}
}

// Deliver persists the notification and pushes it through the channel. The
// returned error means "retryable, requeue me"; permanent failures go to the
// DLQ and return nil so the message is acked.
func (s *NotificationSender) Deliver(ctx context.Context, p mqcontracts.NotificationCreatedPayload, raw json.RawMessage) error {
	data, _ := json.Marshal(p.Data)
	n := &model.Notification{
		UserID:  p.UserID,
		Event:   p.Event,
		Title:   p.Title,
		Message: p.Message,
		Data:    data,
		Channel: p.Channel,
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		s.logger.Error("failed to persist notification", zap.Error(err))
		return err
	}

	breaker, ok := s.breakers[p.Channel]
	if !ok {
		s.deadLetter(ctx, n, raw, fmt.Errorf("unsupported channel: %s", p.Channel))
		return nil
	}

	sendErr := breaker.Execute(func() error {
		return s.sendViaChannel(ctx, n)
	})
	if sendErr == nil {
		s.recordSent(ctx, n)
		return nil
	}

	metrics.IncrementNotificationDeliveryFailure(p.Channel)
	s.recordFailed(ctx, n, sendErr)

	if errors.Is(sendErr, circuitbreaker.ErrCircuitBreakerOpen) {
		// 渠道熔断中，消息进 DLQ 而不是无限重入队
		s.deadLetter(ctx, n, raw, sendErr)
		return nil
	}
	if retryable, _ := util.IsRetryableError(sendErr); !retryable {
		s.deadLetter(ctx, n, raw, sendErr)
		return nil
	}
	return sendErr
}

// sendViaChannel 实际投递。渠道网关未接入前只做结构化日志输出。
func (s *NotificationSender) sendViaChannel(ctx context.Context, n *model.Notification) error {
	switch n.Channel {
	case "EMAIL", "SMS", "PUSH":
		s.logger.Info("notification dispatched",
			zap.Int64("notification_id", n.ID),
			zap.Int64("user_id", n.UserID),
			zap.String("channel", n.Channel),
			zap.String("event", n.Event),
		)
		return nil
	default:
		return fmt.Errorf("unsupported channel: %s", n.Channel)
	}
}

// recordSent 把 notification.sent 写入 outbox，由 dispatcher 异步发布
func (s *NotificationSender) recordSent(ctx context.Context, n *model.Notification) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		s.logger.Error("failed to begin outbox transaction", zap.Error(err))
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	payload := mqcontracts.NotificationSentPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        n.Channel,
		SentAt:         n.CreatedAt,
	}
	if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "notification", &n.ID, mqcontracts.RoutingKeyNotificationSent, payload); err != nil {
		s.logger.Error("failed to stage notification.sent", zap.Error(err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("failed to commit notification.sent", zap.Error(err))
	}
}

func (s *NotificationSender) recordFailed(ctx context.Context, n *model.Notification, sendErr error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		s.logger.Error("failed to begin outbox transaction", zap.Error(err))
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	payload := mqcontracts.NotificationFailedPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        n.Channel,
		Error:          sendErr.Error(),
	}
	if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "notification", &n.ID, mqcontracts.RoutingKeyNotificationFailed, payload); err != nil {
		s.logger.Error("failed to stage notification.failed", zap.Error(err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("failed to commit notification.failed", zap.Error(err))
	}
}

func (s *NotificationSender) deadLetter(ctx context.Context, n *model.Notification, raw json.RawMessage, cause error) {
	s.logger.Warn("routing notification to DLQ",
		zap.Int64("notification_id", n.ID),
		zap.String("channel", n.Channel),
		zap.Error(cause),
	)
	if err := s.publisher.PublishToDLQ(mqcontracts.RoutingKeyNotificationCreated, raw, cause.Error()); err != nil {
		s.logger.Error("failed to publish to DLQ", zap.Error(err))
	}
}
