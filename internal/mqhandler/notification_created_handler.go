package mqhandler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	mqcontracts "gridworks/contracts/mq"
	"gridworks/internal/service"
	"gridworks/pkg/metrics"
	"gridworks/pkg/util"
)

type NotificationCreatedHandler struct {
	sender  *service.NotificationSender
	deduper *util.Deduper
	logger  *zap.Logger
}

func NewNotificationCreatedHandler(sender *service.NotificationSender, deduper *util.Deduper, logger *zap.Logger) *NotificationCreatedHandler {
	return &NotificationCreatedHandler{
		sender:  sender,
		deduper: deduper,
		logger:  logger,
	}
}

// Handle 处理 notification.created 事件
// outbox 是 at-least-once 投递，用 DedupKey 吞掉重复消息
func (h *NotificationCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	start := time.Now()

	var p mqcontracts.NotificationCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal NotificationCreatedPayload", zap.Error(err))
		// 坏消息重试没有意义，直接丢弃
		return nil
	}

	if p.DedupKey != "" && !h.deduper.AcquireOnce(ctx, "notification.created", p.DedupKey) {
		return nil
	}

	h.logger.Info("Handling notification.created event",
		zap.Int64("user_id", p.UserID),
		zap.String("event", p.Event),
		zap.String("channel", p.Channel),
	)

	err := h.sender.Deliver(ctx, p, raw)
	metrics.RecordMQConsumeLatency(mqcontracts.RoutingKeyNotificationCreated, "notification.created.q", time.Since(start))
	return err
}
