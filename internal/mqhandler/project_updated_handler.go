package mqhandler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	mqcontracts "gridworks/contracts/mq"
	"gridworks/internal/cache"
	"gridworks/pkg/metrics"
)

type ProjectUpdatedHandler struct {
	cache  *cache.ProgressCache
	logger *zap.Logger
}

func NewProjectUpdatedHandler(cache *cache.ProgressCache, logger *zap.Logger) *ProjectUpdatedHandler {
	return &ProjectUpdatedHandler{cache: cache, logger: logger}
}

// Handle 处理 project.updated 事件：让进度缓存失效，下一次读取回源到数据库
func (h *ProjectUpdatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	start := time.Now()

	var p mqcontracts.ProjectUpdatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal ProjectUpdatedPayload", zap.Error(err))
		return nil
	}

	h.cache.Invalidate(ctx, p.ProjectID)

	h.logger.Info("Project progress cache invalidated",
		zap.Int64("project_id", p.ProjectID),
		zap.Int("progress", p.Progress),
		zap.String("confidence", p.Confidence),
	)

	metrics.RecordMQConsumeLatency(mqcontracts.RoutingKeyProjectUpdated, "project.updated.q", time.Since(start))
	return nil
}
