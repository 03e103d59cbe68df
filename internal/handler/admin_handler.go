package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gridworks/internal/apperr"
	"gridworks/pkg/outbox"
	"gridworks/pkg/rbac"
)

// AdminHandler 暴露 outbox 的运维接口：查看失败事件并手工重放
type AdminHandler struct {
	outboxRepo *outbox.Repository
	logger     *zap.Logger
}

func NewAdminHandler(outboxRepo *outbox.Repository, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{outboxRepo: outboxRepo, logger: logger}
}

func (h *AdminHandler) ListFailedEvents(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := rbac.CheckCapability(actor.Role, rbac.CapabilityReplayOutbox); err != nil {
		respondError(c, h.logger, apperr.Forbidden("role %s cannot inspect the outbox", actor.Role))
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	events, err := h.outboxRepo.GetFailedEvents(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, apperr.Transient(err, "failed to list failed events"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *AdminHandler) ReplayEvent(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := rbac.CheckCapability(actor.Role, rbac.CapabilityReplayOutbox); err != nil {
		respondError(c, h.logger, apperr.Forbidden("role %s cannot replay outbox events", actor.Role))
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if _, err := h.outboxRepo.GetEventByID(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, apperr.NotFound("outbox event %d not found", id))
		return
	}
	if err := h.outboxRepo.ReplayEvent(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, apperr.Transient(err, "failed to replay event"))
		return
	}

	h.logger.Info("outbox event replayed",
		zap.Int64("event_id", id),
		zap.Int64("actor_id", actor.UserID))
	c.JSON(http.StatusOK, gin.H{"status": "replayed"})
}
