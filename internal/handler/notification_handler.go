package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gridworks/internal/apperr"
	"gridworks/internal/repository"
)

type NotificationHandler struct {
	repo   *repository.NotificationRepo
	logger *zap.Logger
}

func NewNotificationHandler(repo *repository.NotificationRepo, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{repo: repo, logger: logger}
}

func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	notifications, err := h.repo.ListByUser(c.Request.Context(), actor.UserID, limit)
	if err != nil {
		respondError(c, h.logger, apperr.Transient(err, "failed to list notifications"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "count": len(notifications)})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.repo.MarkRead(c.Request.Context(), actor.UserID, id); err != nil {
		respondError(c, h.logger, apperr.Transient(err, "failed to mark notification read"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
