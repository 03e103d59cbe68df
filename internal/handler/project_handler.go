package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gridworks/internal/apperr"
	"gridworks/internal/cache"
	"gridworks/internal/repository"
	"gridworks/internal/review"
)

type ProjectHandler struct {
	svc    *review.Service
	repo   *repository.ProjectRepo
	cache  *cache.ProgressCache
	logger *zap.Logger
}

func NewProjectHandler(svc *review.Service, repo *repository.ProjectRepo, cache *cache.ProgressCache, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, repo: repo, cache: cache, logger: logger}
}

func (h *ProjectHandler) List(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}

	projects, err := h.repo.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, apperr.Transient(err, "failed to list projects"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects, "count": len(projects)})
}

func (h *ProjectHandler) Get(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	project, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, apperr.Transient(err, "failed to load project"))
		return
	}
	if project == nil {
		respondError(c, h.logger, apperr.NotFound("project %d not found", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// Progress returns the full progress breakdown, served from Redis when warm.
func (h *ProjectHandler) Progress(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if res := h.cache.Get(ctx, id); res != nil {
		c.JSON(http.StatusOK, gin.H{"project_id": id, "progress": res, "cached": true})
		return
	}

	res, err := h.svc.Snapshot(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.cache.Set(ctx, id, res)

	c.JSON(http.StatusOK, gin.H{"project_id": id, "progress": res, "cached": false})
}

type overrideRequest struct {
	Progress int    `json:"progress"`
	Reason   string `json:"reason"`
}

// OverrideProgress 管理员覆盖进度，带审计；成功后让缓存失效
func (h *ProjectHandler) OverrideProgress(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body: %v", err))
		return
	}

	err := h.svc.OverrideProgress(c.Request.Context(), actor, id, review.OverrideInput{
		Progress: req.Progress,
		Reason:   req.Reason,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.cache.Invalidate(c.Request.Context(), id)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
