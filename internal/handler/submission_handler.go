package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gridworks/internal/apperr"
	"gridworks/internal/model"
	"gridworks/internal/repository"
	"gridworks/internal/review"
	"gridworks/pkg/rbac"
)

// ActorKey 是认证中间件写入 gin context 的键
const ActorKey = "actor"

func actorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

func requireActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
	}
	return actor, ok
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

type SubmissionHandler struct {
	svc    *review.Service
	repo   *repository.SubmissionRepo
	logger *zap.Logger
}

func NewSubmissionHandler(svc *review.Service, repo *repository.SubmissionRepo, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, repo: repo, logger: logger}
}

type createSubmissionRequest struct {
	ProjectID        int64      `json:"project_id" binding:"required"`
	MilestoneID      *int64     `json:"milestone_id"`
	Type             string     `json:"type" binding:"required"`
	Title            string     `json:"title" binding:"required"`
	Description      string     `json:"description"`
	Progress         *int       `json:"progress"`
	QualityScore     *int       `json:"quality_score"`
	EstimatedValue   *float64   `json:"estimated_value"`
	Priority         string     `json:"priority"`
	SafetyCompliance *bool      `json:"safety_compliance"`
	WeatherImpact    string     `json:"weather_impact"`
	DueDate          *time.Time `json:"due_date"`
}

func (h *SubmissionHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body: %v", err))
		return
	}

	sub, err := h.svc.Submit(c.Request.Context(), actor, review.SubmitInput{
		ProjectID:        req.ProjectID,
		MilestoneID:      req.MilestoneID,
		Type:             model.SubmissionType(req.Type),
		Title:            req.Title,
		Description:      req.Description,
		Progress:         req.Progress,
		QualityScore:     req.QualityScore,
		EstimatedValue:   req.EstimatedValue,
		Priority:         req.Priority,
		SafetyCompliance: req.SafetyCompliance,
		WeatherImpact:    req.WeatherImpact,
		DueDate:          req.DueDate,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"submission": sub})
}

type reviewRequest struct {
	Action   string `json:"action" binding:"required"`
	Comments string `json:"comments"`
}

func (h *SubmissionHandler) Review(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body: %v", err))
		return
	}

	sub, err := h.svc.Review(c.Request.Context(), actor, id, review.ReviewInput{
		Action:   model.ReviewAction(req.Action),
		Comments: req.Comments,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"submission": sub})
}

type resubmitRequest struct {
	Description string `json:"description"`
}

func (h *SubmissionHandler) Resubmit(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req resubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body: %v", err))
		return
	}

	sub, err := h.svc.Resubmit(c.Request.Context(), actor, id, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"submission": sub})
}

func (h *SubmissionHandler) Withdraw(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Withdraw(c.Request.Context(), actor, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "withdrawn"})
}

func (h *SubmissionHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	sub, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, apperr.Transient(err, "failed to load submission"))
		return
	}
	if sub == nil {
		respondError(c, h.logger, apperr.NotFound("submission %d not found", id))
		return
	}
	if !rbac.CanViewSubmission(actor.Role, actor.ContractorID, sub.ContractorID) {
		respondError(c, h.logger, apperr.Forbidden("submission %d is not visible to this account", id))
		return
	}

	approvals, err := h.repo.ListApprovals(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, apperr.Transient(err, "failed to load approvals"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"submission": sub, "approvals": approvals})
}

func (h *SubmissionHandler) List(c *gin.Context) {
	var projectID *int64
	if raw := c.Query("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, h.logger, apperr.Validation("invalid project_id"))
			return
		}
		projectID = &id
	}
	h.list(c, projectID)
}

// ListByProject 列出单个项目下的提交，项目 ID 来自路径
func (h *SubmissionHandler) ListByProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.list(c, &id)
}

func (h *SubmissionHandler) list(c *gin.Context, projectID *int64) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	f := repository.ListFilter{ProjectID: projectID}
	if raw := c.Query("status"); raw != "" {
		status := model.SubmissionStatus(raw)
		f.Status = &status
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			f.Limit = n
		}
	}

	// 没有全量读取权限的账号只能看到自己承包商的提交
	if !rbac.HasCapability(actor.Role, rbac.CapabilityReadAllSubmissions) {
		if actor.ContractorID == nil {
			respondError(c, h.logger, apperr.Forbidden("account has no contractor binding"))
			return
		}
		f.ContractorID = actor.ContractorID
	}

	subs, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.logger, apperr.Transient(err, "failed to list submissions"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"submissions": subs, "count": len(subs)})
}
