package model

import "time"

type ProjectStatus string

const (
	ProjectNotStarted     ProjectStatus = "NOT_STARTED"
	ProjectInProgress     ProjectStatus = "IN_PROGRESS"
	ProjectNearCompletion ProjectStatus = "NEAR_COMPLETION"
	ProjectCompleted      ProjectStatus = "COMPLETED"
	ProjectDelayed        ProjectStatus = "DELAYED"
	ProjectOnHold         ProjectStatus = "ON_HOLD"
	ProjectCancelled      ProjectStatus = "CANCELLED"
)

// Frozen reports whether the status must not be silently overwritten by a
// progress recomputation.
func (s ProjectStatus) Frozen() bool {
	switch s {
	case ProjectDelayed, ProjectOnHold, ProjectCancelled:
		return true
	}
	return false
}

// Project 的 progress 只由进度计算引擎（审批事务内）或带审计的管理员覆盖写入
type Project struct {
	ID                 int64         `json:"id"`
	Name               string        `json:"name"`
	Category           string        `json:"category"`
	Status             ProjectStatus `json:"status"`
	Progress           int           `json:"progress"`
	ProgressConfidence string        `json:"progress_confidence"`
	BudgetTotal        float64       `json:"budget_total"`
	BudgetSpent        float64       `json:"budget_spent"`
	ContractorID       *int64        `json:"contractor_id,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}
