package model

import "time"

type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "PENDING"
	MilestoneInProgress MilestoneStatus = "IN_PROGRESS"
	MilestoneCompleted  MilestoneStatus = "COMPLETED"
	MilestoneDelayed    MilestoneStatus = "DELAYED"
	MilestoneCancelled  MilestoneStatus = "CANCELLED"
)

// Milestone 转为 COMPLETED 只能由已批准的 MILESTONE 类型提交触发，或管理员显式操作
type Milestone struct {
	ID            int64           `json:"id"`
	ProjectID     int64           `json:"project_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	PhaseOrder    int             `json:"phase_order"`
	Weight        *float64        `json:"weight,omitempty"` // 显式重要性权重，空则按 1/n 均分
	Status        MilestoneStatus `json:"status"`
	Progress      int             `json:"progress"`
	BudgetShare   *float64        `json:"budget_share,omitempty"`
	TargetDate    *time.Time      `json:"target_date,omitempty"`
	CompletedDate *time.Time      `json:"completed_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
