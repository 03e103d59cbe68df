package mq

import "time"

// ProjectUpdatedPayload 项目进度变更事件
type ProjectUpdatedPayload struct {
	ProjectID  int64     `json:"project_id"`
	Progress   int       `json:"progress"`
	Confidence string    `json:"confidence"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}
