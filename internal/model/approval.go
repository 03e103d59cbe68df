package model

import "time"

// Approval 是只追加的审批记录，一旦写入不再修改
type Approval struct {
	ID           int64        `json:"id"`
	SubmissionID int64        `json:"submission_id"`
	ReviewerID   int64        `json:"reviewer_id"`
	Action       ReviewAction `json:"action"`
	Comments     string       `json:"comments,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
