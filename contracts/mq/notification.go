package mq

import "time"

// Routing keys on the events exchange.
const (
	RoutingKeyNotificationCreated = "notification.created"
	RoutingKeyNotificationSent    = "notification.sent"
	RoutingKeyNotificationFailed  = "notification.failed"
	RoutingKeyProjectUpdated      = "project.updated"
)

// Notification event types delivered to end users.
const (
	EventNewSubmission      = "new-submission"
	EventSubmissionReviewed = "submission-reviewed"
	EventProjectUpdated     = "project-updated"
	EventDeadlineReminder   = "deadline-reminder"
)

// NotificationCreatedPayload 通知待投递事件
// DedupKey 由生产方构造，消费方用它去重（at-least-once 投递）
type NotificationCreatedPayload struct {
	UserID   int64          `json:"user_id"`
	Event    string         `json:"event"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Channel  string         `json:"channel"`
	Data     map[string]any `json:"data,omitempty"`
	DedupKey string         `json:"dedup_key"`
	TraceID  string         `json:"trace_id,omitempty"`
}

// NotificationSentPayload 通知投递成功事件
type NotificationSentPayload struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	Channel        string    `json:"channel"`
	SentAt         time.Time `json:"sent_at"`
}

// NotificationFailedPayload 通知投递失败事件
type NotificationFailedPayload struct {
	NotificationID int64  `json:"notification_id"`
	UserID         int64  `json:"user_id"`
	Channel        string `json:"channel"`
	Error          string `json:"error"`
	RetryCount     int    `json:"retry_count"`
}
