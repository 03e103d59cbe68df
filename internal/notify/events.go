// Package notify builds the notification payloads fanned out when the review
// workflow changes state. Delivery happens through the outbox after the
// owning transaction commits; nothing here blocks or fails a review.
package notify

import (
	"fmt"

	mqcontracts "gridworks/contracts/mq"
	"gridworks/internal/model"
)

// DefaultChannel 没有用户偏好时使用的投递渠道
const DefaultChannel = "EMAIL"

// NewSubmission notifies a reviewer that a contractor filed a new claim.
func NewSubmission(recipientID int64, sub *model.Submission) mqcontracts.NotificationCreatedPayload {
	return mqcontracts.NotificationCreatedPayload{
		UserID:  recipientID,
		Event:   mqcontracts.EventNewSubmission,
		Title:   "New submission",
		Message: fmt.Sprintf("Submission %q (%s) is awaiting review", sub.Title, sub.Type),
		Channel: DefaultChannel,
		Data: map[string]any{
			"submission_id": sub.ID,
			"project_id":    sub.ProjectID,
			"type":          string(sub.Type),
		},
		DedupKey: fmt.Sprintf("%s:%d:%d:%d", mqcontracts.EventNewSubmission, sub.ID, recipientID, sub.SubmittedAt.UnixNano()),
	}
}

// SubmissionReviewed notifies the submitting contractor of a reviewer decision.
func SubmissionReviewed(sub *model.Submission, action model.ReviewAction) mqcontracts.NotificationCreatedPayload {
	return mqcontracts.NotificationCreatedPayload{
		UserID:  sub.AuthorID,
		Event:   mqcontracts.EventSubmissionReviewed,
		Title:   "Submission reviewed",
		Message: fmt.Sprintf("Submission %q was %s", sub.Title, action),
		Channel: DefaultChannel,
		Data: map[string]any{
			"submission_id": sub.ID,
			"project_id":    sub.ProjectID,
			"action":        string(action),
			"status":        string(sub.Status),
		},
		DedupKey: fmt.Sprintf("%s:%d:%s", mqcontracts.EventSubmissionReviewed, sub.ID, action),
	}
}
