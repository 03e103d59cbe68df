package model

import "time"

type SubmissionType string

const (
	SubmissionMilestone SubmissionType = "MILESTONE"
	SubmissionProgress  SubmissionType = "PROGRESS"
	SubmissionIssue     SubmissionType = "ISSUE"
	SubmissionSafety    SubmissionType = "SAFETY"
	SubmissionQuality   SubmissionType = "QUALITY"
	SubmissionDelay     SubmissionType = "DELAY"
	SubmissionGeneral   SubmissionType = "GENERAL"
)

func ValidSubmissionType(t SubmissionType) bool {
	switch t {
	case SubmissionMilestone, SubmissionProgress, SubmissionIssue,
		SubmissionSafety, SubmissionQuality, SubmissionDelay, SubmissionGeneral:
		return true
	}
	return false
}

type SubmissionStatus string

const (
	SubmissionPending        SubmissionStatus = "PENDING"
	SubmissionUnderReview    SubmissionStatus = "UNDER_REVIEW"
	SubmissionApproved       SubmissionStatus = "APPROVED"
	SubmissionRejected       SubmissionStatus = "REJECTED"
	SubmissionFlagged        SubmissionStatus = "FLAGGED"
	SubmissionNeedsClarity   SubmissionStatus = "REQUIRES_CLARIFICATION"
)

// Terminal reports whether the status forbids any further review.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionApproved || s == SubmissionRejected
}

type ReviewAction string

const (
	ActionApproved             ReviewAction = "APPROVED"
	ActionRejected             ReviewAction = "REJECTED"
	ActionFlagged              ReviewAction = "FLAGGED"
	ActionRequestClarification ReviewAction = "REQUEST_CLARIFICATION"
	ActionStartReview          ReviewAction = "START_REVIEW"
)

// ActionStatus maps a review action to the submission status it produces.
func ActionStatus(a ReviewAction) (SubmissionStatus, bool) {
	switch a {
	case ActionApproved:
		return SubmissionApproved, true
	case ActionRejected:
		return SubmissionRejected, true
	case ActionFlagged:
		return SubmissionFlagged, true
	case ActionRequestClarification:
		return SubmissionNeedsClarity, true
	case ActionStartReview:
		return SubmissionUnderReview, true
	}
	return "", false
}

// Decision reports whether the action is a reviewer decision that appends an
// immutable approval record. START_REVIEW only moves the status.
func (a ReviewAction) Decision() bool {
	return a != ActionStartReview
}

type Submission struct {
	ID               int64            `json:"id"`
	ProjectID        int64            `json:"project_id"`
	MilestoneID      *int64           `json:"milestone_id,omitempty"`
	ContractorID     int64            `json:"contractor_id"`
	AuthorID         int64            `json:"author_id"`
	Type             SubmissionType   `json:"type"`
	Status           SubmissionStatus `json:"status"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Progress         *int             `json:"progress,omitempty"`
	QualityScore     *int             `json:"quality_score,omitempty"`
	EstimatedValue   *float64         `json:"estimated_value,omitempty"`
	Priority         string           `json:"priority,omitempty"`
	SafetyCompliance *bool            `json:"safety_compliance,omitempty"`
	WeatherImpact    string           `json:"weather_impact,omitempty"`
	DueDate          *time.Time       `json:"due_date,omitempty"`
	SubmittedAt      time.Time        `json:"submitted_at"`
	ReviewedAt       *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy       *int64           `json:"reviewed_by,omitempty"`
	ReviewComments   string           `json:"review_comments,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
