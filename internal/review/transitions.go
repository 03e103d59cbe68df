package review

import "gridworks/internal/model"

// ValidTransitions is the submission lifecycle graph. APPROVED and REJECTED
// are terminal; REQUIRES_CLARIFICATION → PENDING (resubmit) is the only
// permitted cycle.
var ValidTransitions = map[model.SubmissionStatus][]model.SubmissionStatus{
	model.SubmissionPending: {
		model.SubmissionUnderReview,
		model.SubmissionApproved,
		model.SubmissionRejected,
		model.SubmissionFlagged,
		model.SubmissionNeedsClarity,
	},
	model.SubmissionUnderReview: {
		model.SubmissionApproved,
		model.SubmissionRejected,
		model.SubmissionFlagged,
		model.SubmissionNeedsClarity,
	},
	model.SubmissionFlagged: {
		model.SubmissionUnderReview,
		model.SubmissionApproved,
		model.SubmissionRejected,
		model.SubmissionNeedsClarity,
	},
	model.SubmissionNeedsClarity: {
		model.SubmissionPending,
	},
	model.SubmissionApproved: nil,
	model.SubmissionRejected: nil,
}

// CanTransition reports whether moving a submission from one status to
// another is allowed by the lifecycle graph.
func CanTransition(from, to model.SubmissionStatus) bool {
	for _, t := range ValidTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
