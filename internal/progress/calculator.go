// Package progress derives a weighted percent-complete figure for a project
// from its milestones, submissions and approval history. Compute is pure and
// deterministic: same snapshots in, same result out, no storage access.
package progress

import (
	"math"
	"time"

	"gridworks/internal/model"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Policy holds the weighting constants. The component weights are fixed
// platform policy; UnverifiedCredit is the partial credit for a milestone
// that is COMPLETED but has no approved MILESTONE submission backing it.
type Policy struct {
	MilestoneWeight  float64
	PhysicalWeight   float64
	VerifiedWeight   float64
	UnverifiedCredit float64
	RecencyWindow    time.Duration
	HighApprovalRate float64
}

func DefaultPolicy() Policy {
	return Policy{
		MilestoneWeight:  0.70,
		PhysicalWeight:   0.20,
		VerifiedWeight:   0.10,
		UnverifiedCredit: 0.8,
		RecencyWindow:    30 * 24 * time.Hour,
		HighApprovalRate: 0.8,
	}
}

type Result struct {
	OverallProgress   int        `json:"overall_progress"`
	MilestoneProgress int        `json:"milestone_progress"`
	PhysicalProgress  int        `json:"physical_progress"`
	VerifiedProgress  int        `json:"verified_progress"`
	Confidence        Confidence `json:"confidence"`
	LastUpdate        *time.Time `json:"last_update,omitempty"`
}

// Compute derives the progress figures from snapshots of a project's
// milestones, submissions and approvals, evaluated at `now`.
func Compute(p Policy, milestones []model.Milestone, submissions []model.Submission, approvals []model.Approval, now time.Time) Result {
	milestonePct := milestoneProgress(p, milestones, submissions)
	physicalPct := physicalProgress(submissions)
	verifiedPct := verifiedProgress(approvals)

	overall := math.Round(
		float64(milestonePct)*p.MilestoneWeight +
			float64(physicalPct)*p.PhysicalWeight +
			float64(verifiedPct)*p.VerifiedWeight)

	return Result{
		OverallProgress:   clampPct(int(overall)),
		MilestoneProgress: milestonePct,
		PhysicalProgress:  physicalPct,
		VerifiedProgress:  verifiedPct,
		Confidence:        confidence(p, milestones, submissions, approvals, now),
		LastUpdate:        lastUpdate(submissions, approvals),
	}
}

// milestoneProgress is the weighted sum of completion credit. A milestone's
// weight defaults to an equal share unless it carries an explicit weight;
// credit is 1.0 for completed-and-verified, UnverifiedCredit for completed
// without a backing approved submission, 0 otherwise.
func milestoneProgress(p Policy, milestones []model.Milestone, submissions []model.Submission) int {
	if len(milestones) == 0 {
		return 0
	}

	defaultWeight := 1.0 / float64(len(milestones))
	var totalWeight, earned float64

	for _, m := range milestones {
		weight := defaultWeight
		if m.Weight != nil && *m.Weight > 0 {
			weight = *m.Weight
		}
		totalWeight += weight

		if m.Status != model.MilestoneCompleted {
			continue
		}
		credit := p.UnverifiedCredit
		if milestoneVerified(m.ID, submissions) {
			credit = 1.0
		}
		earned += weight * credit
	}

	if totalWeight == 0 {
		return 0
	}
	return clampPct(int(math.Round(earned / totalWeight * 100)))
}

// milestoneVerified reports whether an approved MILESTONE submission
// references the milestone.
func milestoneVerified(milestoneID int64, submissions []model.Submission) bool {
	for _, s := range submissions {
		if s.Type == model.SubmissionMilestone &&
			s.Status == model.SubmissionApproved &&
			s.MilestoneID != nil && *s.MilestoneID == milestoneID {
			return true
		}
	}
	return false
}

// physicalProgress is the self-reported progress of the most recently
// submitted approved PROGRESS or MILESTONE claim carrying a progress value.
func physicalProgress(submissions []model.Submission) int {
	var latest *model.Submission
	for i := range submissions {
		s := &submissions[i]
		if s.Status != model.SubmissionApproved || s.Progress == nil {
			continue
		}
		if s.Type != model.SubmissionProgress && s.Type != model.SubmissionMilestone {
			continue
		}
		if latest == nil || s.SubmittedAt.After(latest.SubmittedAt) {
			latest = s
		}
	}
	if latest == nil {
		return 0
	}
	return clampPct(*latest.Progress)
}

// verifiedProgress is the share of approvals that approved.
func verifiedProgress(approvals []model.Approval) int {
	if len(approvals) == 0 {
		return 0
	}
	approved := 0
	for _, a := range approvals {
		if a.Action == model.ActionApproved {
			approved++
		}
	}
	return clampPct(int(math.Round(float64(approved) / float64(len(approvals)) * 100)))
}

func confidence(p Policy, milestones []model.Milestone, submissions []model.Submission, approvals []model.Approval, now time.Time) Confidence {
	recent := false
	cutoff := now.Add(-p.RecencyWindow)
	for _, s := range submissions {
		if s.SubmittedAt.After(cutoff) {
			recent = true
			break
		}
	}

	highRate := false
	if len(approvals) > 0 {
		approved := 0
		for _, a := range approvals {
			if a.Action == model.ActionApproved {
				approved++
			}
		}
		highRate = float64(approved)/float64(len(approvals)) >= p.HighApprovalRate
	}

	hasMilestones := len(milestones) > 0

	switch {
	case recent && highRate && hasMilestones:
		return ConfidenceHigh
	case recent && (highRate || hasMilestones):
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// lastUpdate is the max timestamp across submission and approval history.
func lastUpdate(submissions []model.Submission, approvals []model.Approval) *time.Time {
	var latest time.Time
	for _, s := range submissions {
		if s.SubmittedAt.After(latest) {
			latest = s.SubmittedAt
		}
	}
	for _, a := range approvals {
		if a.CreatedAt.After(latest) {
			latest = a.CreatedAt
		}
	}
	if latest.IsZero() {
		return nil
	}
	return &latest
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
