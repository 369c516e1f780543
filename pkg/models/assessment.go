package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Self-Assessment Status
// ============================================================================

// SelfAssessmentStatus represents the lifecycle state of a self-assessment.
// State machine:
//
//	pending → submitted → reviewed
//
// Re-review of a reviewed assessment is an idempotent update-in-place,
// not a new state.
type SelfAssessmentStatus string

const (
	AssessmentStatusPending   SelfAssessmentStatus = "pending"
	AssessmentStatusSubmitted SelfAssessmentStatus = "submitted"
	AssessmentStatusReviewed  SelfAssessmentStatus = "reviewed"
)

// ValidAssessmentStatuses contains all valid status values.
var ValidAssessmentStatuses = []SelfAssessmentStatus{
	AssessmentStatusPending,
	AssessmentStatusSubmitted,
	AssessmentStatusReviewed,
}

// IsValidAssessmentStatus checks if the given status is valid.
func IsValidAssessmentStatus(s SelfAssessmentStatus) bool {
	for _, v := range ValidAssessmentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransitionTo returns true if transitioning from this status to the
// target is valid.
func (s SelfAssessmentStatus) CanTransitionTo(target SelfAssessmentStatus) bool {
	switch s {
	case AssessmentStatusPending:
		return target == AssessmentStatusSubmitted
	case AssessmentStatusSubmitted:
		return target == AssessmentStatusReviewed
	case AssessmentStatusReviewed:
		return target == AssessmentStatusReviewed // Re-review, update-in-place
	default:
		return false
	}
}

// ============================================================================
// Ratings
// ============================================================================

// Rating is the three-point evidence scale used for both self-reported and
// AI-assigned scores.
type Rating string

const (
	RatingPass      Rating = "pass"
	RatingNeedsWork Rating = "needs_work"
	RatingFail      Rating = "fail"
)

// IsValidRating checks if the given rating is valid.
func IsValidRating(r Rating) bool {
	return r == RatingPass || r == RatingNeedsWork || r == RatingFail
}

// ============================================================================
// Self-Assessment
// ============================================================================

// SelfAssessment is a scheduled, template-driven self-check for one store.
// Mutated by the owning submitter until submission, then only by reviewers.
type SelfAssessment struct {
	ID            uuid.UUID               `json:"id"`
	OrgID         uuid.UUID               `json:"org_id"`
	TemplateID    uuid.UUID               `json:"template_id"`
	StoreID       uuid.UUID               `json:"store_id"`
	SubmittedBy   uuid.UUID               `json:"submitted_by"`
	Status        SelfAssessmentStatus    `json:"status"`
	DueDate       time.Time               `json:"due_date"`
	SubmittedAt   *time.Time              `json:"submitted_at,omitempty"`
	ReviewedBy    *uuid.UUID              `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time              `json:"reviewed_at,omitempty"`
	ReviewerNotes *string                 `json:"reviewer_notes,omitempty"`
	Submissions   []*AssessmentSubmission `json:"submissions,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// HasAnalysis reports whether any submission carries an AI analysis or
// AI rating. The reconciliation poller stops once this becomes true.
func (a *SelfAssessment) HasAnalysis() bool {
	for _, s := range a.Submissions {
		if s.HasAnalysis() {
			return true
		}
	}
	return false
}

// SubmissionForPrompt returns the submission for the given prompt, or nil.
// At most one submission exists per (assessment, prompt) pair.
func (a *SelfAssessment) SubmissionForPrompt(promptID uuid.UUID) *AssessmentSubmission {
	for _, s := range a.Submissions {
		if s.PromptID == promptID {
			return s
		}
	}
	return nil
}

// SubmissionByID returns the submission with the given id, or nil.
func (a *SelfAssessment) SubmissionByID(id uuid.UUID) *AssessmentSubmission {
	for _, s := range a.Submissions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// AssessmentSubmission is the evidence for one prompt within an assessment.
// AI fields are write-once from this workflow's perspective: the workflow
// merges them in when the analysis backend produces them and never edits
// them afterwards.
type AssessmentSubmission struct {
	ID             uuid.UUID   `json:"id"`
	AssessmentID   uuid.UUID   `json:"assessment_id"`
	PromptID       uuid.UUID   `json:"prompt_id"`
	MediaURL       string      `json:"media_url"`
	Caption        *string     `json:"caption,omitempty"`
	SelfRating     *Rating     `json:"self_rating,omitempty"`
	AIRating       *Rating     `json:"ai_rating,omitempty"`
	AIAnalysis     *AIAnalysis `json:"ai_analysis,omitempty"`
	ReviewerRating *Rating     `json:"reviewer_rating,omitempty"`
	ReviewerNotes  *string     `json:"reviewer_notes,omitempty"`
	ReviewedBy     *uuid.UUID  `json:"reviewed_by,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// HasAnalysis reports whether the AI backend has scored this submission.
func (s *AssessmentSubmission) HasAnalysis() bool {
	return s.AIAnalysis != nil || s.AIRating != nil
}

// ReviewOverride carries a reviewer's per-submission correction. Empty
// fields leave the corresponding submission fields untouched.
type ReviewOverride struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Rating       *Rating   `json:"rating,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
}

// IsEmpty reports whether the override carries no changes.
func (o ReviewOverride) IsEmpty() bool {
	return o.Rating == nil && (o.Notes == nil || *o.Notes == "")
}
