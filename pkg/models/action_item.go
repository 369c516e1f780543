package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Action Item Status
// ============================================================================

// ActionItemStatus represents the lifecycle state of a corrective action.
// State machine:
//
//	open → in_progress → pending_review → approved
//	  ↓         ↓              ↓
//	dismissed dismissed      open (push-back)
//
//	open → pending_review (resolve directly, evidence attached)
type ActionItemStatus string

const (
	ActionItemStatusOpen          ActionItemStatus = "open"
	ActionItemStatusInProgress    ActionItemStatus = "in_progress"
	ActionItemStatusPendingReview ActionItemStatus = "pending_review"
	ActionItemStatusApproved      ActionItemStatus = "approved"
	ActionItemStatusDismissed     ActionItemStatus = "dismissed"
)

// ValidActionItemStatuses contains all valid status values.
var ValidActionItemStatuses = []ActionItemStatus{
	ActionItemStatusOpen,
	ActionItemStatusInProgress,
	ActionItemStatusPendingReview,
	ActionItemStatusApproved,
	ActionItemStatusDismissed,
}

// IsValidActionItemStatus checks if the given status is valid.
func IsValidActionItemStatus(s ActionItemStatus) bool {
	for _, v := range ValidActionItemStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is absorbing (approved or dismissed).
func (s ActionItemStatus) IsTerminal() bool {
	return s == ActionItemStatusApproved || s == ActionItemStatusDismissed
}

// CanTransitionTo returns true if transitioning from this status to the
// target is valid.
func (s ActionItemStatus) CanTransitionTo(target ActionItemStatus) bool {
	switch s {
	case ActionItemStatusOpen:
		return target == ActionItemStatusInProgress ||
			target == ActionItemStatusPendingReview ||
			target == ActionItemStatusDismissed
	case ActionItemStatusInProgress:
		return target == ActionItemStatusPendingReview ||
			target == ActionItemStatusDismissed
	case ActionItemStatusPendingReview:
		return target == ActionItemStatusApproved ||
			target == ActionItemStatusOpen
	case ActionItemStatusApproved, ActionItemStatusDismissed:
		return false // Terminal states
	default:
		return false
	}
}

// ============================================================================
// Priority
// ============================================================================

// ActionItemPriority represents the urgency of a corrective action.
type ActionItemPriority string

const (
	PriorityCritical ActionItemPriority = "critical"
	PriorityHigh     ActionItemPriority = "high"
	PriorityMedium   ActionItemPriority = "medium"
	PriorityLow      ActionItemPriority = "low"
)

// NormalizePriority lower-cases a priority value and falls back to medium
// for anything unrecognized. AI suggestions arrive with arbitrary casing.
func NormalizePriority(raw string) ActionItemPriority {
	switch ActionItemPriority(strings.ToLower(strings.TrimSpace(raw))) {
	case PriorityCritical:
		return PriorityCritical
	case PriorityHigh:
		return PriorityHigh
	case PriorityMedium:
		return PriorityMedium
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// ============================================================================
// Action Item
// ============================================================================

// ActionItem is a trackable corrective-action record derived from a flagged
// evaluation criterion or promoted from an AI suggestion. Items are never
// physically deleted; dismissal and approval are terminal states.
type ActionItem struct {
	ID             uuid.UUID          `json:"id"`
	OrgID          uuid.UUID          `json:"org_id"`
	CriterionID    uuid.UUID          `json:"criterion_id"`
	StoreID        uuid.UUID          `json:"store_id"`
	WalkID         *uuid.UUID         `json:"walk_id,omitempty"`
	AssessmentID   *uuid.UUID         `json:"assessment_id,omitempty"`
	Description    string             `json:"description"`
	Status         ActionItemStatus   `json:"status"`
	Priority       ActionItemPriority `json:"priority"`
	AssignedTo     *uuid.UUID         `json:"assigned_to,omitempty"`
	DueDate        *time.Time         `json:"due_date,omitempty"`
	EvidencePhoto  *string            `json:"evidence_photo,omitempty"` // Original photo from the walk, if any
	CreatedBy      uuid.UUID          `json:"created_by"`
	ResolvedBy     *uuid.UUID         `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time         `json:"resolved_at,omitempty"`
	ReviewedBy     *uuid.UUID         `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time         `json:"reviewed_at,omitempty"`
	ReviewNotes    *string            `json:"review_notes,omitempty"`
	Responses      []*Response        `json:"responses,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// HasWriteAccess reports whether the actor may work an item: its creator,
// its assignee, or any store-manager-or-above role.
func (i *ActionItem) HasWriteAccess(actor Actor) bool {
	if actor.ID == i.CreatedBy {
		return true
	}
	if i.AssignedTo != nil && actor.ID == *i.AssignedTo {
		return true
	}
	return actor.IsManager()
}

// Response is a timestamped note, optionally with photos, attached to an
// action item. Responses are append-only and owned by their item.
type Response struct {
	ID           uuid.UUID       `json:"id"`
	ActionItemID uuid.UUID       `json:"action_item_id"`
	SubmittedBy  uuid.UUID       `json:"submitted_by"`
	Notes        string          `json:"notes"`
	Photos       []ResponsePhoto `json:"photos,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ResponsePhoto is one photo reference on a response, with an optional
// AI-generated caption.
type ResponsePhoto struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}
