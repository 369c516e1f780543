package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionItemEventKind represents the type of audit event on an action item.
type ActionItemEventKind string

const (
	EventCreated            ActionItemEventKind = "created"
	EventAssigned           ActionItemEventKind = "assigned"
	EventStatusChanged      ActionItemEventKind = "status_changed"
	EventResponseAdded      ActionItemEventKind = "response_added"
	EventPhotoUploaded      ActionItemEventKind = "photo_uploaded"
	EventAIVerified         ActionItemEventKind = "ai_verified"
	EventSubmittedForReview ActionItemEventKind = "submitted_for_review"
	EventApproved           ActionItemEventKind = "approved"
	EventRejected           ActionItemEventKind = "rejected"
)

// ActionItemEvent is one entry in an action item's append-only audit log.
// Entries are totally ordered by the Seq column within one item and are
// never mutated or deleted. Actor is nil for system-generated events.
type ActionItemEvent struct {
	ID           uuid.UUID           `json:"id"`
	ActionItemID uuid.UUID           `json:"action_item_id"`
	Seq          int64               `json:"seq"`
	Kind         ActionItemEventKind `json:"kind"`
	Actor        *uuid.UUID          `json:"actor,omitempty"`
	Notes        *string             `json:"notes,omitempty"`
	NewStatus    *ActionItemStatus   `json:"new_status,omitempty"` // Snapshot, status_changed only
	CreatedAt    time.Time           `json:"created_at"`
}

// NewEvent builds an audit event for an actor-originated action.
func NewEvent(itemID uuid.UUID, kind ActionItemEventKind, actor uuid.UUID) *ActionItemEvent {
	return &ActionItemEvent{ActionItemID: itemID, Kind: kind, Actor: &actor}
}

// NewSystemEvent builds an audit event with no originating actor.
func NewSystemEvent(itemID uuid.UUID, kind ActionItemEventKind) *ActionItemEvent {
	return &ActionItemEvent{ActionItemID: itemID, Kind: kind}
}

// WithNotes attaches free-text notes to the event.
func (e *ActionItemEvent) WithNotes(notes string) *ActionItemEvent {
	if notes != "" {
		e.Notes = &notes
	}
	return e
}

// WithStatus attaches the post-transition status snapshot.
func (e *ActionItemEvent) WithStatus(status ActionItemStatus) *ActionItemEvent {
	e.NewStatus = &status
	return e
}
