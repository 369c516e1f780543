package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/krauseinafrica/storescore-sub001/pkg/database"
	"github.com/krauseinafrica/storescore-sub001/pkg/models"
)

// EventRepository provides access to the append-only audit trail of an
// action item. Entries are never mutated or deleted; ordering is append
// order (the seq column).
type EventRepository interface {
	// Append adds a single event outside of any item transaction. Used for
	// advisory events (ai_verified) that accompany no field change.
	Append(ctx context.Context, event *models.ActionItemEvent) error

	// ListByItem returns all events for an item in append order.
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]*models.ActionItemEvent, error)
}

type eventRepository struct {
	db *database.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *database.DB) EventRepository {
	return &eventRepository{db: db}
}

var _ EventRepository = (*eventRepository)(nil)

func (r *eventRepository) Append(ctx context.Context, event *models.ActionItemEvent) error {
	return insertEvent(ctx, r.db.Pool, event)
}

func (r *eventRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*models.ActionItemEvent, error) {
	query := `
		SELECT id, action_item_id, seq, kind, actor, notes, new_status, created_at
		FROM action_item_events
		WHERE action_item_id = $1
		ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.ActionItemEvent
	for rows.Next() {
		var e models.ActionItemEvent
		if err := rows.Scan(&e.ID, &e.ActionItemID, &e.Seq, &e.Kind, &e.Actor, &e.Notes, &e.NewStatus, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// execer covers both pgx.Tx and the pool so transition transactions and
// standalone appends share one insert path.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// insertEvent writes one audit event. Callers inside a transition pass their
// pgx.Tx so the event commits with the transition or not at all.
func insertEvent(ctx context.Context, q execer, event *models.ActionItemEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()

	query := `
		INSERT INTO action_item_events (id, action_item_id, kind, actor, notes, new_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := q.Exec(ctx, query,
		event.ID,
		event.ActionItemID,
		event.Kind,
		event.Actor,
		event.Notes,
		event.NewStatus,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}
