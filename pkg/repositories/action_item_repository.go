package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/krauseinafrica/storescore-sub001/pkg/apperrors"
	"github.com/krauseinafrica/storescore-sub001/pkg/database"
	"github.com/krauseinafrica/storescore-sub001/pkg/models"
)

// ActionItemPatch describes a partial update to an action item. Nil fields
// are left untouched. ClearResolution nulls resolved_by/resolved_at (used
// when a reviewer pushes an item back into the active pool).
type ActionItemPatch struct {
	Status          *models.ActionItemStatus
	Priority        *models.ActionItemPriority
	AssignedTo      *uuid.UUID
	DueDate         *time.Time
	ResolvedBy      *uuid.UUID
	ResolvedAt      *time.Time
	ClearResolution bool
	ReviewedBy      *uuid.UUID
	ReviewedAt      *time.Time
	ReviewNotes     *string
}

// ActionItemRepository provides data access for corrective-action items.
// Mutating methods that accompany a lifecycle transition take the audit
// events to append; item change and events commit in one transaction so a
// failed transition never logs.
type ActionItemRepository interface {
	// Create inserts a new action item together with its audit events.
	Create(ctx context.Context, item *models.ActionItem, events ...*models.ActionItemEvent) error

	// CreateBatch inserts several action items (with their created events)
	// in a single transaction. All-or-nothing.
	CreateBatch(ctx context.Context, items []*models.ActionItem) error

	// Get returns an action item with its responses loaded.
	Get(ctx context.Context, orgID, itemID uuid.UUID) (*models.ActionItem, error)

	// ListByStore returns items for a store, optionally filtered by status,
	// newest first.
	ListByStore(ctx context.Context, orgID, storeID uuid.UUID, status *models.ActionItemStatus) ([]*models.ActionItem, error)

	// Update applies a partial update and appends the given audit events
	// in the same transaction.
	Update(ctx context.Context, orgID, itemID uuid.UUID, patch ActionItemPatch, events ...*models.ActionItemEvent) error

	// UpdateWithResponse applies a partial update, appends a response, and
	// appends the given audit events, all in one transaction. Used by
	// transitions that attach evidence or feedback.
	UpdateWithResponse(ctx context.Context, orgID, itemID uuid.UUID, patch ActionItemPatch, response *models.Response, events ...*models.ActionItemEvent) error

	// AddResponse appends a response and the given audit events.
	AddResponse(ctx context.Context, response *models.Response, events ...*models.ActionItemEvent) error

	// DetachAssessment nulls the assessment reference on all items derived
	// from the given assessment, so assessment deletion never orphans them.
	DetachAssessment(ctx context.Context, orgID, assessmentID uuid.UUID) error
}

type actionItemRepository struct {
	db *database.DB
}

// NewActionItemRepository creates a new ActionItemRepository.
func NewActionItemRepository(db *database.DB) ActionItemRepository {
	return &actionItemRepository{db: db}
}

var _ ActionItemRepository = (*actionItemRepository)(nil)

func (r *actionItemRepository) Create(ctx context.Context, item *models.ActionItem, events ...*models.ActionItemEvent) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		if err := insertActionItem(ctx, tx, item); err != nil {
			return err
		}
		for _, e := range events {
			e.ActionItemID = item.ID
			if err := insertEvent(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *actionItemRepository) CreateBatch(ctx context.Context, items []*models.ActionItem) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		for _, item := range items {
			if err := insertActionItem(ctx, tx, item); err != nil {
				return err
			}
			event := models.NewEvent(item.ID, models.EventCreated, item.CreatedBy).
				WithNotes(item.Description)
			if err := insertEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertActionItem(ctx context.Context, tx pgx.Tx, item *models.ActionItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `
		INSERT INTO action_items (
			id, org_id, criterion_id, store_id, walk_id, assessment_id,
			description, status, priority, assigned_to, due_date,
			evidence_photo, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := tx.Exec(ctx, query,
		item.ID,
		item.OrgID,
		item.CriterionID,
		item.StoreID,
		item.WalkID,
		item.AssessmentID,
		item.Description,
		item.Status,
		item.Priority,
		item.AssignedTo,
		item.DueDate,
		item.EvidencePhoto,
		item.CreatedBy,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action item: %w", err)
	}
	return nil
}

func (r *actionItemRepository) Get(ctx context.Context, orgID, itemID uuid.UUID) (*models.ActionItem, error) {
	query := `
		SELECT id, org_id, criterion_id, store_id, walk_id, assessment_id,
		       description, status, priority, assigned_to, due_date,
		       evidence_photo, created_by, resolved_by, resolved_at,
		       reviewed_by, reviewed_at, review_notes, created_at, updated_at
		FROM action_items
		WHERE org_id = $1 AND id = $2`

	item, err := scanActionItem(r.db.QueryRow(ctx, query, orgID, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	responses, err := r.listResponses(ctx, itemID)
	if err != nil {
		return nil, err
	}
	item.Responses = responses

	return item, nil
}

func (r *actionItemRepository) ListByStore(ctx context.Context, orgID, storeID uuid.UUID, status *models.ActionItemStatus) ([]*models.ActionItem, error) {
	query := `
		SELECT id, org_id, criterion_id, store_id, walk_id, assessment_id,
		       description, status, priority, assigned_to, due_date,
		       evidence_photo, created_by, resolved_by, resolved_at,
		       reviewed_by, reviewed_at, review_notes, created_at, updated_at
		FROM action_items
		WHERE org_id = $1 AND store_id = $2`

	args := []any{orgID, storeID}
	if status != nil {
		query += ` AND status = $3`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query action items: %w", err)
	}
	defer rows.Close()

	var items []*models.ActionItem
	for rows.Next() {
		item, err := scanActionItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action items: %w", err)
	}

	return items, nil
}

func (r *actionItemRepository) Update(ctx context.Context, orgID, itemID uuid.UUID, patch ActionItemPatch, events ...*models.ActionItemEvent) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		return applyItemPatch(ctx, tx, orgID, itemID, patch, nil, events)
	})
}

func (r *actionItemRepository) UpdateWithResponse(ctx context.Context, orgID, itemID uuid.UUID, patch ActionItemPatch, response *models.Response, events ...*models.ActionItemEvent) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		return applyItemPatch(ctx, tx, orgID, itemID, patch, response, events)
	})
}

// applyItemPatch runs the patch update, optional response insert, and event
// appends against one transaction so a failed transition leaves no trace.
func applyItemPatch(ctx context.Context, tx pgx.Tx, orgID, itemID uuid.UUID, patch ActionItemPatch, response *models.Response, events []*models.ActionItemEvent) error {
	setClauses := []string{"updated_at = now()"}
	args := []any{orgID, itemID}

	addSet := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		addSet("status", *patch.Status)
	}
	if patch.Priority != nil {
		addSet("priority", *patch.Priority)
	}
	if patch.AssignedTo != nil {
		addSet("assigned_to", *patch.AssignedTo)
	}
	if patch.DueDate != nil {
		addSet("due_date", *patch.DueDate)
	}
	if patch.ClearResolution {
		setClauses = append(setClauses, "resolved_by = NULL", "resolved_at = NULL")
	} else {
		if patch.ResolvedBy != nil {
			addSet("resolved_by", *patch.ResolvedBy)
		}
		if patch.ResolvedAt != nil {
			addSet("resolved_at", *patch.ResolvedAt)
		}
	}
	if patch.ReviewedBy != nil {
		addSet("reviewed_by", *patch.ReviewedBy)
	}
	if patch.ReviewedAt != nil {
		addSet("reviewed_at", *patch.ReviewedAt)
	}
	if patch.ReviewNotes != nil {
		addSet("review_notes", *patch.ReviewNotes)
	}

	query := "UPDATE action_items SET " + strings.Join(setClauses, ", ") + " WHERE org_id = $1 AND id = $2"

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update action item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	if response != nil {
		response.ActionItemID = itemID
		if err := insertResponse(ctx, tx, response); err != nil {
			return err
		}
	}
	for _, e := range events {
		e.ActionItemID = itemID
		if err := insertEvent(ctx, tx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *actionItemRepository) AddResponse(ctx context.Context, response *models.Response, events ...*models.ActionItemEvent) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		if err := insertResponse(ctx, tx, response); err != nil {
			return err
		}
		for _, e := range events {
			e.ActionItemID = response.ActionItemID
			if err := insertEvent(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertResponse(ctx context.Context, tx pgx.Tx, response *models.Response) error {
	if response.ID == uuid.Nil {
		response.ID = uuid.New()
	}
	response.CreatedAt = time.Now()

	var photosJSON []byte
	if len(response.Photos) > 0 {
		var err error
		photosJSON, err = json.Marshal(response.Photos)
		if err != nil {
			return fmt.Errorf("failed to marshal response photos: %w", err)
		}
	}

	query := `
		INSERT INTO action_item_responses (id, action_item_id, submitted_by, notes, photos, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		response.ID,
		response.ActionItemID,
		response.SubmittedBy,
		response.Notes,
		photosJSON,
		response.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}
	return nil
}

func (r *actionItemRepository) DetachAssessment(ctx context.Context, orgID, assessmentID uuid.UUID) error {
	query := `
		UPDATE action_items
		SET assessment_id = NULL, updated_at = now()
		WHERE org_id = $1 AND assessment_id = $2`

	if _, err := r.db.Exec(ctx, query, orgID, assessmentID); err != nil {
		return fmt.Errorf("failed to detach action items from assessment: %w", err)
	}
	return nil
}

func (r *actionItemRepository) listResponses(ctx context.Context, itemID uuid.UUID) ([]*models.Response, error) {
	query := `
		SELECT id, action_item_id, submitted_by, notes, photos, created_at
		FROM action_item_responses
		WHERE action_item_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var responses []*models.Response
	for rows.Next() {
		var resp models.Response
		var photosJSON []byte
		if err := rows.Scan(&resp.ID, &resp.ActionItemID, &resp.SubmittedBy, &resp.Notes, &photosJSON, &resp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		if len(photosJSON) > 0 {
			if err := json.Unmarshal(photosJSON, &resp.Photos); err != nil {
				return nil, fmt.Errorf("failed to unmarshal response photos: %w", err)
			}
		}
		responses = append(responses, &resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating responses: %w", err)
	}

	return responses, nil
}

func scanActionItem(row pgx.Row) (*models.ActionItem, error) {
	var item models.ActionItem
	err := row.Scan(
		&item.ID,
		&item.OrgID,
		&item.CriterionID,
		&item.StoreID,
		&item.WalkID,
		&item.AssessmentID,
		&item.Description,
		&item.Status,
		&item.Priority,
		&item.AssignedTo,
		&item.DueDate,
		&item.EvidencePhoto,
		&item.CreatedBy,
		&item.ResolvedBy,
		&item.ResolvedAt,
		&item.ReviewedBy,
		&item.ReviewedAt,
		&item.ReviewNotes,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan action item: %w", err)
	}
	return &item, nil
}
