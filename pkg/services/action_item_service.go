package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krauseinafrica/storescore-sub001/pkg/ai"
	"github.com/krauseinafrica/storescore-sub001/pkg/apperrors"
	"github.com/krauseinafrica/storescore-sub001/pkg/models"
	"github.com/krauseinafrica/storescore-sub001/pkg/repositories"
)

// CreateActionItemRequest carries the immutable-at-creation fields of a new
// corrective action.
type CreateActionItemRequest struct {
	CriterionID   uuid.UUID
	StoreID       uuid.UUID
	WalkID        *uuid.UUID
	AssessmentID  *uuid.UUID
	Description   string
	Priority      models.ActionItemPriority
	AssignedTo    *uuid.UUID
	DueDate       *time.Time
	EvidencePhoto *string
}

// ResolveRequest carries the evidence for a resolve-with-evidence
// transition.
type ResolveRequest struct {
	PhotoURL     string
	PhotoCaption string
	Notes        string
}

// ActionItemService governs the corrective-action lifecycle: role-gated
// transitions, the append-only audit trail, and advisory AI verification.
type ActionItemService interface {
	Create(ctx context.Context, orgID uuid.UUID, actor models.Actor, req *CreateActionItemRequest) (*models.ActionItem, error)
	Get(ctx context.Context, orgID, itemID uuid.UUID) (*models.ActionItem, error)
	ListByStore(ctx context.Context, orgID, storeID uuid.UUID, status *models.ActionItemStatus) ([]*models.ActionItem, error)
	Events(ctx context.Context, orgID, itemID uuid.UUID) ([]*models.ActionItemEvent, error)

	// Assign sets the assignee without changing status.
	Assign(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID, assigneeID uuid.UUID) error

	// MarkInProgress moves an open item to in_progress.
	MarkInProgress(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID) error

	// Resolve attaches evidence and moves the item to pending_review.
	Resolve(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, req *ResolveRequest) error

	// Dismiss terminates the item without resolution.
	Dismiss(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, notes string) error

	// Approve signs off a pending_review item. The reviewer must differ
	// from the resolver.
	Approve(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, notes string) error

	// PushBack returns a pending_review item to the active pool with
	// feedback. The reviewer must differ from the resolver.
	PushBack(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, feedback string) error

	// AddResponse appends commentary (and optional photos) without
	// changing status.
	AddResponse(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, notes string, photos []models.ResponsePhoto) error

	// VerifyPhoto asks the analysis backend for an advisory verdict on a
	// photo. Never transitions state.
	VerifyPhoto(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, photoURL, criterionName, sectionName string) (string, error)
}

// lifecycleOp names an action-item transition for the transition table.
type lifecycleOp string

const (
	opMarkInProgress lifecycleOp = "mark_in_progress"
	opResolve        lifecycleOp = "resolve"
	opDismiss        lifecycleOp = "dismiss"
	opApprove        lifecycleOp = "approve"
	opPushBack       lifecycleOp = "push_back"
)

// transitionInput carries the caller-supplied data a guard may inspect.
type transitionInput struct {
	photoURL string
	notes    string
}

// transitionRule is one row of the lifecycle transition matrix: the states
// the operation may start from, the state it lands on, and the guard that
// must pass. Guards never mutate anything; a guard failure means no field
// changes and no audit entry.
type transitionRule struct {
	from  []models.ActionItemStatus
	to    models.ActionItemStatus
	guard func(item *models.ActionItem, actor models.Actor, in transitionInput) error
}

func (r transitionRule) allows(s models.ActionItemStatus) bool {
	for _, f := range r.from {
		if f == s {
			return true
		}
	}
	return false
}

func requireWriteAccess(item *models.ActionItem, actor models.Actor, _ transitionInput) error {
	if !item.HasWriteAccess(actor) {
		return fmt.Errorf("%w: actor %s may not modify this item", apperrors.ErrForbidden, actor.ID)
	}
	return nil
}

// requireIndependentReviewer enforces the self-review invariant: whoever
// resolved an item may not sign it off or push it back.
func requireIndependentReviewer(item *models.ActionItem, actor models.Actor, _ transitionInput) error {
	if !actor.CanReview() {
		return fmt.Errorf("%w: role %s may not review", apperrors.ErrForbidden, actor.Role)
	}
	if item.ResolvedBy != nil && *item.ResolvedBy == actor.ID {
		return fmt.Errorf("%w: reviewer may not sign off their own resolution", apperrors.ErrForbidden)
	}
	return nil
}

// transitionTable is the full lifecycle transition matrix as data, so it
// can be unit-tested row by row.
var transitionTable = map[lifecycleOp]transitionRule{
	opMarkInProgress: {
		from:  []models.ActionItemStatus{models.ActionItemStatusOpen},
		to:    models.ActionItemStatusInProgress,
		guard: requireWriteAccess,
	},
	opResolve: {
		from: []models.ActionItemStatus{models.ActionItemStatusOpen, models.ActionItemStatusInProgress},
		to:   models.ActionItemStatusPendingReview,
		guard: func(item *models.ActionItem, actor models.Actor, in transitionInput) error {
			if err := requireWriteAccess(item, actor, in); err != nil {
				return err
			}
			if in.photoURL == "" {
				return fmt.Errorf("%w: resolution requires an evidence photo", apperrors.ErrValidationFailed)
			}
			return nil
		},
	},
	opDismiss: {
		from:  []models.ActionItemStatus{models.ActionItemStatusOpen, models.ActionItemStatusInProgress},
		to:    models.ActionItemStatusDismissed,
		guard: requireWriteAccess,
	},
	opApprove: {
		from:  []models.ActionItemStatus{models.ActionItemStatusPendingReview},
		to:    models.ActionItemStatusApproved,
		guard: requireIndependentReviewer,
	},
	opPushBack: {
		from: []models.ActionItemStatus{models.ActionItemStatusPendingReview},
		to:   models.ActionItemStatusOpen,
		guard: func(item *models.ActionItem, actor models.Actor, in transitionInput) error {
			if err := requireIndependentReviewer(item, actor, in); err != nil {
				return err
			}
			if in.notes == "" {
				return fmt.Errorf("%w: push-back requires feedback notes", apperrors.ErrValidationFailed)
			}
			return nil
		},
	},
}

type actionItemService struct {
	repo     repositories.ActionItemRepository
	events   repositories.EventRepository
	analyzer ai.Analyzer
	logger   *zap.Logger
}

// NewActionItemService creates a new ActionItemService.
func NewActionItemService(
	repo repositories.ActionItemRepository,
	events repositories.EventRepository,
	analyzer ai.Analyzer,
	logger *zap.Logger,
) ActionItemService {
	return &actionItemService{
		repo:     repo,
		events:   events,
		analyzer: analyzer,
		logger:   logger.Named("action-items"),
	}
}

var _ ActionItemService = (*actionItemService)(nil)

func (s *actionItemService) Create(ctx context.Context, orgID uuid.UUID, actor models.Actor, req *CreateActionItemRequest) (*models.ActionItem, error) {
	if req.Description == "" {
		return nil, fmt.Errorf("%w: description is required", apperrors.ErrValidationFailed)
	}

	item := &models.ActionItem{
		OrgID:         orgID,
		CriterionID:   req.CriterionID,
		StoreID:       req.StoreID,
		WalkID:        req.WalkID,
		AssessmentID:  req.AssessmentID,
		Description:   req.Description,
		Status:        models.ActionItemStatusOpen,
		Priority:      req.Priority,
		AssignedTo:    req.AssignedTo,
		DueDate:       req.DueDate,
		EvidencePhoto: req.EvidencePhoto,
		CreatedBy:     actor.ID,
	}
	if item.Priority == "" {
		item.Priority = models.PriorityMedium
	}

	events := []*models.ActionItemEvent{
		models.NewEvent(item.ID, models.EventCreated, actor.ID).WithNotes(req.Description),
	}
	if req.AssignedTo != nil {
		events = append(events, models.NewEvent(item.ID, models.EventAssigned, actor.ID).
			WithNotes(req.AssignedTo.String()))
	}

	if err := s.repo.Create(ctx, item, events...); err != nil {
		return nil, asDependencyFailure(err)
	}

	s.logger.Info("action item created",
		zap.String("item_id", item.ID.String()),
		zap.String("store_id", item.StoreID.String()),
		zap.String("priority", string(item.Priority)))

	return item, nil
}

func (s *actionItemService) Get(ctx context.Context, orgID, itemID uuid.UUID) (*models.ActionItem, error) {
	item, err := s.repo.Get(ctx, orgID, itemID)
	if err != nil {
		return nil, asDependencyFailure(err)
	}
	return item, nil
}

func (s *actionItemService) ListByStore(ctx context.Context, orgID, storeID uuid.UUID, status *models.ActionItemStatus) ([]*models.ActionItem, error) {
	items, err := s.repo.ListByStore(ctx, orgID, storeID, status)
	if err != nil {
		return nil, asDependencyFailure(err)
	}
	return items, nil
}

func (s *actionItemService) Events(ctx context.Context, orgID, itemID uuid.UUID) ([]*models.ActionItemEvent, error) {
	if _, err := s.repo.Get(ctx, orgID, itemID); err != nil {
		return nil, asDependencyFailure(err)
	}
	events, err := s.events.ListByItem(ctx, itemID)
	if err != nil {
		return nil, asDependencyFailure(err)
	}
	return events, nil
}

func (s *actionItemService) Assign(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID, assigneeID uuid.UUID) error {
	item, err := s.repo.Get(ctx, orgID, itemID)
	if err != nil {
		return asDependencyFailure(err)
	}
	if item.Status.IsTerminal() {
		return fmt.Errorf("%w: item is %s", apperrors.ErrInvalidTransition, item.Status)
	}
	if !item.HasWriteAccess(actor) {
		return fmt.Errorf("%w: actor %s may not modify this item", apperrors.ErrForbidden, actor.ID)
	}

	patch := repositories.ActionItemPatch{AssignedTo: &assigneeID}
	event := models.NewEvent(itemID, models.EventAssigned, actor.ID).WithNotes(assigneeID.String())
	if err := s.repo.Update(ctx, orgID, itemID, patch, event); err != nil {
		return asDependencyFailure(err)
	}
	return nil
}

func (s *actionItemService) MarkInProgress(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID) error {
	_, rule, err := s.begin(ctx, orgID, actor, itemID, opMarkInProgress, transitionInput{})
	if err != nil {
		return err
	}

	status := rule.to
	patch := repositories.ActionItemPatch{Status: &status}
	event := models.NewEvent(itemID, models.EventStatusChanged, actor.ID).WithStatus(status)
	if err := s.repo.Update(ctx, orgID, itemID, patch, event); err != nil {
		return asDependencyFailure(err)
	}

	s.logger.Info("action item in progress", zap.String("item_id", itemID.String()))
	return nil
}

func (s *actionItemService) Resolve(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, req *ResolveRequest) error {
	in := transitionInput{photoURL: req.PhotoURL, notes: req.Notes}
	_, rule, err := s.begin(ctx, orgID, actor, itemID, opResolve, in)
	if err != nil {
		return err
	}

	now := time.Now()
	status := rule.to
	patch := repositories.ActionItemPatch{
		Status:     &status,
		ResolvedBy: &actor.ID,
		ResolvedAt: &now,
	}
	response := &models.Response{
		ActionItemID: itemID,
		SubmittedBy:  actor.ID,
		Notes:        req.Notes,
		Photos:       []models.ResponsePhoto{{URL: req.PhotoURL, Caption: req.PhotoCaption}},
	}
	events := []*models.ActionItemEvent{
		models.NewEvent(itemID, models.EventPhotoUploaded, actor.ID).WithNotes(req.PhotoURL),
		models.NewEvent(itemID, models.EventSubmittedForReview, actor.ID).WithNotes(req.Notes),
	}

	if err := s.repo.UpdateWithResponse(ctx, orgID, itemID, patch, response, events...); err != nil {
		return asDependencyFailure(err)
	}

	s.logger.Info("action item resolved, awaiting review",
		zap.String("item_id", itemID.String()),
		zap.String("resolved_by", actor.ID.String()))
	return nil
}

func (s *actionItemService) Dismiss(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, notes string) error {
	_, rule, err := s.begin(ctx, orgID, actor, itemID, opDismiss, transitionInput{notes: notes})
	if err != nil {
		return err
	}

	status := rule.to
	patch := repositories.ActionItemPatch{Status: &status}
	event := models.NewEvent(itemID, models.EventStatusChanged, actor.ID).
		WithStatus(status).WithNotes(notes)
	if err := s.repo.Update(ctx, orgID, itemID, patch, event); err != nil {
		return asDependencyFailure(err)
	}

	s.logger.Info("action item dismissed", zap.String("item_id", itemID.String()))
	return nil
}

func (s *actionItemService) Approve(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, notes string) error {
	_, rule, err := s.begin(ctx, orgID, actor, itemID, opApprove, transitionInput{notes: notes})
	if err != nil {
		return err
	}

	now := time.Now()
	status := rule.to
	patch := repositories.ActionItemPatch{
		Status:      &status,
		ReviewedBy:  &actor.ID,
		ReviewedAt:  &now,
		ReviewNotes: &notes,
	}
	event := models.NewEvent(itemID, models.EventApproved, actor.ID).WithNotes(notes)
	if err := s.repo.Update(ctx, orgID, itemID, patch, event); err != nil {
		return asDependencyFailure(err)
	}

	s.logger.Info("action item approved",
		zap.String("item_id", itemID.String()),
		zap.String("reviewed_by", actor.ID.String()))
	return nil
}

func (s *actionItemService) PushBack(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, feedback string) error {
	_, rule, err := s.begin(ctx, orgID, actor, itemID, opPushBack, transitionInput{notes: feedback})
	if err != nil {
		return err
	}

	// The item re-enters the active pool; its resolution is voided so the
	// next resolve sets a fresh resolver.
	status := rule.to
	patch := repositories.ActionItemPatch{
		Status:          &status,
		ClearResolution: true,
	}
	response := &models.Response{
		ActionItemID: itemID,
		SubmittedBy:  actor.ID,
		Notes:        feedback,
	}
	event := models.NewEvent(itemID, models.EventRejected, actor.ID).WithNotes(feedback)

	if err := s.repo.UpdateWithResponse(ctx, orgID, itemID, patch, response, event); err != nil {
		return asDependencyFailure(err)
	}

	s.logger.Info("action item pushed back",
		zap.String("item_id", itemID.String()),
		zap.String("reviewed_by", actor.ID.String()))
	return nil
}

func (s *actionItemService) AddResponse(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, notes string, photos []models.ResponsePhoto) error {
	item, err := s.repo.Get(ctx, orgID, itemID)
	if err != nil {
		return asDependencyFailure(err)
	}
	if item.Status.IsTerminal() {
		return fmt.Errorf("%w: item is %s", apperrors.ErrInvalidTransition, item.Status)
	}
	if notes == "" {
		return fmt.Errorf("%w: response notes are required", apperrors.ErrValidationFailed)
	}

	response := &models.Response{
		ActionItemID: itemID,
		SubmittedBy:  actor.ID,
		Notes:        notes,
		Photos:       photos,
	}
	event := models.NewEvent(itemID, models.EventResponseAdded, actor.ID).WithNotes(notes)
	if err := s.repo.AddResponse(ctx, response, event); err != nil {
		return asDependencyFailure(err)
	}
	return nil
}

func (s *actionItemService) VerifyPhoto(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, photoURL, criterionName, sectionName string) (string, error) {
	item, err := s.repo.Get(ctx, orgID, itemID)
	if err != nil {
		return "", asDependencyFailure(err)
	}
	if item.Status.IsTerminal() {
		return "", fmt.Errorf("%w: item is %s", apperrors.ErrInvalidTransition, item.Status)
	}
	if photoURL == "" {
		return "", fmt.Errorf("%w: a photo is required for verification", apperrors.ErrValidationFailed)
	}

	verdict, err := s.analyzer.VerifyPhoto(ctx, ai.VerifyRequest{
		ImageURL:      photoURL,
		CriterionName: criterionName,
		SectionName:   sectionName,
	})
	if err != nil {
		return "", fmt.Errorf("%w: photo verification: %v", apperrors.ErrDependencyUnavailable, err)
	}

	// Advisory only: record the verdict, leave the state machine alone.
	event := models.NewSystemEvent(itemID, models.EventAIVerified).WithNotes(verdict)
	if err := s.events.Append(ctx, event); err != nil {
		return "", asDependencyFailure(err)
	}

	s.logger.Info("photo verified",
		zap.String("item_id", itemID.String()),
		zap.Int("verdict_len", len(verdict)))
	return verdict, nil
}

// begin loads the item and checks the transition table row for the
// operation: state legality first, then the guard. Nothing is mutated here.
func (s *actionItemService) begin(ctx context.Context, orgID uuid.UUID, actor models.Actor, itemID uuid.UUID, op lifecycleOp, in transitionInput) (*models.ActionItem, transitionRule, error) {
	rule := transitionTable[op]

	item, err := s.repo.Get(ctx, orgID, itemID)
	if err != nil {
		return nil, rule, asDependencyFailure(err)
	}

	if !rule.allows(item.Status) {
		return nil, rule, fmt.Errorf("%w: cannot %s an item in status %s",
			apperrors.ErrInvalidTransition, op, item.Status)
	}
	if err := rule.guard(item, actor, in); err != nil {
		return nil, rule, err
	}

	return item, rule, nil
}

// asDependencyFailure folds unexpected persistence errors into the
// dependency-unavailable taxonomy while letting not-found pass through.
func asDependencyFailure(err error) error {
	if err == nil || errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", apperrors.ErrDependencyUnavailable, err)
}
