package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krauseinafrica/storescore-sub001/pkg/apperrors"
	"github.com/krauseinafrica/storescore-sub001/pkg/models"
	"github.com/krauseinafrica/storescore-sub001/pkg/repositories"
)

// Selection picks one AI suggestion for promotion, optionally overriding
// the suggested description or priority.
type Selection struct {
	SubmissionID uuid.UUID
	Index        int // Index into the submission's suggested action items
	Description  *string
	Priority     *string
}

// promotionKey identifies one (submission, suggestion) pair across calls.
type promotionKey struct {
	submissionID uuid.UUID
	index        int
}

// PromotionService converts AI-suggested remediation entries into durable
// action items. Creation is batched in one transaction, and each
// (submission, index) pair promotes at most once: re-selecting an already
// promoted pair is a benign no-op, never a duplicate.
type PromotionService interface {
	// Promote creates action items for the selected suggestions and
	// returns how many were created. Selections already promoted are
	// skipped; if every selection was already promoted the result is 0
	// with no error.
	Promote(ctx context.Context, orgID uuid.UUID, actor models.Actor, assessmentID uuid.UUID, selections []Selection) (int, error)
}

type promotionService struct {
	assessments repositories.AssessmentRepository
	items       repositories.ActionItemRepository
	logger      *zap.Logger

	mu       sync.Mutex
	promoted map[promotionKey]struct{}
}

// NewPromotionService creates a new PromotionService.
func NewPromotionService(
	assessments repositories.AssessmentRepository,
	items repositories.ActionItemRepository,
	logger *zap.Logger,
) PromotionService {
	return &promotionService{
		assessments: assessments,
		items:       items,
		logger:      logger.Named("promotion"),
		promoted:    make(map[promotionKey]struct{}),
	}
}

var _ PromotionService = (*promotionService)(nil)

func (s *promotionService) Promote(ctx context.Context, orgID uuid.UUID, actor models.Actor, assessmentID uuid.UUID, selections []Selection) (int, error) {
	if len(selections) == 0 {
		return 0, fmt.Errorf("%w: no suggestions selected", apperrors.ErrValidationFailed)
	}

	assessment, err := s.assessments.Get(ctx, orgID, assessmentID)
	if err != nil {
		return 0, asDependencyFailure(err)
	}

	// Validate every selection before writing anything: a bad index must
	// not leave a partial batch behind.
	items := make([]*models.ActionItem, 0, len(selections))
	keys := make([]promotionKey, 0, len(selections))
	seen := make(map[promotionKey]struct{}, len(selections))
	for _, sel := range selections {
		item, key, err := s.buildItem(orgID, actor, assessment, sel)
		if errors.Is(err, apperrors.ErrAlreadyPromoted) {
			// Absorbed: the pair is permanently excluded from re-selection.
			continue
		}
		if err != nil {
			return 0, err
		}
		if _, dup := seen[key]; dup {
			// The same pair twice in one batch still promotes once.
			continue
		}
		seen[key] = struct{}{}
		items = append(items, item)
		keys = append(keys, key)
	}

	if len(items) == 0 {
		// Every selection was already promoted.
		return 0, nil
	}

	// One transaction for the whole batch; partial failure must not leave
	// the promoted-key tracking out of sync with the backend.
	if err := s.items.CreateBatch(ctx, items); err != nil {
		return 0, asDependencyFailure(err)
	}

	s.markPromoted(keys)

	s.logger.Info("suggestions promoted",
		zap.String("assessment_id", assessmentID.String()),
		zap.Int("created", len(items)))
	return len(items), nil
}

// buildItem turns one selection into an action item ready for the batch
// insert. A re-selected pair fails with ErrAlreadyPromoted, which the
// caller absorbs into a no-op.
func (s *promotionService) buildItem(orgID uuid.UUID, actor models.Actor, assessment *models.SelfAssessment, sel Selection) (*models.ActionItem, promotionKey, error) {
	key := promotionKey{submissionID: sel.SubmissionID, index: sel.Index}
	if s.alreadyPromoted(key) {
		return nil, key, fmt.Errorf("%w: submission %s index %d",
			apperrors.ErrAlreadyPromoted, sel.SubmissionID, sel.Index)
	}

	submission := assessment.SubmissionByID(sel.SubmissionID)
	if submission == nil {
		return nil, key, fmt.Errorf("%w: submission %s does not belong to assessment %s",
			apperrors.ErrValidationFailed, sel.SubmissionID, assessment.ID)
	}
	if submission.AIAnalysis == nil || !submission.AIAnalysis.IsStructured() {
		return nil, key, fmt.Errorf("%w: submission %s has no structured analysis",
			apperrors.ErrValidationFailed, sel.SubmissionID)
	}
	if sel.Index < 0 || sel.Index >= len(submission.AIAnalysis.SuggestedActions) {
		return nil, key, fmt.Errorf("%w: suggestion index %d out of range",
			apperrors.ErrValidationFailed, sel.Index)
	}

	suggestion := submission.AIAnalysis.SuggestedActions[sel.Index]

	description := suggestion.Action
	if sel.Description != nil && *sel.Description != "" {
		description = *sel.Description
	}
	priority := suggestion.Priority
	if sel.Priority != nil && *sel.Priority != "" {
		priority = *sel.Priority
	}

	item := &models.ActionItem{
		OrgID:         orgID,
		CriterionID:   submission.PromptID,
		StoreID:       assessment.StoreID,
		AssessmentID:  &assessment.ID,
		Description:   description,
		Status:        models.ActionItemStatusOpen,
		Priority:      models.NormalizePriority(priority),
		EvidencePhoto: &submission.MediaURL,
		CreatedBy:     actor.ID,
	}
	return item, key, nil
}

func (s *promotionService) alreadyPromoted(key promotionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.promoted[key]
	return ok
}

func (s *promotionService) markPromoted(keys []promotionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.promoted[k] = struct{}{}
	}
}
