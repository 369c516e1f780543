package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krauseinafrica/storescore-sub001/pkg/apperrors"
	"github.com/krauseinafrica/storescore-sub001/pkg/models"
	"github.com/krauseinafrica/storescore-sub001/pkg/repositories"
)

// CreateAssessmentRequest carries the fields of a new self-assessment.
type CreateAssessmentRequest struct {
	TemplateID  uuid.UUID
	StoreID     uuid.UUID
	SubmittedBy uuid.UUID // The store user who will work the assessment
	DueDate     time.Time
}

// SubmissionInput carries one prompt's evidence. Re-uploading for the same
// prompt replaces the prior evidence and discards its caption/self-rating.
type SubmissionInput struct {
	PromptID   uuid.UUID
	MediaURL   string
	Caption    *string
	SelfRating *models.Rating
}

// AssessmentService governs the self-assessment lifecycle from creation
// through photo submission and asynchronous AI scoring to human review.
type AssessmentService interface {
	// Create schedules a new assessment. Managers and admins only.
	Create(ctx context.Context, orgID uuid.UUID, actor models.Actor, req *CreateAssessmentRequest) (*models.SelfAssessment, error)

	Get(ctx context.Context, orgID, assessmentID uuid.UUID) (*models.SelfAssessment, error)
	ListByStatus(ctx context.Context, orgID uuid.UUID, status models.SelfAssessmentStatus) ([]*models.SelfAssessment, error)

	// UpsertSubmission uploads or replaces one prompt's evidence. Only the
	// owning submitter, only while the assessment is pending.
	UpsertSubmission(ctx context.Context, orgID uuid.UUID, actor models.Actor, assessmentID uuid.UUID, input *SubmissionInput) error

	// Submit finalizes the evidence set and hands the assessment to the
	// analysis backend. At least one submission is required; covering every
	// prompt is not.
	Submit(ctx context.Context, orgID uuid.UUID, actor models.Actor, assessmentID uuid.UUID) error

	// MergeAnalysis records an asynchronously produced AI result on the
	// submission matching the given prompt. System-originated; AI fields
	// are write-once and caption/self-rating/reviewer fields are never
	// touched.
	MergeAnalysis(ctx context.Context, orgID, assessmentID, promptID uuid.UUID, rating *models.Rating, analysis *models.AIAnalysis) error

	// Review applies reviewer overrides. Admins only. Only submissions
	// with a non-empty override are touched. Reviewing an already-reviewed
	// assessment is an idempotent update-in-place.
	Review(ctx context.Context, orgID uuid.UUID, actor models.Actor, assessmentID uuid.UUID, notes string, overrides []models.ReviewOverride) error

	// Delete removes an assessment after detaching any action items that
	// were promoted from it, so they are never orphaned.
	Delete(ctx context.Context, orgID uuid.UUID, actor models.Actor, assessmentID uuid.UUID) error
}

type assessmentService struct {
	repo   repositories.AssessmentRepository
	items  repositories.ActionItemRepository
	logger *zap.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	repo repositories.AssessmentRepository,
	items repositories.ActionItemRepository,
	logger *zap.Logger,
) AssessmentService {
	return &assessmentService{
		repo:   repo,
		items:  items,
		logger: logger.Named("assessments"),
	}
}

var _ AssessmentService = (*assessmentService)(nil)

func (s *assessmentService) Create(ctx context.Context, orgID uuid.UUID, actor models.Actor, req *CreateAssessmentRequest) (*models.SelfAssessment, error) {
	if !actor.IsManager() {
		return nil, fmt.Errorf("%w: role %s may not schedule assessments", apperrors.ErrForbidden, actor.Role)
	}
	if req.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", apperrors.ErrValidationFailed)
	}

	assessment := &models.SelfAssessment{
		OrgID:       orgID,
		TemplateID:  req.TemplateID,
		StoreID:     req.StoreID,
		SubmittedBy: req.SubmittedBy,
		Status:      models.AssessmentStatusPending,
		DueDate:     req.DueDate,
	}
	if err := s.repo.Create(ctx, assessment); err != nil {
		return nil, asDependencyFailure(err)
	}

	s.logger.Info("assessment scheduled",
		zap.String("assessment_id", assessment.ID.String()),
		zap.String("store_id", assessment.StoreID.String()),
		zap.Time("due", assessment.DueDate))

	return assessment, nil
}

func (s *assessmentService) Get(ctx context.Context, orgID, assessmentID uuid.UUID) (*models.SelfAssessment, error) {
	assessment, err := s.repo.Get(ctx, orgID, assessmentID)
	if err != nil {
		return nil, asDependencyFailure(err)
	}
	return assessment, nil
}

func (s *assessmentService) ListByStatus(ctx context.Context, orgID uuid.UUID, status models.SelfAssessmentStatus) ([]*models.SelfAssessment, error) {
	assessments, err := s.repo.ListByStatus(ctx, orgID, status)
	if err != nil {
		return nil, asDependencyFailure(err)
	}
	return assessments, nil
}

func (s *assessmentService) UpsertSubmission(ctx context.Context, orgID uuid.UUID, actor models.Actor, assessmentID uuid.UUID, input *SubmissionInput) error {
	assessment, err := s.repo.Get(ctx, orgID, assessmentID)
	if err != nil {
		return asDependencyFailure(err)
	}
	if assessment.Status != models.AssessmentStatusPending {
		return fmt.Errorf("%w: evidence may only change while the assessment is pending, status is %s",
			apperrors.ErrInvalidTransition, assessment.Status)
	}
	if actor.ID != assessment.SubmittedBy {
		return fmt.Errorf("%w: only the owning submitter may upload evidence", apperrors.ErrForbidden)
	}
	if input.MediaURL == "" {
		return fmt.Errorf("%w: media reference is required", apperrors.ErrValidationFailed)
	}
	if input.SelfRating != nil && !models.IsValidRating(*input.SelfRating) {
		return fmt.Errorf("%w: unknown rating %q", apperrors.ErrValidationFailed, *input.SelfRating)
	}

	submission := &models.AssessmentSubmission{
		AssessmentID: assessmentID,
		PromptID:     input.PromptID,
		MediaURL:     input.MediaURL,
		Caption:      input.Caption,
		SelfRating:   input.SelfRating,
	}
	if err := s.repo.UpsertSubmission(ctx, submission); err != nil {
		return asDependencyFailure(err)
	}
	return nil
}

func (s *assessmentService) Submit(ctx context.Context, orgID uuid.UUID, actor models.Actor, assessmentID uuid.UUID) error {
	assessment, err := s.repo.Get(ctx, orgID, assessmentID)
	if err != nil {
		return asDependencyFailure(err)
	}
	if !assessment.Status.CanTransitionTo(models.AssessmentStatusSubmitted) {
		return fmt.Errorf("%w: cannot submit an assessment in status %s",
			apperrors.ErrInvalidTransition, assessment.Status)
	}
	if actor.ID != assessment.SubmittedBy {
		return fmt.Errorf("%w: only the owning submitter may submit", apperrors.ErrForbidden)
	}
	if len(assessment.Submissions) == 0 {
		return fmt.Errorf("%w: at least one prompt needs evidence before submitting", apperrors.ErrValidationFailed)
	}

	now := time.Now()
	status := models.AssessmentStatusSubmitted
	patch := repositories.AssessmentPatch{Status: &status, SubmittedAt: &now}
	if err := s.repo.Update(ctx, orgID, assessmentID, patch); err != nil {
		return asDependencyFailure(err)
	}

	s.logger.Info("assessment submitted",
		zap.String("assessment_id", assessmentID.String()),
		zap.Int("submissions", len(assessment.Submissions)))
	return nil
}

func (s *assessmentService) MergeAnalysis(ctx context.Context, orgID, assessmentID, promptID uuid.UUID, rating *models.Rating, analysis *models.AIAnalysis) error {
	assessment, err := s.repo.Get(ctx, orgID, assessmentID)
	if err != nil {
		return asDependencyFailure(err)
	}
	if assessment.Status == models.AssessmentStatusPending {
		return fmt.Errorf("%w: analysis cannot land before submission", apperrors.ErrInvalidTransition)
	}

	submission := assessment.SubmissionForPrompt(promptID)
	if submission == nil {
		return fmt.Errorf("%w: no submission for prompt %s", apperrors.ErrNotFound, promptID)
	}

	updated, err := s.repo.MergeAnalysis(ctx, submission.ID, rating, analysis)
	if err != nil {
		return asDependencyFailure(err)
	}
	if updated == 0 {
		// Frozen: a result already landed for this submission. Stale
		// refreshes are dropped, not applied.
		s.logger.Debug("analysis already present, merge skipped",
			zap.String("submission_id", submission.ID.String()))
		return nil
	}

	s.logger.Info("analysis merged",
		zap.String("assessment_id", assessmentID.String()),
		zap.String("prompt_id", promptID.String()))
	return nil
}

func (s *assessmentService) Review(ctx context.Context, orgID uuid.UUID, actor models.Actor, assessmentID uuid.UUID, notes string, overrides []models.ReviewOverride) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: role %s may not review assessments", apperrors.ErrForbidden, actor.Role)
	}

	assessment, err := s.repo.Get(ctx, orgID, assessmentID)
	if err != nil {
		return asDependencyFailure(err)
	}
	if !assessment.Status.CanTransitionTo(models.AssessmentStatusReviewed) {
		return fmt.Errorf("%w: cannot review an assessment in status %s",
			apperrors.ErrInvalidTransition, assessment.Status)
	}

	for _, o := range overrides {
		if o.Rating != nil && !models.IsValidRating(*o.Rating) {
			return fmt.Errorf("%w: unknown rating %q", apperrors.ErrValidationFailed, *o.Rating)
		}
	}

	// Apply only the non-empty overrides; untouched submissions keep their
	// AI and self-reported values.
	for _, o := range overrides {
		if o.IsEmpty() {
			continue
		}
		if assessment.SubmissionByID(o.SubmissionID) == nil {
			return fmt.Errorf("%w: submission %s does not belong to this assessment",
				apperrors.ErrValidationFailed, o.SubmissionID)
		}
		patch := repositories.SubmissionReviewPatch{
			Rating:     o.Rating,
			Notes:      o.Notes,
			ReviewedBy: actor.ID,
		}
		if err := s.repo.ApplyReview(ctx, o.SubmissionID, patch); err != nil {
			return asDependencyFailure(err)
		}
	}

	now := time.Now()
	status := models.AssessmentStatusReviewed
	patch := repositories.AssessmentPatch{
		Status:     &status,
		ReviewedBy: &actor.ID,
		ReviewedAt: &now,
	}
	if notes != "" {
		patch.ReviewerNotes = &notes
	}
	if err := s.repo.Update(ctx, orgID, assessmentID, patch); err != nil {
		return asDependencyFailure(err)
	}

	s.logger.Info("assessment reviewed",
		zap.String("assessment_id", assessmentID.String()),
		zap.String("reviewed_by", actor.ID.String()),
		zap.Int("overrides", len(overrides)))
	return nil
}

func (s *assessmentService) Delete(ctx context.Context, orgID uuid.UUID, actor models.Actor, assessmentID uuid.UUID) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: role %s may not delete assessments", apperrors.ErrForbidden, actor.Role)
	}

	// Promoted action items must outlive the assessment they came from.
	if err := s.items.DetachAssessment(ctx, orgID, assessmentID); err != nil {
		return asDependencyFailure(err)
	}
	if err := s.repo.Delete(ctx, orgID, assessmentID); err != nil {
		return asDependencyFailure(err)
	}

	s.logger.Info("assessment deleted", zap.String("assessment_id", assessmentID.String()))
	return nil
}
