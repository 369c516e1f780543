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

// AssessmentPatch describes a partial update to a self-assessment. Nil
// fields are left untouched.
type AssessmentPatch struct {
	Status        *models.SelfAssessmentStatus
	SubmittedAt   *time.Time
	ReviewedBy    *uuid.UUID
	ReviewedAt    *time.Time
	ReviewerNotes *string
}

// SubmissionReviewPatch carries a reviewer's correction for one submission.
type SubmissionReviewPatch struct {
	Rating     *models.Rating
	Notes      *string
	ReviewedBy uuid.UUID
}

// AssessmentRepository provides data access for self-assessments and their
// per-prompt submissions.
type AssessmentRepository interface {
	// Create inserts a new self-assessment in pending status.
	Create(ctx context.Context, assessment *models.SelfAssessment) error

	// Get returns an assessment with its submissions loaded.
	Get(ctx context.Context, orgID, assessmentID uuid.UUID) (*models.SelfAssessment, error)

	// ListByStatus returns assessments in the given status, newest first.
	ListByStatus(ctx context.Context, orgID uuid.UUID, status models.SelfAssessmentStatus) ([]*models.SelfAssessment, error)

	// Update applies a partial update to the assessment record.
	Update(ctx context.Context, orgID, assessmentID uuid.UUID, patch AssessmentPatch) error

	// UpsertSubmission inserts or replaces the submission for the
	// submission's (assessment, prompt) pair. Replacement discards the
	// prior caption and self-rating for that prompt only.
	UpsertSubmission(ctx context.Context, submission *models.AssessmentSubmission) error

	// MergeAnalysis sets the AI rating and analysis on a submission, but
	// only if neither is already present (write-once-then-frozen).
	// Returns the number of rows updated (0 when frozen).
	MergeAnalysis(ctx context.Context, submissionID uuid.UUID, rating *models.Rating, analysis *models.AIAnalysis) (int64, error)

	// ApplyReview sets the reviewer override fields on a submission.
	ApplyReview(ctx context.Context, submissionID uuid.UUID, patch SubmissionReviewPatch) error

	// Delete removes an assessment and its submissions. Callers must detach
	// derived action items first; this method never cascades to them.
	Delete(ctx context.Context, orgID, assessmentID uuid.UUID) error
}

type assessmentRepository struct {
	db *database.DB
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(db *database.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

var _ AssessmentRepository = (*assessmentRepository)(nil)

func (r *assessmentRepository) Create(ctx context.Context, assessment *models.SelfAssessment) error {
	if assessment.ID == uuid.Nil {
		assessment.ID = uuid.New()
	}
	now := time.Now()
	assessment.CreatedAt = now
	assessment.UpdatedAt = now
	if assessment.Status == "" {
		assessment.Status = models.AssessmentStatusPending
	}

	query := `
		INSERT INTO self_assessments (
			id, org_id, template_id, store_id, submitted_by, status,
			due_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		assessment.ID,
		assessment.OrgID,
		assessment.TemplateID,
		assessment.StoreID,
		assessment.SubmittedBy,
		assessment.Status,
		assessment.DueDate,
		assessment.CreatedAt,
		assessment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert assessment: %w", err)
	}
	return nil
}

func (r *assessmentRepository) Get(ctx context.Context, orgID, assessmentID uuid.UUID) (*models.SelfAssessment, error) {
	query := `
		SELECT id, org_id, template_id, store_id, submitted_by, status,
		       due_date, submitted_at, reviewed_by, reviewed_at,
		       reviewer_notes, created_at, updated_at
		FROM self_assessments
		WHERE org_id = $1 AND id = $2`

	assessment, err := scanAssessment(r.db.QueryRow(ctx, query, orgID, assessmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	submissions, err := r.listSubmissions(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	assessment.Submissions = submissions

	return assessment, nil
}

func (r *assessmentRepository) ListByStatus(ctx context.Context, orgID uuid.UUID, status models.SelfAssessmentStatus) ([]*models.SelfAssessment, error) {
	query := `
		SELECT id, org_id, template_id, store_id, submitted_by, status,
		       due_date, submitted_at, reviewed_by, reviewed_at,
		       reviewer_notes, created_at, updated_at
		FROM self_assessments
		WHERE org_id = $1 AND status = $2
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, orgID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var assessments []*models.SelfAssessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assessments: %w", err)
	}

	return assessments, nil
}

func (r *assessmentRepository) Update(ctx context.Context, orgID, assessmentID uuid.UUID, patch AssessmentPatch) error {
	setClauses := []string{"updated_at = now()"}
	args := []any{orgID, assessmentID}

	addSet := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		addSet("status", *patch.Status)
	}
	if patch.SubmittedAt != nil {
		addSet("submitted_at", *patch.SubmittedAt)
	}
	if patch.ReviewedBy != nil {
		addSet("reviewed_by", *patch.ReviewedBy)
	}
	if patch.ReviewedAt != nil {
		addSet("reviewed_at", *patch.ReviewedAt)
	}
	if patch.ReviewerNotes != nil {
		addSet("reviewer_notes", *patch.ReviewerNotes)
	}

	query := "UPDATE self_assessments SET " + strings.Join(setClauses, ", ") + " WHERE org_id = $1 AND id = $2"

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *assessmentRepository) UpsertSubmission(ctx context.Context, submission *models.AssessmentSubmission) error {
	if submission.ID == uuid.Nil {
		submission.ID = uuid.New()
	}
	now := time.Now()
	submission.CreatedAt = now
	submission.UpdatedAt = now

	query := `
		INSERT INTO assessment_submissions (
			id, assessment_id, prompt_id, media_url, caption, self_rating,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (assessment_id, prompt_id) DO UPDATE SET
			media_url = EXCLUDED.media_url,
			caption = EXCLUDED.caption,
			self_rating = EXCLUDED.self_rating,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		submission.ID,
		submission.AssessmentID,
		submission.PromptID,
		submission.MediaURL,
		submission.Caption,
		submission.SelfRating,
		submission.CreatedAt,
		submission.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert submission: %w", err)
	}
	return nil
}

func (r *assessmentRepository) MergeAnalysis(ctx context.Context, submissionID uuid.UUID, rating *models.Rating, analysis *models.AIAnalysis) (int64, error) {
	var analysisJSON []byte
	var err error
	if analysis != nil {
		analysisJSON, err = json.Marshal(analysis)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal analysis: %w", err)
		}
	}

	// AI fields are write-once; the WHERE clause freezes them after the
	// first merge and keeps stale refreshes off reviewer-touched rows.
	query := `
		UPDATE assessment_submissions
		SET ai_rating = $2, ai_analysis = $3, updated_at = now()
		WHERE id = $1 AND ai_rating IS NULL AND ai_analysis IS NULL`

	tag, err := r.db.Exec(ctx, query, submissionID, rating, analysisJSON)
	if err != nil {
		return 0, fmt.Errorf("failed to merge analysis: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *assessmentRepository) ApplyReview(ctx context.Context, submissionID uuid.UUID, patch SubmissionReviewPatch) error {
	setClauses := []string{"updated_at = now()"}
	args := []any{submissionID, patch.ReviewedBy}
	setClauses = append(setClauses, "reviewed_by = $2")

	addSet := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Rating != nil {
		addSet("reviewer_rating", *patch.Rating)
	}
	if patch.Notes != nil {
		addSet("reviewer_notes", *patch.Notes)
	}

	query := "UPDATE assessment_submissions SET " + strings.Join(setClauses, ", ") + " WHERE id = $1"

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to apply submission review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *assessmentRepository) Delete(ctx context.Context, orgID, assessmentID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM self_assessments WHERE org_id = $1 AND id = $2`,
		orgID, assessmentID)
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *assessmentRepository) listSubmissions(ctx context.Context, assessmentID uuid.UUID) ([]*models.AssessmentSubmission, error) {
	query := `
		SELECT id, assessment_id, prompt_id, media_url, caption, self_rating,
		       ai_rating, ai_analysis, reviewer_rating, reviewer_notes,
		       reviewed_by, created_at, updated_at
		FROM assessment_submissions
		WHERE assessment_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var submissions []*models.AssessmentSubmission
	for rows.Next() {
		var s models.AssessmentSubmission
		var analysisJSON []byte
		err := rows.Scan(
			&s.ID,
			&s.AssessmentID,
			&s.PromptID,
			&s.MediaURL,
			&s.Caption,
			&s.SelfRating,
			&s.AIRating,
			&analysisJSON,
			&s.ReviewerRating,
			&s.ReviewerNotes,
			&s.ReviewedBy,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		if len(analysisJSON) > 0 && string(analysisJSON) != "null" {
			if err := json.Unmarshal(analysisJSON, &s.AIAnalysis); err != nil {
				return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
			}
		}
		submissions = append(submissions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return submissions, nil
}

func scanAssessment(row pgx.Row) (*models.SelfAssessment, error) {
	var a models.SelfAssessment
	err := row.Scan(
		&a.ID,
		&a.OrgID,
		&a.TemplateID,
		&a.StoreID,
		&a.SubmittedBy,
		&a.Status,
		&a.DueDate,
		&a.SubmittedAt,
		&a.ReviewedBy,
		&a.ReviewedAt,
		&a.ReviewerNotes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan assessment: %w", err)
	}
	return &a, nil
}
