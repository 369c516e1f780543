package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krauseinafrica/storescore-sub001/pkg/apperrors"
	"github.com/krauseinafrica/storescore-sub001/pkg/models"
	"github.com/krauseinafrica/storescore-sub001/pkg/testhelpers"
)

func newTestAssessment(orgID uuid.UUID) *models.SelfAssessment {
	return &models.SelfAssessment{
		OrgID:       orgID,
		TemplateID:  uuid.New(),
		StoreID:     uuid.New(),
		SubmittedBy: uuid.New(),
		DueDate:     time.Now().Add(48 * time.Hour),
	}
}

func TestAssessmentRepository_CreateAndGet(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewAssessmentRepository(db.DB)
	ctx := context.Background()
	orgID := uuid.New()

	a := newTestAssessment(orgID)
	require.NoError(t, repo.Create(ctx, a))
	require.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, models.AssessmentStatusPending, a.Status)

	got, err := repo.Get(ctx, orgID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.StoreID, got.StoreID)
	assert.Empty(t, got.Submissions)

	_, err = repo.Get(ctx, uuid.New(), a.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAssessmentRepository_UpsertSubmission(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewAssessmentRepository(db.DB)
	ctx := context.Background()
	orgID := uuid.New()

	a := newTestAssessment(orgID)
	require.NoError(t, repo.Create(ctx, a))

	promptID := uuid.New()
	caption := "dairy cooler, front"
	rating := models.RatingPass
	first := &models.AssessmentSubmission{
		AssessmentID: a.ID,
		PromptID:     promptID,
		MediaURL:     "https://cdn.example.com/assessments/10.jpg",
		Caption:      &caption,
		SelfRating:   &rating,
	}
	require.NoError(t, repo.UpsertSubmission(ctx, first))

	// Same prompt again: the row is replaced, caption and self-rating reset.
	second := &models.AssessmentSubmission{
		AssessmentID: a.ID,
		PromptID:     promptID,
		MediaURL:     "https://cdn.example.com/assessments/11.jpg",
	}
	require.NoError(t, repo.UpsertSubmission(ctx, second))

	got, err := repo.Get(ctx, orgID, a.ID)
	require.NoError(t, err)
	require.Len(t, got.Submissions, 1)
	assert.Equal(t, "https://cdn.example.com/assessments/11.jpg", got.Submissions[0].MediaURL)
	assert.Nil(t, got.Submissions[0].Caption)
	assert.Nil(t, got.Submissions[0].SelfRating)
}

func TestAssessmentRepository_MergeAnalysis_WriteOnce(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewAssessmentRepository(db.DB)
	ctx := context.Background()
	orgID := uuid.New()

	a := newTestAssessment(orgID)
	require.NoError(t, repo.Create(ctx, a))

	sub := &models.AssessmentSubmission{
		AssessmentID: a.ID,
		PromptID:     uuid.New(),
		MediaURL:     "https://cdn.example.com/assessments/12.jpg",
	}
	require.NoError(t, repo.UpsertSubmission(ctx, sub))

	got, err := repo.Get(ctx, orgID, a.ID)
	require.NoError(t, err)
	submissionID := got.Submissions[0].ID

	rating := models.RatingNeedsWork
	analysis := &models.AIAnalysis{
		Summary: "Cooler temperature log is missing entries.",
		SuggestedActions: []models.SuggestedAction{
			{Priority: "high", Action: "Backfill and resume the temperature log"},
		},
	}
	updated, err := repo.MergeAnalysis(ctx, submissionID, &rating, analysis)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	// Second merge hits the frozen row and writes nothing.
	stale := models.RatingPass
	updated, err = repo.MergeAnalysis(ctx, submissionID, &stale, &models.AIAnalysis{Summary: "All good."})
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)

	got, err = repo.Get(ctx, orgID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Submissions[0].AIAnalysis)
	assert.Equal(t, analysis.Summary, got.Submissions[0].AIAnalysis.Summary)
	require.Len(t, got.Submissions[0].AIAnalysis.SuggestedActions, 1)
	assert.Equal(t, rating, *got.Submissions[0].AIRating)
}

func TestAssessmentRepository_ApplyReview(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewAssessmentRepository(db.DB)
	ctx := context.Background()
	orgID := uuid.New()

	a := newTestAssessment(orgID)
	require.NoError(t, repo.Create(ctx, a))
	sub := &models.AssessmentSubmission{
		AssessmentID: a.ID,
		PromptID:     uuid.New(),
		MediaURL:     "https://cdn.example.com/assessments/13.jpg",
	}
	require.NoError(t, repo.UpsertSubmission(ctx, sub))

	got, _ := repo.Get(ctx, orgID, a.ID)
	submissionID := got.Submissions[0].ID

	reviewer := uuid.New()
	rating := models.RatingFail
	notes := "stock rotation not followed"
	require.NoError(t, repo.ApplyReview(ctx, submissionID, SubmissionReviewPatch{
		Rating:     &rating,
		Notes:      &notes,
		ReviewedBy: reviewer,
	}))

	got, err := repo.Get(ctx, orgID, a.ID)
	require.NoError(t, err)
	s := got.Submissions[0]
	require.NotNil(t, s.ReviewerRating)
	assert.Equal(t, rating, *s.ReviewerRating)
	assert.Equal(t, notes, *s.ReviewerNotes)
	assert.Equal(t, reviewer, *s.ReviewedBy)

	err = repo.ApplyReview(ctx, uuid.New(), SubmissionReviewPatch{ReviewedBy: reviewer})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAssessmentRepository_StatusLifecycle(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewAssessmentRepository(db.DB)
	ctx := context.Background()
	orgID := uuid.New()

	a := newTestAssessment(orgID)
	require.NoError(t, repo.Create(ctx, a))

	now := time.Now()
	submitted := models.AssessmentStatusSubmitted
	require.NoError(t, repo.Update(ctx, orgID, a.ID, AssessmentPatch{
		Status:      &submitted,
		SubmittedAt: &now,
	}))

	listed, err := repo.ListByStatus(ctx, orgID, models.AssessmentStatusSubmitted)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, a.ID, listed[0].ID)
	assert.NotNil(t, listed[0].SubmittedAt)
}

func TestAssessmentRepository_Delete(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewAssessmentRepository(db.DB)
	ctx := context.Background()
	orgID := uuid.New()

	a := newTestAssessment(orgID)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.UpsertSubmission(ctx, &models.AssessmentSubmission{
		AssessmentID: a.ID,
		PromptID:     uuid.New(),
		MediaURL:     "https://cdn.example.com/assessments/14.jpg",
	}))

	require.NoError(t, repo.Delete(ctx, orgID, a.ID))

	_, err := repo.Get(ctx, orgID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = repo.Delete(ctx, orgID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
