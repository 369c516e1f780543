package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krauseinafrica/storescore-sub001/pkg/apperrors"
	"github.com/krauseinafrica/storescore-sub001/pkg/config"
	"github.com/krauseinafrica/storescore-sub001/pkg/models"
	"github.com/krauseinafrica/storescore-sub001/pkg/repositories"
)

// PollResult is the outcome of one reconciliation run: the freshest fetched
// assessment and whether any submission carried an AI analysis by the time
// polling stopped.
type PollResult struct {
	Assessment    *models.SelfAssessment
	AnalysisFound bool
	Attempts      int
}

// AnalysisPoller bridges the gap between "assessment submitted" and "AI
// analysis available". Analysis is produced by an external asynchronous
// process; the poller re-fetches the assessment at a fixed interval until a
// result lands or the attempt budget runs out.
//
// One loop per assessment id: a second Await for an in-flight id fails with
// ErrPollInProgress, and Cancel tears down the loop when the caller
// navigates away so a late result never lands on a stale view.
type AnalysisPoller struct {
	repo   repositories.AssessmentRepository
	cfg    config.PollerConfig
	logger *zap.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]context.CancelFunc
}

// NewAnalysisPoller creates a new AnalysisPoller.
func NewAnalysisPoller(repo repositories.AssessmentRepository, cfg config.PollerConfig, logger *zap.Logger) *AnalysisPoller {
	return &AnalysisPoller{
		repo:     repo,
		cfg:      cfg,
		logger:   logger.Named("analysis-poller"),
		inFlight: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Await polls until analysis lands, the attempt budget runs out, a fetch
// fails (fail-closed), or the context is cancelled. It returns immediately
// without polling when the assessment already carries analysis or is not in
// submitted status.
func (p *AnalysisPoller) Await(ctx context.Context, orgID, assessmentID uuid.UUID) (*PollResult, error) {
	assessment, err := p.fetch(ctx, orgID, assessmentID)
	if err != nil {
		return nil, err
	}
	if assessment.HasAnalysis() || assessment.Status != models.AssessmentStatusSubmitted {
		return &PollResult{Assessment: assessment, AnalysisFound: assessment.HasAnalysis()}, nil
	}

	ctx, err = p.acquire(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	defer p.release(assessmentID)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		assessment, err = p.fetch(ctx, orgID, assessmentID)
		if err != nil {
			// Fail closed: surface the error instead of retrying a broken
			// dependency indefinitely.
			p.logger.Warn("poll fetch failed, stopping",
				zap.String("assessment_id", assessmentID.String()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, err
		}

		if assessment.HasAnalysis() {
			p.logger.Info("analysis landed",
				zap.String("assessment_id", assessmentID.String()),
				zap.Int("attempt", attempt))
			return &PollResult{Assessment: assessment, AnalysisFound: true, Attempts: attempt}, nil
		}
	}

	p.logger.Info("analysis not available within attempt budget",
		zap.String("assessment_id", assessmentID.String()),
		zap.Int("max_attempts", p.cfg.MaxAttempts))
	return &PollResult{Assessment: assessment, AnalysisFound: false, Attempts: p.cfg.MaxAttempts}, nil
}

// Cancel stops any in-flight poll for the assessment. Safe to call when no
// poll is running.
func (p *AnalysisPoller) Cancel(assessmentID uuid.UUID) {
	p.mu.Lock()
	cancel, ok := p.inFlight[assessmentID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

func (p *AnalysisPoller) acquire(ctx context.Context, assessmentID uuid.UUID) (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.inFlight[assessmentID]; exists {
		return nil, fmt.Errorf("%w: assessment %s", apperrors.ErrPollInProgress, assessmentID)
	}
	ctx, cancel := context.WithCancel(ctx)
	p.inFlight[assessmentID] = cancel
	return ctx, nil
}

func (p *AnalysisPoller) release(assessmentID uuid.UUID) {
	p.mu.Lock()
	cancel := p.inFlight[assessmentID]
	delete(p.inFlight, assessmentID)
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *AnalysisPoller) fetch(ctx context.Context, orgID, assessmentID uuid.UUID) (*models.SelfAssessment, error) {
	assessment, err := p.repo.Get(ctx, orgID, assessmentID)
	if err != nil {
		return nil, asDependencyFailure(err)
	}
	return assessment, nil
}
