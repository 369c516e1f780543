package ai

import (
	"context"

	"github.com/krauseinafrica/storescore-sub001/pkg/models"
)

// Mock is a test double for Analyzer.
type Mock struct {
	Verdict     string
	VerdictErr  error
	Analysis    *models.AIAnalysis
	AnalysisErr error

	VerifyCalls  []VerifyRequest
	AnalyzeCalls []AnalyzeRequest
}

var _ Analyzer = (*Mock)(nil)

func (m *Mock) VerifyPhoto(ctx context.Context, req VerifyRequest) (string, error) {
	m.VerifyCalls = append(m.VerifyCalls, req)
	return m.Verdict, m.VerdictErr
}

func (m *Mock) AnalyzeSubmission(ctx context.Context, req AnalyzeRequest) (*models.AIAnalysis, error) {
	m.AnalyzeCalls = append(m.AnalyzeCalls, req)
	return m.Analysis, m.AnalysisErr
}
