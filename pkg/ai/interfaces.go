// Package ai provides clients for the photo-analysis backend. The workflow
// treats the backend as an opaque asynchronous oracle: it sends an image
// reference plus context and receives either a free-text verdict or a
// structured analysis payload.
package ai

import (
	"context"

	"github.com/krauseinafrica/storescore-sub001/pkg/models"
)

// VerifyRequest asks for an advisory verdict on a corrective-action photo.
type VerifyRequest struct {
	ImageURL      string
	CriterionName string
	SectionName   string
}

// AnalyzeRequest asks for a structured analysis of a self-assessment photo.
type AnalyzeRequest struct {
	ImageURL   string
	PromptText string
}

// Analyzer defines the interface for photo-analysis operations. Use this
// interface for dependency injection to enable mocking in tests.
type Analyzer interface {
	// VerifyPhoto returns a free-text verdict on whether the photo shows
	// the criterion resolved. Advisory only; never drives a transition.
	VerifyPhoto(ctx context.Context, req VerifyRequest) (string, error)

	// AnalyzeSubmission returns a structured analysis of an assessment
	// photo: summary, findings, and suggested action items.
	AnalyzeSubmission(ctx context.Context, req AnalyzeRequest) (*models.AIAnalysis, error)
}

const analyzeInstruction = `You are a retail store audit assistant. Analyze the photo against the prompt and respond with JSON only, in this shape:
{"summary": "...", "findings": ["..."], "action_items": [{"priority": "critical|high|medium|low", "action": "..."}]}`

const verifyInstruction = `You are a retail store audit assistant. State briefly whether the photo shows the issue resolved, and what remains outstanding if not.`
