package models

import (
	"encoding/json"
	"strings"

	"github.com/krauseinafrica/storescore-sub001/pkg/jsonutil"
)

// AIAnalysis is the structured payload returned by the photo-analysis
// backend. Historically the field stored a plain free-text analysis before
// the structured shape was introduced; both forms remain in the wild, so
// parsing must tolerate either and never fail on malformed JSON.
type AIAnalysis struct {
	Summary          string            `json:"summary,omitempty"`
	Findings         []string          `json:"findings,omitempty"`
	SuggestedActions []SuggestedAction `json:"action_items,omitempty"`

	// RawText holds the original payload when it is not (valid) structured
	// JSON. Renderers fall back to showing it verbatim.
	RawText string `json:"raw_text,omitempty"`
}

// SuggestedAction is one AI-suggested remediation. Un-tracked until
// promoted into a first-class action item.
type SuggestedAction struct {
	Priority string `json:"priority"`
	Action   string `json:"action"`
}

// IsStructured reports whether the payload parsed into the structured shape.
func (a *AIAnalysis) IsStructured() bool {
	return a.Summary != "" || len(a.Findings) > 0 || len(a.SuggestedActions) > 0
}

// rawAnalysis tolerates backends that return numbers or other scalars where
// strings are expected.
type rawAnalysis struct {
	Summary     json.RawMessage   `json:"summary"`
	Findings    []json.RawMessage `json:"findings"`
	ActionItems []struct {
		Priority json.RawMessage `json:"priority"`
		Action   json.RawMessage `json:"action"`
	} `json:"action_items"`
}

// ParseAnalysis parses an analysis payload, accepting either the structured
// {summary, findings, action_items} JSON shape or the legacy free-text form.
// It never returns an error: anything that does not parse as the structured
// shape is carried as opaque text.
func ParseAnalysis(payload string) *AIAnalysis {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil
	}

	candidate := trimmed
	if !json.Valid([]byte(candidate)) {
		// Some backends wrap the JSON in prose or markdown fences.
		if extracted, ok := extractBalancedObject(candidate); ok {
			candidate = extracted
		}
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(candidate), &raw); err == nil {
		analysis := &AIAnalysis{Summary: jsonutil.FlexibleStringValue(raw.Summary)}
		for _, f := range raw.Findings {
			if s := jsonutil.FlexibleStringValue(f); s != "" {
				analysis.Findings = append(analysis.Findings, s)
			}
		}
		for _, item := range raw.ActionItems {
			action := jsonutil.FlexibleStringValue(item.Action)
			if action == "" {
				continue
			}
			analysis.SuggestedActions = append(analysis.SuggestedActions, SuggestedAction{
				Priority: jsonutil.FlexibleStringValue(item.Priority),
				Action:   action,
			})
		}
		if analysis.IsStructured() {
			return analysis
		}
	}

	// Legacy shape: keep the payload verbatim.
	return &AIAnalysis{RawText: trimmed}
}

// extractBalancedObject finds the first balanced {...} in s, skipping
// brackets inside JSON strings.
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				return "", false
			}
		}
	}

	return "", false
}
