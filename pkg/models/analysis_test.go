package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysis_Structured(t *testing.T) {
	payload := `{
		"summary": "The shelf is understocked.",
		"findings": ["Empty facings on rows 2 and 3", "Price tags missing"],
		"action_items": [
			{"priority": "high", "action": "Restock rows 2 and 3"},
			{"priority": "low", "action": "Reprint missing price tags"}
		]
	}`

	analysis := ParseAnalysis(payload)
	require.NotNil(t, analysis)
	assert.True(t, analysis.IsStructured())
	assert.Equal(t, "The shelf is understocked.", analysis.Summary)
	assert.Len(t, analysis.Findings, 2)
	require.Len(t, analysis.SuggestedActions, 2)
	assert.Equal(t, "high", analysis.SuggestedActions[0].Priority)
	assert.Equal(t, "Restock rows 2 and 3", analysis.SuggestedActions[0].Action)
	assert.Empty(t, analysis.RawText)
}

func TestParseAnalysis_LegacyText(t *testing.T) {
	payload := "The displayed shelf appears adequately stocked. No issues found."

	analysis := ParseAnalysis(payload)
	require.NotNil(t, analysis)
	assert.False(t, analysis.IsStructured())
	assert.Equal(t, payload, analysis.RawText)
}

func TestParseAnalysis_JSONEmbeddedInProse(t *testing.T) {
	payload := "Here is my assessment:\n```json\n" +
		`{"summary": "Freezer seal worn", "action_items": [{"priority": "high", "action": "Replace the seal"}]}` +
		"\n```\nLet me know if you need more detail."

	analysis := ParseAnalysis(payload)
	require.NotNil(t, analysis)
	assert.True(t, analysis.IsStructured())
	assert.Equal(t, "Freezer seal worn", analysis.Summary)
	require.Len(t, analysis.SuggestedActions, 1)
}

func TestParseAnalysis_Scalars(t *testing.T) {
	// Backends occasionally emit numbers where strings are expected.
	payload := `{"summary": 4, "findings": [true, "aisle blocked"], "action_items": [{"priority": 1, "action": "Clear the aisle"}]}`

	analysis := ParseAnalysis(payload)
	require.NotNil(t, analysis)
	assert.Equal(t, "4", analysis.Summary)
	assert.Equal(t, []string{"true", "aisle blocked"}, analysis.Findings)
	require.Len(t, analysis.SuggestedActions, 1)
	assert.Equal(t, "1", analysis.SuggestedActions[0].Priority)
}

func TestParseAnalysis_EmptyAndDegenerate(t *testing.T) {
	assert.Nil(t, ParseAnalysis(""))
	assert.Nil(t, ParseAnalysis("   \n\t "))

	// Valid JSON that carries none of the structured fields falls back to
	// raw text rather than an empty struct.
	analysis := ParseAnalysis(`{"verdict": "ok"}`)
	require.NotNil(t, analysis)
	assert.False(t, analysis.IsStructured())
	assert.Equal(t, `{"verdict": "ok"}`, analysis.RawText)

	// Unbalanced braces never panic or error.
	analysis = ParseAnalysis(`before {"summary": "x" and then nothing`)
	require.NotNil(t, analysis)
	assert.False(t, analysis.IsStructured())
}

func TestParseAnalysis_SkipsActionsWithoutText(t *testing.T) {
	payload := `{"summary": "ok", "action_items": [{"priority": "high"}, {"priority": "low", "action": "Sweep the stockroom"}]}`

	analysis := ParseAnalysis(payload)
	require.NotNil(t, analysis)
	require.Len(t, analysis.SuggestedActions, 1)
	assert.Equal(t, "Sweep the stockroom", analysis.SuggestedActions[0].Action)
}

func TestExtractBalancedObject(t *testing.T) {
	got, ok := extractBalancedObject(`noise {"a": "b {not a brace}"} trailing`)
	require.True(t, ok)
	assert.Equal(t, `{"a": "b {not a brace}"}`, got)

	_, ok = extractBalancedObject("no object here")
	assert.False(t, ok)

	_, ok = extractBalancedObject(`{"a": `)
	assert.False(t, ok)
}
