package evaluation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cite = " (document_id: doc-1, chunk_id: chunk-1, chunk_index: 3)"

// decode builds a report the way it arrives from the generator, as generic JSON.
func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func completeReport(t *testing.T) map[string]any {
	t.Helper()
	return decode(t, `{
		"ticker": "GOOG",
		"quarter": "2025_Q3",
		"prev_quarter": "2025_Q2",
		"summary": {"high_level": "Strong quarter.", "tone": "positive"},
		"guidance": [{"claim": "CapEx raised", "direction_vs_prev": "up",
			"evidence_current": "We now expect CapEx to be $91-93B`+cite+`",
			"evidence_prev": "We expect CapEx of $85B`+cite+`"}],
		"growth_drivers": [{"claim": "Cloud growth", "evidence": "Cloud grew 34%`+cite+`"}],
		"risks": [{"claim": "Depreciation", "is_new": false,
			"evidence_first_mention": "unknown",
			"evidence_current": "Depreciation grew 41%`+cite+`"}],
		"margin_dynamics": [{"claim": "Margin expansion", "evidence": "Operating margin was 33.9%`+cite+`"}],
		"qa_pressure_points": [{"theme": "AI capex ROI", "analyst_name": "unknown",
			"evidence_question": "How should we think about returns?`+cite+`",
			"evidence_answer": "We see strong demand`+cite+`"}]
	}`)
}

func TestEvaluateCompleteReport(t *testing.T) {
	result := Evaluate(completeReport(t))

	assert.True(t, result.IsValid)
	assert.Empty(t, result.StructureErrors)
	assert.Equal(t, 5, result.EvidenceCoverage.TotalClaims)
	assert.Equal(t, 5, result.EvidenceCoverage.ClaimsWithEvidence)
	assert.Equal(t, 1.0, result.EvidenceCoverage.EvidenceCoverageRate)
	assert.Empty(t, result.EvidenceCoverage.Details)
	// evidence_first_mention is "unknown" and therefore not examined.
	assert.Equal(t, 7, result.CitationQuality.TotalEvidenceFields)
	assert.Equal(t, 1.0, result.CitationQuality.CitationRate)
	assert.InDelta(t, 1.0, result.OverallScore, 1e-9)
	assert.Empty(t, result.Recommendations)
}

func TestValidateStructure(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		errs := ValidateStructure(map[string]any{"ticker": "GOOG"})
		assert.Contains(t, errs, "Missing required field: quarter")
		assert.Contains(t, errs, "Missing required field: qa_pressure_points")
		assert.Len(t, errs, 7)
	})

	t.Run("summary problems", func(t *testing.T) {
		report := completeReport(t)
		report["summary"] = map[string]any{"tone": "ecstatic"}
		errs := ValidateStructure(report)
		assert.Equal(t, []string{"Summary missing 'high_level' field", "Invalid tone value: ecstatic"}, errs)

		report["summary"] = "fine"
		assert.Equal(t, []string{"Summary must be an object"}, ValidateStructure(report))

		report["summary"] = map[string]any{"high_level": "x"}
		assert.Equal(t, []string{"Summary missing 'tone' field"}, ValidateStructure(report))
	})

	t.Run("list problems", func(t *testing.T) {
		report := completeReport(t)
		report["risks"] = "none"
		report["guidance"] = []any{"not an object", map[string]any{"claim": "ok"}}
		errs := ValidateStructure(report)
		assert.Equal(t, []string{"guidance[0] must be an object", "risks must be a list"}, errs)
	})
}

func TestEvaluateUnknownEvidenceIsUncovered(t *testing.T) {
	report := completeReport(t)
	report["guidance"] = []any{
		map[string]any{"claim": "Revenue guidance maintained", "evidence_current": "unknown", "evidence_prev": ""},
	}

	result := Evaluate(report)
	coverage := result.EvidenceCoverage
	assert.Equal(t, 5, coverage.TotalClaims)
	assert.Equal(t, 1, coverage.ClaimsWithoutEvidence)
	assert.Less(t, coverage.EvidenceCoverageRate, 1.0)
	require.Len(t, coverage.Details, 1)
	assert.Equal(t, MissingEvidence{
		Section:               "guidance",
		Claim:                 "Revenue guidance maintained",
		MissingEvidenceFields: []string{"evidence_current", "evidence_prev"},
	}, coverage.Details[0])

	assert.Contains(t, result.Recommendations, "Low evidence coverage (80.0%). Ensure all claims have supporting quotes.")
	assert.Contains(t, result.Recommendations, "1 claims missing evidence quotes")
}

func TestCheckCitationQuality(t *testing.T) {
	report := map[string]any{
		"margin_dynamics": []any{
			map[string]any{"claim": "a", "evidence": "operating margin was 33.9% (document_id: abc, chunk_id: xyz)"},
			map[string]any{"claim": "b", "evidence": "margins improved"},
			map[string]any{"claim": "c", "evidence": "see CHUNK_ID 7"},
		},
	}

	quality := CheckCitationQuality(report)
	assert.Equal(t, 3, quality.TotalEvidenceFields)
	assert.Equal(t, 2, quality.EvidenceWithCitations)
	assert.Equal(t, 1, quality.EvidenceWithoutCitations)
	assert.InDelta(t, 2.0/3.0, quality.CitationRate, 1e-9)
}

func TestEvaluateLowCitationRate(t *testing.T) {
	report := completeReport(t)
	for _, field := range listFields {
		for _, item := range report[field].([]any) {
			m := item.(map[string]any)
			for k, v := range m {
				if s, ok := v.(string); ok && strings.HasPrefix(k, "evidence") {
					m[k] = strings.TrimSuffix(s, cite)
				}
			}
		}
	}

	result := Evaluate(report)
	assert.Equal(t, 0.0, result.CitationQuality.CitationRate)
	assert.Equal(t, []string{"Low citation rate (0.0%). Evidence should include document/chunk references."}, result.Recommendations)
	assert.InDelta(t, 0.7, result.OverallScore, 1e-9)
}

func TestEvidenceCoverageSkipsBlankClaimsAndMalformedItems(t *testing.T) {
	report := map[string]any{
		"growth_drivers": []any{
			map[string]any{"claim": "   ", "evidence": "x"},
			map[string]any{"claim": 42, "evidence": "x"},
			"garbage",
			nil,
			map[string]any{"claim": "Search growth", "evidence": []any{"not a string"}},
		},
		"qa_pressure_points": []any{
			map[string]any{"claim": "ignored, qa uses theme", "evidence_question": "q"},
		},
	}

	coverage := CheckEvidenceCoverage(report)
	assert.Equal(t, 1, coverage.TotalClaims)
	assert.Equal(t, 1, coverage.ClaimsWithoutEvidence)
	assert.Equal(t, "growth_drivers", coverage.Details[0].Section)
}

func TestEvidenceCoverageTruncatesClaims(t *testing.T) {
	long := strings.Repeat("c", 150)
	report := map[string]any{
		"risks": []any{map[string]any{"claim": long}},
	}

	coverage := CheckEvidenceCoverage(report)
	require.Len(t, coverage.Details, 1)
	assert.Equal(t, strings.Repeat("c", 100)+"...", coverage.Details[0].Claim)
}

func TestEvaluateEmptyAndGarbageReports(t *testing.T) {
	for name, report := range map[string]map[string]any{
		"nil":   nil,
		"empty": {},
		"wrong types": {
			"ticker": 1, "quarter": nil, "summary": []any{}, "guidance": map[string]any{},
			"growth_drivers": 3, "risks": "x", "margin_dynamics": true, "qa_pressure_points": nil,
		},
	} {
		t.Run(name, func(t *testing.T) {
			result := Evaluate(report)
			assert.False(t, result.IsValid)
			assert.NotEmpty(t, result.StructureErrors)
			assert.Equal(t, 0.0, result.EvidenceCoverage.EvidenceCoverageRate)
			assert.Equal(t, 0.0, result.CitationQuality.CitationRate)
			assert.Equal(t, 0.0, result.OverallScore)
			assert.Equal(t, []string{"Fix schema structure errors before proceeding"}, result.Recommendations)
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	report := completeReport(t)
	report["guidance"] = []any{map[string]any{"claim": "x", "evidence_current": "unknown"}}
	assert.Equal(t, Evaluate(report), Evaluate(report))
}

func TestResultJSONShape(t *testing.T) {
	raw, err := json.Marshal(Evaluate(map[string]any{}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"is_valid", "structure_errors", "evidence_coverage", "citation_quality", "overall_score", "recommendations"} {
		assert.Contains(t, decoded, key)
	}
	coverage := decoded["evidence_coverage"].(map[string]any)
	assert.Equal(t, []any{}, coverage["details"])
}
