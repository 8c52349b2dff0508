// Package evaluation scores a generated earnings report for schema conformance,
// evidence coverage and citation quality. Everything here is a pure function of the payload.
package evaluation

import (
	"fmt"
	"strings"

	"earnings-call-engine/pkg/utils"
)

var requiredFields = []string{
	"ticker",
	"quarter",
	"summary",
	"guidance",
	"growth_drivers",
	"risks",
	"margin_dynamics",
	"qa_pressure_points",
}

var validTones = map[string]struct{}{
	"neutral":  {},
	"positive": {},
	"negative": {},
}

// themeRule names the claim field and the evidence fields of one themed list.
type themeRule struct {
	section        string
	claimField     string
	evidenceFields []string
}

var themeRules = []themeRule{
	{section: "guidance", claimField: "claim", evidenceFields: []string{"evidence_current", "evidence_prev"}},
	{section: "growth_drivers", claimField: "claim", evidenceFields: []string{"evidence"}},
	{section: "risks", claimField: "claim", evidenceFields: []string{"evidence_current", "evidence_first_mention"}},
	{section: "margin_dynamics", claimField: "claim", evidenceFields: []string{"evidence"}},
	{section: "qa_pressure_points", claimField: "theme", evidenceFields: []string{"evidence_question", "evidence_answer"}},
}

var listFields = []string{"guidance", "growth_drivers", "risks", "margin_dynamics", "qa_pressure_points"}

const claimPreviewRunes = 100

// MissingEvidence describes one claim without a usable evidence quote.
type MissingEvidence struct {
	Section               string   `json:"section"`
	Claim                 string   `json:"claim"`
	MissingEvidenceFields []string `json:"missing_evidence_fields"`
}

// EvidenceCoverage summarizes how many claims carry at least one evidence quote.
type EvidenceCoverage struct {
	TotalClaims           int               `json:"total_claims"`
	ClaimsWithEvidence    int               `json:"claims_with_evidence"`
	ClaimsWithoutEvidence int               `json:"claims_without_evidence"`
	EvidenceCoverageRate  float64           `json:"evidence_coverage_rate"`
	Details               []MissingEvidence `json:"details"`
}

// CitationQuality summarizes how many evidence quotes carry a chunk citation.
type CitationQuality struct {
	TotalEvidenceFields      int     `json:"total_evidence_fields"`
	EvidenceWithCitations    int     `json:"evidence_with_citations"`
	EvidenceWithoutCitations int     `json:"evidence_without_citations"`
	CitationRate             float64 `json:"citation_rate"`
}

// Result is the full evaluation of one report.
type Result struct {
	IsValid          bool             `json:"is_valid"`
	StructureErrors  []string         `json:"structure_errors"`
	EvidenceCoverage EvidenceCoverage `json:"evidence_coverage"`
	CitationQuality  CitationQuality  `json:"citation_quality"`
	OverallScore     float64          `json:"overall_score"`
	Recommendations  []string         `json:"recommendations"`
}

// Evaluate runs every check against the report. It never fails: malformed shapes
// show up as structure errors and degrade the metrics.
func Evaluate(report map[string]any) Result {
	structureErrors := ValidateStructure(report)
	coverage := CheckEvidenceCoverage(report)
	citations := CheckCitationQuality(report)
	isValid := len(structureErrors) == 0

	return Result{
		IsValid:          isValid,
		StructureErrors:  structureErrors,
		EvidenceCoverage: coverage,
		CitationQuality:  citations,
		OverallScore:     score(isValid, coverage, citations),
		Recommendations:  recommendations(isValid, coverage, citations),
	}
}

// ValidateStructure returns one message per schema violation.
func ValidateStructure(report map[string]any) []string {
	errs := []string{}

	for _, field := range requiredFields {
		if _, ok := report[field]; !ok {
			errs = append(errs, fmt.Sprintf("Missing required field: %s", field))
		}
	}

	if raw, ok := report["summary"]; ok {
		summary, isMap := raw.(map[string]any)
		if !isMap {
			errs = append(errs, "Summary must be an object")
		} else {
			if _, ok := summary["high_level"]; !ok {
				errs = append(errs, "Summary missing 'high_level' field")
			}
			if tone, ok := summary["tone"]; !ok {
				errs = append(errs, "Summary missing 'tone' field")
			} else if !isValidTone(tone) {
				errs = append(errs, fmt.Sprintf("Invalid tone value: %v", tone))
			}
		}
	}

	for _, field := range listFields {
		raw, ok := report[field]
		if !ok {
			continue
		}
		items, isList := raw.([]any)
		if !isList {
			errs = append(errs, fmt.Sprintf("%s must be a list", field))
			continue
		}
		for i, item := range items {
			if _, isMap := item.(map[string]any); !isMap {
				errs = append(errs, fmt.Sprintf("%s[%d] must be an object", field, i))
			}
		}
	}

	return errs
}

// CheckEvidenceCoverage counts claims that have at least one usable evidence field.
func CheckEvidenceCoverage(report map[string]any) EvidenceCoverage {
	coverage := EvidenceCoverage{Details: []MissingEvidence{}}

	for _, rule := range themeRules {
		for _, item := range themeItems(report, rule.section) {
			claim, _ := item[rule.claimField].(string)
			if strings.TrimSpace(claim) == "" {
				continue
			}
			coverage.TotalClaims++

			hasEvidence := false
			for _, field := range rule.evidenceFields {
				if isUsableEvidence(item[field]) {
					hasEvidence = true
					break
				}
			}

			if hasEvidence {
				coverage.ClaimsWithEvidence++
				continue
			}
			coverage.ClaimsWithoutEvidence++
			coverage.Details = append(coverage.Details, MissingEvidence{
				Section:               rule.section,
				Claim:                 utils.Truncate(claim, claimPreviewRunes, "..."),
				MissingEvidenceFields: append([]string(nil), rule.evidenceFields...),
			})
		}
	}

	if coverage.TotalClaims > 0 {
		coverage.EvidenceCoverageRate = float64(coverage.ClaimsWithEvidence) / float64(coverage.TotalClaims)
	}
	return coverage
}

// CheckCitationQuality counts usable evidence quotes that reference a document or chunk id.
func CheckCitationQuality(report map[string]any) CitationQuality {
	var quality CitationQuality

	for _, rule := range themeRules {
		for _, item := range themeItems(report, rule.section) {
			for _, field := range rule.evidenceFields {
				evidence, ok := item[field].(string)
				if !ok || !isUsableEvidence(evidence) {
					continue
				}
				quality.TotalEvidenceFields++
				if hasCitation(evidence) {
					quality.EvidenceWithCitations++
				} else {
					quality.EvidenceWithoutCitations++
				}
			}
		}
	}

	if quality.TotalEvidenceFields > 0 {
		quality.CitationRate = float64(quality.EvidenceWithCitations) / float64(quality.TotalEvidenceFields)
	}
	return quality
}

func score(isValid bool, coverage EvidenceCoverage, citations CitationQuality) float64 {
	s := 0.0
	if isValid {
		s += 0.3
	}
	if coverage.TotalClaims > 0 {
		s += 0.4 * coverage.EvidenceCoverageRate
	}
	if citations.TotalEvidenceFields > 0 {
		s += 0.3 * citations.CitationRate
	}
	if s > 1 {
		return 1
	}
	if s < 0 {
		return 0
	}
	return s
}

func recommendations(isValid bool, coverage EvidenceCoverage, citations CitationQuality) []string {
	recs := []string{}
	if !isValid {
		recs = append(recs, "Fix schema structure errors before proceeding")
	}
	if coverage.TotalClaims > 0 {
		if coverage.EvidenceCoverageRate < 0.9 {
			recs = append(recs, fmt.Sprintf("Low evidence coverage (%s). Ensure all claims have supporting quotes.",
				formatPercent(coverage.EvidenceCoverageRate)))
		}
		if coverage.ClaimsWithoutEvidence > 0 {
			recs = append(recs, fmt.Sprintf("%d claims missing evidence quotes", coverage.ClaimsWithoutEvidence))
		}
	}
	if citations.TotalEvidenceFields > 0 && citations.CitationRate < 0.5 {
		recs = append(recs, fmt.Sprintf("Low citation rate (%s). Evidence should include document/chunk references.",
			formatPercent(citations.CitationRate)))
	}
	return recs
}

// themeItems returns the object items of a themed list, skipping anything malformed.
func themeItems(report map[string]any, section string) []map[string]any {
	raw, _ := report[section].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

func isValidTone(tone any) bool {
	s, ok := tone.(string)
	if !ok {
		return false
	}
	_, valid := validTones[s]
	return valid
}

func isUsableEvidence(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	trimmed := strings.TrimSpace(s)
	return trimmed != "" && strings.ToLower(trimmed) != "unknown"
}

func hasCitation(evidence string) bool {
	lower := strings.ToLower(evidence)
	return strings.Contains(lower, "document_id") || strings.Contains(lower, "chunk_id")
}

func formatPercent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}
