package telegram

import (
	"fmt"
	"strings"

	"earnings-call-engine/internal/evaluation"
	"earnings-call-engine/pkg/utils"
)

const maxDetailLength = 300

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// FormatGenerationAlert renders the alert sent when report generation keeps failing to
// return a usable JSON object.
func FormatGenerationAlert(ticker, quarter, prevQuarter, kind string, streak int64, detail string) string {
	var sb strings.Builder
	sb.WriteString("📛 *Report generation alert*\n")
	sb.WriteString(fmt.Sprintf("📈 *Report:* %s\n", escape(reportLabel(ticker, quarter, prevQuarter))))
	sb.WriteString(fmt.Sprintf("🔧 *Kind:* %s\n", escape(kind)))
	sb.WriteString(fmt.Sprintf("🔁 *Consecutive failures:* %d\n", streak))
	if detail != "" {
		sb.WriteString(fmt.Sprintf("⚠️ %s\n", escape(utils.Truncate(detail, maxDetailLength, "..."))))
	}
	return sb.String()
}

// FormatEvaluationSummary renders an evaluation result for one report.
func FormatEvaluationSummary(ticker, quarter, prevQuarter string, r evaluation.Result) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case r.OverallScore < 0.5:
		icon = "🔴"
	case r.OverallScore < 0.8:
		icon = "🟡"
	}

	sb.WriteString("📊 *Report evaluation*\n")
	sb.WriteString(fmt.Sprintf("📈 *Report:* %s\n", escape(reportLabel(ticker, quarter, prevQuarter))))
	sb.WriteString(fmt.Sprintf("%s *Score:* %.2f\n", icon, r.OverallScore))
	sb.WriteString(fmt.Sprintf("🧱 *Structure valid:* %t\n", r.IsValid))
	sb.WriteString(fmt.Sprintf("🔎 *Evidence coverage:* %.1f%% (%d/%d claims)\n",
		r.EvidenceCoverage.EvidenceCoverageRate*100, r.EvidenceCoverage.ClaimsWithEvidence, r.EvidenceCoverage.TotalClaims))
	sb.WriteString(fmt.Sprintf("📎 *Citations:* %.1f%% (%d/%d quotes)\n",
		r.CitationQuality.CitationRate*100, r.CitationQuality.EvidenceWithCitations, r.CitationQuality.TotalEvidenceFields))

	if len(r.Recommendations) > 0 {
		sb.WriteString("\n💡 *Recommendations:*\n")
		for _, rec := range r.Recommendations {
			sb.WriteString(fmt.Sprintf("- %s\n", escape(rec)))
		}
	}
	return sb.String()
}

func reportLabel(ticker, quarter, prevQuarter string) string {
	if prevQuarter == "" {
		return fmt.Sprintf("%s %s", ticker, quarter)
	}
	return fmt.Sprintf("%s %s vs %s", ticker, quarter, prevQuarter)
}

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
