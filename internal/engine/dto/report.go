package dto

import (
	"earnings-call-engine/internal/evaluation"
	"earnings-call-engine/pkg/utils"
)

// ReportRequest identifies a report by ticker, quarter and optional previous quarter.
type ReportRequest struct {
	Ticker      string `json:"ticker"`
	Quarter     string `json:"quarter"`
	PrevQuarter string `json:"prev_quarter,omitempty"`
}

// ReportKey is the normalized cache key of a report. PrevQuarter is "" when absent.
type ReportKey struct {
	Ticker      string
	Quarter     string
	PrevQuarter string
}

// Key normalizes the request into a cache key.
func (r ReportRequest) Key() ReportKey {
	return ReportKey{
		Ticker:      utils.NormalizeLabel(r.Ticker),
		Quarter:     utils.NormalizeLabel(r.Quarter),
		PrevQuarter: utils.NormalizeLabel(r.PrevQuarter),
	}
}

// Validate checks the request. Call on the normalized key.
func (k ReportKey) Validate() error {
	if err := validateLabel("ticker", k.Ticker); err != nil {
		return err
	}
	if err := validateLabel("quarter", k.Quarter); err != nil {
		return err
	}
	if k.PrevQuarter != "" {
		return validateLabel("prev_quarter", k.PrevQuarter)
	}
	return nil
}

// GeneratedReport is a freshly synthesized payload plus its provenance.
type GeneratedReport struct {
	Data            map[string]any
	ContextChunkIDs []string
	Model           string
}

// ReportResponse wraps a report payload.
type ReportResponse struct {
	Data   map[string]any `json:"data"`
	Cached bool           `json:"cached"`
}

// EvaluationResponse pairs an evaluation with the report it scored.
type EvaluationResponse struct {
	Evaluation evaluation.Result `json:"evaluation"`
	ReportData map[string]any    `json:"report_data"`
}
