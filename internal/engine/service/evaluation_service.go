package service

import (
	"context"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/evaluation"
	"earnings-call-engine/pkg/logger"
	"earnings-call-engine/pkg/telegram"
)

// EvaluationService scores generated reports.
type EvaluationService interface {
	EvaluateReport(ctx context.Context, req dto.ReportRequest) (*dto.EvaluationResponse, error)
}

// NewEvaluationService creates a new evaluation service.
func NewEvaluationService(cfg *config.Config, reportService ReportService, notifier telegram.Notifier, log *logger.Logger) EvaluationService {
	if notifier == nil {
		notifier = telegram.NewNoopNotifier()
	}
	return &evaluationService{
		cfg:           cfg,
		reportService: reportService,
		notifier:      notifier,
		logger:        log,
	}
}

type evaluationService struct {
	cfg           *config.Config
	reportService ReportService
	notifier      telegram.Notifier
	logger        *logger.Logger
}

// EvaluateReport fetches or generates the report and runs the quality checks on it.
func (s *evaluationService) EvaluateReport(ctx context.Context, req dto.ReportRequest) (*dto.EvaluationResponse, error) {
	report, err := s.reportService.GenerateReport(ctx, req)
	if err != nil {
		return nil, err
	}

	result := evaluation.Evaluate(report.Data)
	key := req.Key()

	s.logger.Info("Report evaluated",
		logger.StringField("ticker", key.Ticker),
		logger.StringField("quarter", key.Quarter),
		logger.Field("overall_score", result.OverallScore),
		logger.Field("is_valid", result.IsValid),
	)

	if s.cfg.Report.NotifyEvaluations || result.OverallScore < s.cfg.Report.EvaluationAlertScoreBelow {
		msg := telegram.FormatEvaluationSummary(key.Ticker, key.Quarter, key.PrevQuarter, result)
		if err := s.notifier.SendMessage(msg); err != nil {
			s.logger.Warn("Failed to send evaluation summary", logger.ErrorField(err))
		}
	}

	return &dto.EvaluationResponse{Evaluation: result, ReportData: report.Data}, nil
}
