package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/repository"
	"earnings-call-engine/internal/entity"
	"earnings-call-engine/pkg/logger"
	"earnings-call-engine/pkg/telegram"
	"earnings-call-engine/pkg/utils"
)

const rawSnippetLength = 500

// ReportService produces quarter comparison reports.
type ReportService interface {
	// GenerateReport returns the cached report for the request, synthesizing it on a miss.
	GenerateReport(ctx context.Context, req dto.ReportRequest) (*dto.ReportResponse, error)
	// Synthesize always calls the generation model.
	Synthesize(ctx context.Context, key dto.ReportKey) (*dto.GeneratedReport, error)
}

// NewReportService creates a new report service.
func NewReportService(
	cfg *config.Config,
	documentRepo repository.DocumentRepository,
	assembler ContextAssembler,
	generationRepo repository.GenerationRepository,
	cache ReportCache,
	notifier telegram.Notifier,
	log *logger.Logger,
) ReportService {
	if notifier == nil {
		notifier = telegram.NewNoopNotifier()
	}
	return &reportService{
		cfg:            cfg,
		documentRepo:   documentRepo,
		assembler:      assembler,
		generationRepo: generationRepo,
		cache:          cache,
		notifier:       notifier,
		logger:         log,
	}
}

type reportService struct {
	cfg            *config.Config
	documentRepo   repository.DocumentRepository
	assembler      ContextAssembler
	generationRepo repository.GenerationRepository
	cache          ReportCache
	notifier       telegram.Notifier
	logger         *logger.Logger

	malformedStreak atomic.Int64
}

// GenerateReport validates the request and serves it through the report cache.
func (s *reportService) GenerateReport(ctx context.Context, req dto.ReportRequest) (*dto.ReportResponse, error) {
	key := req.Key()
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	data, cached, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*dto.GeneratedReport, error) {
		return s.Synthesize(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return &dto.ReportResponse{Data: data, Cached: cached}, nil
}

// Synthesize resolves the documents, assembles evidence and asks the model for a report.
// A previous quarter that has no document is dropped and the report is produced without it.
func (s *reportService) Synthesize(ctx context.Context, key dto.ReportKey) (*dto.GeneratedReport, error) {
	ticker := utils.NormalizeLabel(key.Ticker)
	quarter := utils.NormalizeLabel(key.Quarter)
	prevQuarter := utils.NormalizeLabel(key.PrevQuarter)

	current, err := s.documentRepo.FindByTickerQuarter(ctx, ticker, quarter)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: current quarter %s %s", ErrDocumentNotFound, ticker, quarter)
	}

	prev, err := s.resolvePrevious(ctx, ticker, prevQuarter)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		prevQuarter = ""
	}

	chunks, err := s.assembler.Assemble(ctx, current, prev, s.cfg.RAG.ContextK)
	if err != nil {
		return nil, err
	}

	parts, err := buildReportParts(ticker, quarter, prevQuarter, chunks)
	if err != nil {
		return nil, err
	}

	model := s.cfg.Gemini.GenerationModel
	resp, err := s.generationRepo.GenerateContent(ctx, &dto.GenerationRequest{
		Model:            model,
		Parts:            parts,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		s.logger.Error("Report generation failed",
			logger.ErrorField(err),
			logger.StringField("ticker", ticker),
			logger.StringField("quarter", quarter),
		)
		return nil, err
	}

	data, err := parseReport(resp)
	if err != nil {
		s.recordMalformed(key, err)
		return nil, err
	}
	s.malformedStreak.Store(0)

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ChunkID.String()
	}

	s.logger.Info("Report synthesized",
		logger.StringField("ticker", ticker),
		logger.StringField("quarter", quarter),
		logger.StringField("prev_quarter", prevQuarter),
		logger.IntField("context_chunks", len(chunks)),
	)
	return &dto.GeneratedReport{Data: data, ContextChunkIDs: ids, Model: model}, nil
}

func (s *reportService) resolvePrevious(ctx context.Context, ticker, prevQuarter string) (*entity.Document, error) {
	if prevQuarter == "" {
		return nil, nil
	}
	prev, err := s.documentRepo.FindByTickerQuarter(ctx, ticker, prevQuarter)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		s.logger.Warn("Previous quarter document not found, generating without comparison",
			logger.StringField("ticker", ticker),
			logger.StringField("prev_quarter", prevQuarter),
		)
	}
	return prev, nil
}

// recordMalformed counts consecutive unusable generations and alerts every time the streak
// reaches a multiple of the configured threshold.
func (s *reportService) recordMalformed(key dto.ReportKey, cause error) {
	streak := s.malformedStreak.Add(1)
	s.logger.Warn("Unusable generation output",
		logger.ErrorField(cause),
		logger.StringField("ticker", key.Ticker),
		logger.StringField("quarter", key.Quarter),
		logger.Field("streak", streak),
	)

	threshold := int64(s.cfg.Report.MalformedAlertThreshold)
	if threshold <= 0 || streak%threshold != 0 {
		return
	}

	s.logger.Error("Generation keeps returning unusable output",
		logger.StringField("kind", ErrorKind(cause)),
		logger.Field("streak", streak),
	)
	msg := telegram.FormatGenerationAlert(key.Ticker, key.Quarter, key.PrevQuarter, ErrorKind(cause), streak, cause.Error())
	if err := s.notifier.SendMessage(msg); err != nil {
		s.logger.Error("Failed to send generation alert", logger.ErrorField(err))
	}
}

// parseReport extracts the JSON object from the first text part of the first candidate.
// When the text is not valid JSON the span between the first '{' and the last '}' is tried.
func parseReport(resp *dto.GenerationResponse) (map[string]any, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrGenerationEmpty)
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: candidate has no parts", ErrGenerationEmpty)
	}
	raw := strings.TrimSpace(parts[0].Text)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty text", ErrGenerationEmpty)
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start == -1 || end == -1 || end <= start {
			return nil, fmt.Errorf("%w: could not parse JSON, raw text: %s", ErrGenerationMalformed, utils.Truncate(raw, rawSnippetLength, ""))
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrGenerationMalformed, err.Error())
		}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: report is not a JSON object", ErrGenerationMalformed)
	}
	return obj, nil
}
