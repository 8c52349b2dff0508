package service

import (
	"context"
	"testing"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const validReportJSON = `{
  "ticker": "GOOG",
  "quarter": "2025_Q3",
  "prev_quarter": "2025_Q2",
  "summary": {"high_level": "Cloud accelerated", "tone": "positive"},
  "guidance": [{"claim": "Outlook unchanged", "direction_vs_prev": "flat",
    "evidence_current": "Our full year outlook is unchanged (document_id: a, chunk_id: b, chunk_index: 1)",
    "evidence_prev": "Outlook steady (document_id: c, chunk_id: d, chunk_index: 2)"}],
  "growth_drivers": [{"claim": "AI revenue doubled", "evidence": "AI revenue doubled (document_id: a, chunk_id: e, chunk_index: 0)"}],
  "risks": [],
  "margin_dynamics": [],
  "qa_pressure_points": []
}`

type testEngine struct {
	cfg       *config.Config
	store     *memStore
	docs      *memDocumentRepo
	chunks    *memChunkRepo
	reports   *memReportRepo
	embedder  *hashEmbedder
	generator *cannedGenerator
	events    *fakeEventRepo
	notifier  *recordingNotifier
	log       *logger.Logger

	ingestion  IngestionService
	embedding  EmbeddingService
	retriever  RetrieverService
	assembler  ContextAssembler
	cache      ReportCache
	report     ReportService
	evaluation EvaluationService
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	e := &testEngine{
		cfg:       testConfig(),
		store:     newMemStore(),
		embedder:  &hashEmbedder{},
		generator: &cannedGenerator{text: validReportJSON},
		events:    &fakeEventRepo{},
		notifier:  &recordingNotifier{},
		log:       logger.NewNop(),
	}
	e.docs = &memDocumentRepo{s: e.store}
	e.chunks = &memChunkRepo{s: e.store}
	e.reports = &memReportRepo{s: e.store}

	e.ingestion = NewIngestionService(e.cfg, e.docs, e.chunks, e.events, e.log)
	e.embedding = NewEmbeddingService(e.cfg, e.docs, e.chunks, e.embedder, e.log)
	e.retriever = NewRetrieverService(e.cfg, e.chunks, e.embedder, e.log)
	e.assembler = NewContextAssembler(e.retriever, e.log)
	e.cache = NewReportCache(e.cfg, e.reports, e.log)
	e.report = NewReportService(e.cfg, e.docs, e.assembler, e.generator, e.cache, e.notifier, e.log)
	e.evaluation = NewEvaluationService(e.cfg, e.report, e.notifier, e.log)
	return e
}

func (e *testEngine) ingest(t *testing.T, ticker, quarter, text string) uuid.UUID {
	t.Helper()
	doc, err := e.ingestion.Ingest(context.Background(), &dto.IngestRequest{
		Ticker:  ticker,
		Quarter: quarter,
		RawText: dto.RawText(text),
	})
	require.NoError(t, err)
	return doc.ID
}

func (e *testEngine) ingestAndEmbed(t *testing.T, ticker, quarter, text string) uuid.UUID {
	t.Helper()
	id := e.ingest(t, ticker, quarter, text)
	_, err := e.embedding.EmbedDocument(context.Background(), id, 0)
	require.NoError(t, err)
	return id
}
