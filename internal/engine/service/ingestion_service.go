package service

import (
	"context"
	"fmt"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/repository"
	"earnings-call-engine/internal/entity"
	"earnings-call-engine/internal/ingestion"
	"earnings-call-engine/pkg/logger"
	"earnings-call-engine/pkg/utils"

	"github.com/google/uuid"
)

// IngestionService stores transcripts and exposes the stored documents.
type IngestionService interface {
	Ingest(ctx context.Context, req *dto.IngestRequest) (*dto.DocumentResponse, error)
	ListDocuments(ctx context.Context) ([]*dto.DocumentResponse, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error)
	ListChunks(ctx context.Context, documentID uuid.UUID) ([]dto.ChunkResponse, error)
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	cfg *config.Config,
	documentRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	eventRepo repository.EmbeddingEventRepository,
	log *logger.Logger,
) IngestionService {
	if eventRepo == nil {
		eventRepo = repository.NewNoopEmbeddingEventRepository()
	}
	return &ingestionService{
		cfg:          cfg,
		documentRepo: documentRepo,
		chunkRepo:    chunkRepo,
		eventRepo:    eventRepo,
		logger:       log,
	}
}

type ingestionService struct {
	cfg          *config.Config
	documentRepo repository.DocumentRepository
	chunkRepo    repository.ChunkRepository
	eventRepo    repository.EmbeddingEventRepository
	logger       *logger.Logger
}

// Ingest stores the transcript together with its chunks and announces it to the embedding worker.
func (s *ingestionService) Ingest(ctx context.Context, req *dto.IngestRequest) (*dto.DocumentResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	callDate, _ := utils.ParseDate(req.CallDate)

	doc := &entity.Document{
		ID:       uuid.New(),
		Ticker:   req.Ticker,
		Quarter:  req.Quarter,
		CallDate: callDate,
		RawText:  string(req.RawText),
	}
	chunks := toChunkEntities(doc.ID, ingestion.ChunkTranscript(doc.RawText, chunkOptions(s.cfg)...))

	if err := s.documentRepo.CreateWithChunks(ctx, doc, chunks); err != nil {
		s.logger.Error("Failed to store document",
			logger.ErrorField(err),
			logger.StringField("ticker", doc.Ticker),
			logger.StringField("quarter", doc.Quarter),
		)
		return nil, err
	}

	s.logger.Info("Document ingested",
		logger.StringField("document_id", doc.ID.String()),
		logger.StringField("ticker", doc.Ticker),
		logger.StringField("quarter", doc.Quarter),
		logger.IntField("chunks", len(chunks)),
	)

	if err := s.eventRepo.PublishDocumentIngested(ctx, doc.ID); err != nil {
		// the backfill job picks the document up later
		s.logger.Warn("Failed to publish embedding event",
			logger.ErrorField(err),
			logger.StringField("document_id", doc.ID.String()),
		)
	}

	resp := dto.NewDocumentResponse(doc, false)
	count := len(chunks)
	resp.ChunkCount = &count
	return resp, nil
}

// ListDocuments returns every document ordered by ticker and quarter.
func (s *ingestionService) ListDocuments(ctx context.Context) ([]*dto.DocumentResponse, error) {
	docs, err := s.documentRepo.FindAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list documents", logger.ErrorField(err))
		return nil, err
	}

	responses := make([]*dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		responses = append(responses, dto.NewDocumentResponse(&docs[i], false))
	}
	return responses, nil
}

// GetDocument returns a document including its raw text.
func (s *ingestionService) GetDocument(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error) {
	doc, err := s.documentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	resp := dto.NewDocumentResponse(doc, true)
	count, err := s.chunkRepo.CountByDocumentID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp.ChunkCount = &count
	return resp, nil
}

// ListChunks returns the chunks of a document ordered by section and index.
func (s *ingestionService) ListChunks(ctx context.Context, documentID uuid.UUID) ([]dto.ChunkResponse, error) {
	doc, err := s.documentRepo.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}

	chunks, err := s.chunkRepo.FindByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ChunkResponse, 0, len(chunks))
	for i := range chunks {
		responses = append(responses, dto.NewChunkResponse(&chunks[i]))
	}
	return responses, nil
}

func chunkOptions(cfg *config.Config) []ingestion.Option {
	return []ingestion.Option{
		ingestion.WithMaxChars(cfg.RAG.ChunkMaxChars),
		ingestion.WithOverlapChars(cfg.RAG.ChunkOverlapChars),
	}
}

func toChunkEntities(documentID uuid.UUID, inputs []ingestion.ChunkInput) []entity.Chunk {
	chunks := make([]entity.Chunk, 0, len(inputs))
	for _, in := range inputs {
		chunks = append(chunks, entity.Chunk{
			ID:         uuid.New(),
			DocumentID: documentID,
			Section:    in.Section,
			Speaker:    in.Speaker,
			ChunkIndex: in.Index,
			Text:       in.Text,
		})
	}
	return chunks
}
