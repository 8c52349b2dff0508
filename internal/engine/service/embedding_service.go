package service

import (
	"context"
	"errors"
	"fmt"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/repository"
	"earnings-call-engine/internal/ingestion"
	"earnings-call-engine/pkg/logger"

	"github.com/google/uuid"
)

const defaultEmbedBatchSize = 32

// EmbeddingService fills in missing chunk embeddings.
type EmbeddingService interface {
	EmbedDocument(ctx context.Context, documentID uuid.UUID, batchSize int) (*dto.EmbedResponse, error)
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(
	cfg *config.Config,
	documentRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	embeddingRepo repository.EmbeddingRepository,
	log *logger.Logger,
) EmbeddingService {
	return &embeddingService{
		cfg:           cfg,
		documentRepo:  documentRepo,
		chunkRepo:     chunkRepo,
		embeddingRepo: embeddingRepo,
		logger:        log,
	}
}

type embeddingService struct {
	cfg           *config.Config
	documentRepo  repository.DocumentRepository
	chunkRepo     repository.ChunkRepository
	embeddingRepo repository.EmbeddingRepository
	logger        *logger.Logger
}

// EmbedDocument embeds every chunk of the document that has no vector yet, one batch at a
// time. Each batch is committed on its own, so an interrupted run resumes where it stopped.
func (s *embeddingService) EmbedDocument(ctx context.Context, documentID uuid.UUID, batchSize int) (*dto.EmbedResponse, error) {
	if batchSize <= 0 {
		batchSize = s.cfg.RAG.EmbedBatchSize
	}
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}

	doc, err := s.documentRepo.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}

	resp := &dto.EmbedResponse{DocumentID: documentID}

	total, err := s.chunkRepo.CountByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		chunks := toChunkEntities(documentID, ingestion.ChunkTranscript(doc.RawText, chunkOptions(s.cfg)...))
		err := s.chunkRepo.CreateBatch(ctx, chunks)
		switch {
		case err == nil:
			resp.ChunksCreated = len(chunks)
			total = len(chunks)
		case errors.Is(err, repository.ErrUniqueConflict):
			s.logger.Info("Document chunked concurrently, using stored chunks", logger.StringField("document_id", documentID.String()))
			if total, err = s.chunkRepo.CountByDocumentID(ctx, documentID); err != nil {
				return nil, err
			}
		default:
			s.logger.Error("Failed to create chunks", logger.ErrorField(err), logger.StringField("document_id", documentID.String()))
			return nil, err
		}
	}
	resp.TotalChunks = total

	for {
		if err := ctx.Err(); err != nil {
			return resp, err
		}

		pending, err := s.chunkRepo.FindPendingEmbedding(ctx, documentID, batchSize)
		if err != nil {
			return resp, err
		}
		if len(pending) == 0 {
			break
		}

		texts := make([]string, len(pending))
		for i, c := range pending {
			texts[i] = c.Text
		}

		vectors, err := s.embeddingRepo.EmbedTexts(ctx, texts)
		if err != nil {
			s.logger.Error("Failed to embed chunk batch",
				logger.ErrorField(err),
				logger.StringField("document_id", documentID.String()),
				logger.IntField("embedded_so_far", resp.ChunksEmbedded),
			)
			return resp, err
		}
		if len(vectors) != len(pending) {
			return resp, fmt.Errorf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(pending))
		}

		updates := make([]repository.ChunkEmbedding, len(pending))
		for i, c := range pending {
			updates[i] = repository.ChunkEmbedding{ChunkID: c.ID, Vector: vectors[i]}
		}
		if err := s.chunkRepo.UpdateEmbeddings(ctx, updates); err != nil {
			return resp, err
		}

		resp.ChunksEmbedded += len(pending)
		s.logger.Debug("Embedded chunk batch",
			logger.StringField("document_id", documentID.String()),
			logger.IntField("batch", len(pending)),
			logger.IntField("embedded", resp.ChunksEmbedded),
		)
	}

	s.logger.Info("Document embedding complete",
		logger.StringField("document_id", documentID.String()),
		logger.IntField("chunks_embedded", resp.ChunksEmbedded),
		logger.IntField("total_chunks", resp.TotalChunks),
	)
	return resp, nil
}
