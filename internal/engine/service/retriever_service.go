package service

import (
	"context"
	"fmt"
	"strings"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/repository"
	"earnings-call-engine/internal/entity"
	"earnings-call-engine/pkg/logger"

	"github.com/google/uuid"
)

const defaultSearchK = 8

// RetrieverService finds the chunks closest to a free-text query.
type RetrieverService interface {
	Search(ctx context.Context, query string, k int, documentID *uuid.UUID) ([]entity.ScoredChunk, error)
}

// NewRetrieverService creates a new retriever service.
func NewRetrieverService(
	cfg *config.Config,
	chunkRepo repository.ChunkRepository,
	embeddingRepo repository.EmbeddingRepository,
	log *logger.Logger,
) RetrieverService {
	return &retrieverService{
		cfg:           cfg,
		chunkRepo:     chunkRepo,
		embeddingRepo: embeddingRepo,
		logger:        log,
	}
}

type retrieverService struct {
	cfg           *config.Config
	chunkRepo     repository.ChunkRepository
	embeddingRepo repository.EmbeddingRepository
	logger        *logger.Logger
}

// Search embeds the query once and returns up to k embedded chunks by ascending cosine distance.
func (s *retrieverService) Search(ctx context.Context, query string, k int, documentID *uuid.UUID) ([]entity.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidRequest)
	}
	if k <= 0 {
		k = s.cfg.RAG.SearchDefaultK
	}
	if k <= 0 {
		k = defaultSearchK
	}

	vector, err := s.embeddingRepo.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.Error("Failed to embed query", logger.ErrorField(err), logger.StringField("query", query))
		return nil, err
	}

	return s.chunkRepo.NearestNeighbors(ctx, vector, k, documentID)
}
