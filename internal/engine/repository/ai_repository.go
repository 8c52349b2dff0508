package repository

import (
	"context"
	"fmt"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/pkg/logger"
)

// EmbeddingRepository maps text to fixed-length vectors. EmbedTexts preserves input
// order and returns an empty slice for empty input.
type EmbeddingRepository interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// GenerationRepository sends a multi-part prompt to a text generation model.
type GenerationRepository interface {
	GenerateContent(ctx context.Context, req *dto.GenerationRequest) (*dto.GenerationResponse, error)
}

// NewEmbeddingRepository picks the embedding provider named by ai.embedding_provider.
func NewEmbeddingRepository(cfg *config.Config, log *logger.Logger, gemini *GeminiAIRepository) (EmbeddingRepository, error) {
	switch cfg.AI.EmbeddingProvider {
	case "", "gemini":
		if gemini == nil {
			return nil, fmt.Errorf("gemini embedding provider selected but no gemini client configured")
		}
		return gemini, nil
	case "openai":
		return NewOpenAIEmbeddingRepository(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.AI.EmbeddingProvider)
	}
}
