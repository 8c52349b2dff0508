package repository

import (
	"context"
	"fmt"
	"time"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/pkg/logger"
	"earnings-call-engine/pkg/ratelimit"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// geminiMaxEmbedBatch is the most texts the embed endpoint accepts per call.
const geminiMaxEmbedBatch = 100

// GeminiAIRepository talks to the Gemini API for both embeddings and generation.
type GeminiAIRepository struct {
	cfg            *config.Config
	logger         *logger.Logger
	tokenLimiter   *ratelimit.TokenLimiter
	requestLimiter *rate.Limiter
	genAiClient    *genai.Client
}

// NewGeminiAIRepository creates a new instance of GeminiAIRepository.
func NewGeminiAIRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) (*GeminiAIRepository, error) {
	if cfg.Gemini.MaxRequestPerMinute <= 0 {
		return nil, fmt.Errorf("gemini.max_request_per_minute must be positive")
	}
	if cfg.Gemini.EmbeddingDimension <= 0 {
		return nil, fmt.Errorf("gemini.embedding_dimension must be positive")
	}

	secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)
	return &GeminiAIRepository{
		cfg:            cfg,
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		tokenLimiter:   ratelimit.NewTokenLimiter(cfg.Gemini.MaxTokenPerMinute),
		genAiClient:    genAiClient,
	}, nil
}

// EmbedTexts embeds documents for storage.
func (r *GeminiAIRepository) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiMaxEmbedBatch {
		end := start + geminiMaxEmbedBatch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := r.embed(ctx, texts[start:end], "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a search query.
func (r *GeminiAIRepository) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := r.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (r *GeminiAIRepository) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, "user")
	}
	dimension := int32(r.cfg.Gemini.EmbeddingDimension)

	resp, err := r.genAiClient.Models.EmbedContent(ctx, r.cfg.Gemini.EmbeddingModel, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &dimension,
	})
	if err != nil {
		r.logger.Error("Failed to embed texts with Gemini", logger.ErrorField(err), logger.IntField("count", len(texts)))
		return nil, wrapGatewayError(ctx, "gemini embed", r.cfg.Gemini.Timeout, err)
	}

	return embeddingsToVectors(resp, len(texts), r.cfg.Gemini.EmbeddingDimension)
}

// GenerateContent sends the prompt parts as one user turn.
func (r *GeminiAIRepository) GenerateContent(ctx context.Context, req *dto.GenerationRequest) (*dto.GenerationResponse, error) {
	model := req.Model
	if model == "" {
		model = r.cfg.Gemini.GenerationModel
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, genai.NewPartFromText(p))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, "user")}

	tokenResp, err := r.genAiClient.Models.CountTokens(ctx, model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count tokens: %w", err)
	}

	r.logger.Debug("Gemini token count",
		logger.IntField("total_tokens", int(tokenResp.TotalTokens)),
		logger.IntField("remaining", r.tokenLimiter.GetRemaining()),
	)

	if err := r.tokenLimiter.Wait(ctx, int(tokenResp.TotalTokens)); err != nil {
		return nil, fmt.Errorf("failed to wait for token limit: %w", err)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	if r.cfg.Gemini.MaxTokenPerMinute > 0 && int(tokenResp.TotalTokens) > r.cfg.Gemini.MaxTokenPerMinute/2 {
		r.logger.Warn("Prompt uses more than half of the token budget", logger.IntField("total_tokens", int(tokenResp.TotalTokens)))
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	temperature := r.cfg.Gemini.Temperature
	resp, err := r.genAiClient.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: req.ResponseMIMEType,
	})
	if err != nil {
		r.logger.Error("Failed to generate content with Gemini", logger.ErrorField(err), logger.StringField("model", model))
		return nil, wrapGatewayError(ctx, "gemini generate", r.cfg.Gemini.Timeout, err)
	}

	return toGenerationResponse(resp), nil
}

func (r *GeminiAIRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Gemini.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.Gemini.Timeout)
}

func embeddingsToVectors(resp *genai.EmbedContentResponse, expected, dimension int) ([][]float32, error) {
	if resp == nil || len(resp.Embeddings) != expected {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", got, expected)
	}

	out := make([][]float32, expected)
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) != dimension {
			return nil, fmt.Errorf("gemini embedding %d has unexpected dimension", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// toGenerationResponse keeps the candidate/parts shape and drops thought parts.
func toGenerationResponse(resp *genai.GenerateContentResponse) *dto.GenerationResponse {
	out := &dto.GenerationResponse{}
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		var c dto.Candidate
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if part == nil || part.Thought {
					continue
				}
				c.Content.Parts = append(c.Content.Parts, dto.Part{Text: part.Text})
			}
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out
}
