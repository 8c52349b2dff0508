package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/pkg/logger"
)

type openaiEmbeddingRepository struct {
	client    *http.Client
	cfg       *config.Config
	logger    *logger.Logger
	endpoint  string
	batchSize int
}

type openaiEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewOpenAIEmbeddingRepository creates an embedder for any server speaking the
// OpenAI /v1/embeddings format (OpenAI, vLLM, Ollama, ...).
func NewOpenAIEmbeddingRepository(cfg *config.Config, log *logger.Logger) EmbeddingRepository {
	batchSize := cfg.OpenAI.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	return &openaiEmbeddingRepository{
		client:    &http.Client{Timeout: cfg.OpenAI.Timeout},
		cfg:       cfg,
		logger:    log,
		endpoint:  strings.TrimRight(cfg.OpenAI.BaseURL, "/") + "/v1/embeddings",
		batchSize: batchSize,
	}
}

// EmbedTexts embeds texts in batches, reassembling results in input order.
func (r *openaiEmbeddingRepository) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += r.batchSize {
		end := start + r.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := r.callAPI(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch [%d:%d]: %w", start, end, err)
		}
		copy(result[start:end], vecs)
	}
	return result, nil
}

// EmbedQuery embeds a single query string.
func (r *openaiEmbeddingRepository) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := r.callAPI(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (r *openaiEmbeddingRepository) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(openaiEmbedRequest{
		Model:      r.cfg.OpenAI.Model,
		Input:      texts,
		Dimensions: r.cfg.Gemini.EmbeddingDimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.OpenAI.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.OpenAI.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("Failed to send request to embeddings API", logger.ErrorField(err), logger.StringField("endpoint", r.endpoint))
		return nil, wrapGatewayError(ctx, "openai embed", r.cfg.OpenAI.Timeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		r.logger.Error("Received non-OK response from embeddings API", logger.IntField("status_code", resp.StatusCode))
		return nil, fmt.Errorf("received non-OK response from embeddings API: %d - %s", resp.StatusCode, string(body))
	}

	var decoded openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	vecs := make([][]float32, len(texts))
	for _, d := range decoded.Data {
		if d.Index >= 0 && d.Index < len(vecs) {
			vecs[d.Index] = d.Embedding
		}
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input index %d", i)
		}
	}
	return vecs, nil
}
