package http

import (
	"net/http"
	"strconv"

	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/service"
	"earnings-call-engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RAGHandler exposes embedding and similarity search.
type RAGHandler struct {
	embeddingService service.EmbeddingService
	retrieverService service.RetrieverService
	defaultK         int
	logger           *logger.Logger
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(embeddingService service.EmbeddingService, retrieverService service.RetrieverService, defaultK int, logger *logger.Logger) *RAGHandler {
	return &RAGHandler{
		embeddingService: embeddingService,
		retrieverService: retrieverService,
		defaultK:         defaultK,
		logger:           logger,
	}
}

// RegisterRoutes registers the RAG routes to the Echo group.
func (h *RAGHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/rag/documents/:id/embed", h.EmbedDocument)
	g.POST("/rag/search", h.Search)
}

// EmbedDocument godoc
// @Summary Embed a document
// @Description Embed every chunk of the document that has no vector yet. Safe to call repeatedly.
// @Tags rag
// @Produce  json
// @Param   id          path    string  true   "Document ID"
// @Param   batch_size  query   int     false  "Chunks per embedding call"
// @Success 200 {object} dto.EmbedResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 504 {object} dto.ErrorResponse
// @Router /rag/documents/{id}/embed [post]
func (h *RAGHandler) EmbedDocument(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid document ID")
	}

	batchSize := 0
	if raw := c.QueryParam("batch_size"); raw != "" {
		batchSize, err = strconv.Atoi(raw)
		if err != nil || batchSize <= 0 {
			return badRequest(c, "batch_size must be a positive integer")
		}
	}

	resp, err := h.embeddingService.EmbedDocument(c.Request().Context(), id, batchSize)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Search godoc
// @Summary Similarity search
// @Description Return the chunks closest to the query, optionally within one document
// @Tags rag
// @Accept  json
// @Produce  json
// @Param   request  body    dto.SearchRequest   true    "Search query"
// @Success 200 {object} dto.SearchResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /rag/search [post]
func (h *RAGHandler) Search(c echo.Context) error {
	var req dto.SearchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	if req.K <= 0 {
		req.K = h.defaultK
	}

	chunks, err := h.retrieverService.Search(c.Request().Context(), req.Query, req.K, req.DocumentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	results := make([]dto.SearchResult, 0, len(chunks))
	for _, ch := range chunks {
		results = append(results, dto.SearchResult{
			ChunkID:    ch.ID,
			DocumentID: ch.DocumentID,
			ChunkIndex: ch.ChunkIndex,
			Section:    ch.Section,
			Speaker:    ch.Speaker,
			Text:       ch.Text,
			Distance:   ch.Distance,
		})
	}
	return c.JSON(http.StatusOK, dto.SearchResponse{Query: req.Query, K: req.K, Results: results})
}
