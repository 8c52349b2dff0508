package http

import (
	"fmt"
	"io"
	"net/http"

	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/service"
	"earnings-call-engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const defaultMaxUploadSize = 10 << 20

// DocumentHandler handles transcript ingestion and document listings.
type DocumentHandler struct {
	ingestionService service.IngestionService
	sourceService    service.SourceService
	maxUploadSize    int64
	logger           *logger.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(ingestionService service.IngestionService, sourceService service.SourceService, maxUploadSize int64, logger *logger.Logger) *DocumentHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}
	return &DocumentHandler{
		ingestionService: ingestionService,
		sourceService:    sourceService,
		maxUploadSize:    maxUploadSize,
		logger:           logger,
	}
}

// RegisterRoutes registers the ingestion and document routes to the Echo group.
func (h *DocumentHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/ingest", h.Ingest)
	g.POST("/ingest/file", h.IngestFile)
	g.POST("/ingest/url", h.IngestURL)
	g.POST("/ingest/feed", h.IngestFeed)
	g.GET("/documents", h.ListDocuments)
	g.GET("/documents/:id", h.GetDocument)
	g.GET("/documents/:id/chunks", h.ListChunks)
}

// Ingest godoc
// @Summary Ingest a transcript
// @Description Store a raw earnings-call transcript and split it into chunks
// @Tags ingestion
// @Accept  json
// @Produce  json
// @Param   document  body    dto.IngestRequest   true    "Transcript to ingest"
// @Success 201 {object} dto.DocumentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /ingest [post]
func (h *DocumentHandler) Ingest(c echo.Context) error {
	var req dto.IngestRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	doc, err := h.ingestionService.Ingest(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, doc)
}

// IngestFile godoc
// @Summary Ingest a transcript file
// @Description Upload a UTF-8 text or HTML transcript
// @Tags ingestion
// @Accept  multipart/form-data
// @Produce  json
// @Param   ticker     formData  string  true   "Ticker"
// @Param   quarter    formData  string  true   "Quarter, e.g. 2025_Q3"
// @Param   call_date  formData  string  false  "Call date (YYYY-MM-DD)"
// @Param   file       formData  file    true   "Transcript file"
// @Success 201 {object} dto.DocumentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Router /ingest/file [post]
func (h *DocumentHandler) IngestFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if fh.Size > h.maxUploadSize {
		return c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{
			Error: fmt.Sprintf("file exceeds %d bytes", h.maxUploadSize),
			Kind:  "InvalidRequest",
		})
	}

	f, err := fh.Open()
	if err != nil {
		return respondError(c, h.logger, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxUploadSize))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	doc, err := h.sourceService.IngestFile(c.Request().Context(), &dto.IngestFileRequest{
		Ticker:   c.FormValue("ticker"),
		Quarter:  c.FormValue("quarter"),
		CallDate: c.FormValue("call_date"),
		Filename: fh.Filename,
		Content:  content,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, doc)
}

// IngestURL godoc
// @Summary Ingest a transcript page
// @Description Fetch an HTML transcript page, extract its text and ingest it
// @Tags ingestion
// @Accept  json
// @Produce  json
// @Param   request  body    dto.IngestURLRequest   true    "Page to ingest"
// @Success 201 {object} dto.DocumentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /ingest/url [post]
func (h *DocumentHandler) IngestURL(c echo.Context) error {
	var req dto.IngestURLRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	doc, err := h.sourceService.IngestURL(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, doc)
}

// IngestFeed godoc
// @Summary Ingest transcripts from a feed
// @Description Scan an RSS/Atom feed for transcripts of a ticker and ingest new ones
// @Tags ingestion
// @Accept  json
// @Produce  json
// @Param   request  body    dto.IngestFeedRequest   true    "Feed to scan"
// @Success 200 {array} dto.IngestFeedResult
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /ingest/feed [post]
func (h *DocumentHandler) IngestFeed(c echo.Context) error {
	var req dto.IngestFeedRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	results, err := h.sourceService.IngestFeed(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, results)
}

// ListDocuments godoc
// @Summary List documents
// @Tags documents
// @Produce  json
// @Success 200 {array} dto.DocumentResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /documents [get]
func (h *DocumentHandler) ListDocuments(c echo.Context) error {
	docs, err := h.ingestionService.ListDocuments(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, docs)
}

// GetDocument godoc
// @Summary Get a document
// @Description Get a document including its raw text
// @Tags documents
// @Produce  json
// @Param   id  path    string true    "Document ID"
// @Success 200 {object} dto.DocumentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetDocument(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid document ID")
	}

	doc, err := h.ingestionService.GetDocument(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, doc)
}

// ListChunks godoc
// @Summary List document chunks
// @Tags documents
// @Produce  json
// @Param   id  path    string true    "Document ID"
// @Success 200 {array} dto.ChunkResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /documents/{id}/chunks [get]
func (h *DocumentHandler) ListChunks(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid document ID")
	}

	chunks, err := h.ingestionService.ListChunks(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, chunks)
}
