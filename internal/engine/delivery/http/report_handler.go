package http

import (
	"net/http"

	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/service"
	"earnings-call-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ReportHandler serves comparison reports and their evaluations.
type ReportHandler struct {
	reportService     service.ReportService
	evaluationService service.EvaluationService
	logger            *logger.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService service.ReportService, evaluationService service.EvaluationService, logger *logger.Logger) *ReportHandler {
	return &ReportHandler{
		reportService:     reportService,
		evaluationService: evaluationService,
		logger:            logger,
	}
}

// RegisterRoutes registers the report routes to the Echo group.
func (h *ReportHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/report", h.GenerateReport)
	g.POST("/evaluation/report", h.EvaluateReport)
}

// GenerateReport godoc
// @Summary Generate a quarter comparison report
// @Description Return the stored report for (ticker, quarter, prev_quarter), generating it on first request
// @Tags report
// @Accept  json
// @Produce  json
// @Param   request  body    dto.ReportRequest   true    "Report key"
// @Success 200 {object} dto.ReportResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Failure 504 {object} dto.ErrorResponse
// @Router /report [post]
func (h *ReportHandler) GenerateReport(c echo.Context) error {
	var req dto.ReportRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	resp, err := h.reportService.GenerateReport(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// EvaluateReport godoc
// @Summary Evaluate a report
// @Description Score the report for schema conformance, evidence coverage and citations
// @Tags evaluation
// @Accept  json
// @Produce  json
// @Param   request  body    dto.ReportRequest   true    "Report key"
// @Success 200 {object} dto.EvaluationResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /evaluation/report [post]
func (h *ReportHandler) EvaluateReport(c echo.Context) error {
	var req dto.ReportRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	resp, err := h.evaluationService.EvaluateReport(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, resp)
}
