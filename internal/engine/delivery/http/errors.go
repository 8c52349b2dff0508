package http

import (
	"net/http"

	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/service"
	"earnings-call-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

// respondError maps a service error onto an HTTP status with a {error, kind} body.
func respondError(c echo.Context, log *logger.Logger, err error) error {
	kind := service.ErrorKind(err)

	status := http.StatusInternalServerError
	switch kind {
	case "InvalidRequest":
		status = http.StatusBadRequest
	case "DocumentNotFound":
		status = http.StatusNotFound
	case "DocumentExists", "UniqueConflict":
		status = http.StatusConflict
	case "GatewayTimeout":
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		log.Error("Request failed",
			logger.ErrorField(err),
			logger.StringField("kind", kind),
			logger.StringField("method", c.Request().Method),
			logger.StringField("path", c.Path()),
		)
	}
	return c.JSON(status, dto.ErrorResponse{Error: err.Error(), Kind: kind})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg, Kind: "InvalidRequest"})
}
