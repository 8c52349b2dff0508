package service

import (
	"context"
	"errors"

	"earnings-call-engine/internal/engine/repository"
)

var (
	// ErrInvalidRequest wraps input validation failures.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDocumentNotFound is returned when a referenced document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNoEvidence is returned when retrieval produced no context for a report.
	ErrNoEvidence = errors.New("no context chunks retrieved, ensure documents are embedded")
	// ErrGenerationEmpty is returned when the model produced no usable text.
	ErrGenerationEmpty = errors.New("generation returned no text")
	// ErrGenerationMalformed is returned when the model output is not a JSON object.
	ErrGenerationMalformed = errors.New("generation output is not a JSON object")
)

// ErrorKind returns a stable name for the failure class of err.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return "InvalidRequest"
	case errors.Is(err, ErrDocumentNotFound):
		return "DocumentNotFound"
	case errors.Is(err, ErrNoEvidence):
		return "NoEvidence"
	case errors.Is(err, ErrGenerationEmpty):
		return "GenerationEmpty"
	case errors.Is(err, ErrGenerationMalformed):
		return "GenerationMalformed"
	case errors.Is(err, repository.ErrDocumentExists):
		return "DocumentExists"
	case errors.Is(err, repository.ErrUniqueConflict):
		return "UniqueConflict"
	case errors.Is(err, repository.ErrGatewayTimeout), errors.Is(err, context.DeadlineExceeded):
		return "GatewayTimeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	default:
		return "Internal"
	}
}
