package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"earnings-call-engine/internal/engine/repository"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: ticker is required", ErrInvalidRequest), "InvalidRequest"},
		{fmt.Errorf("%w: current quarter GOOG 2025_Q3", ErrDocumentNotFound), "DocumentNotFound"},
		{ErrNoEvidence, "NoEvidence"},
		{fmt.Errorf("%w: no candidates", ErrGenerationEmpty), "GenerationEmpty"},
		{fmt.Errorf("%w: not an object", ErrGenerationMalformed), "GenerationMalformed"},
		{repository.ErrDocumentExists, "DocumentExists"},
		{repository.ErrUniqueConflict, "UniqueConflict"},
		{fmt.Errorf("%w: generate exceeded 1m", repository.ErrGatewayTimeout), "GatewayTimeout"},
		{context.DeadlineExceeded, "GatewayTimeout"},
		{context.Canceled, "Canceled"},
		{errors.New("boom"), "Internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), fmt.Sprint(tt.err))
	}
}
