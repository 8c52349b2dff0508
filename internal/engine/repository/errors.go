package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDocumentExists is returned when (ticker, quarter) is already ingested.
	ErrDocumentExists = errors.New("document already exists for ticker and quarter")
	// ErrUniqueConflict is returned when a write-once row was written concurrently.
	ErrUniqueConflict = errors.New("unique constraint conflict")
	// ErrGatewayTimeout is returned when an embedding or generation call exceeds its deadline.
	ErrGatewayTimeout = errors.New("model gateway timed out")
)

// wrapGatewayError turns deadline expiries into ErrGatewayTimeout and wraps everything else.
func wrapGatewayError(ctx context.Context, op string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s exceeded %s", ErrGatewayTimeout, op, timeout)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
