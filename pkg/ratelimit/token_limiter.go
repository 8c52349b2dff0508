package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// TokenLimiter throttles callers by a per-minute token budget, e.g. LLM prompt tokens.
type TokenLimiter struct {
	limiter *rate.Limiter
	burst   int
}

// NewTokenLimiter allows maxTokensPerMinute tokens per minute with a full minute of burst.
// A non-positive budget disables limiting.
func NewTokenLimiter(maxTokensPerMinute int) *TokenLimiter {
	if maxTokensPerMinute <= 0 {
		return &TokenLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	perToken := time.Minute / time.Duration(maxTokensPerMinute)
	return &TokenLimiter{
		limiter: rate.NewLimiter(rate.Every(perToken), maxTokensPerMinute),
		burst:   maxTokensPerMinute,
	}
}

// Wait blocks until n tokens are available. Requests larger than the burst
// wait for the whole burst instead of failing.
func (l *TokenLimiter) Wait(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if l.burst > 0 && n > l.burst {
		n = l.burst
	}
	return l.limiter.WaitN(ctx, n)
}

// GetRemaining reports the tokens currently available.
func (l *TokenLimiter) GetRemaining() int {
	if l.burst == 0 {
		return -1
	}
	return int(l.limiter.Tokens())
}
