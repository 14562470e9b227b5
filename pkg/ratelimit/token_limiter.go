package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter enforces a token budget per minute. Consumers wait
// until enough budget is available for the tokens they are about to
// spend.
type TokenLimiter struct {
	mu              sync.Mutex
	maxPerMinute    int
	remaining       int
	windowStartedAt time.Time
}

// NewTokenLimiter creates a limiter with the given per-minute budget.
func NewTokenLimiter(maxPerMinute int) *TokenLimiter {
	return &TokenLimiter{
		maxPerMinute:    maxPerMinute,
		remaining:       maxPerMinute,
		windowStartedAt: time.Now(),
	}
}

// Wait blocks until the requested number of tokens fits in the current
// window, resetting the window once a minute has elapsed.
func (l *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	for {
		l.mu.Lock()
		l.maybeReset()
		if tokens >= l.maxPerMinute || l.remaining >= tokens {
			l.remaining -= tokens
			l.mu.Unlock()
			return nil
		}
		wait := time.Until(l.windowStartedAt.Add(time.Minute))
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// GetRemaining reports the unspent budget in the current window.
func (l *TokenLimiter) GetRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maybeReset()
	return l.remaining
}

func (l *TokenLimiter) maybeReset() {
	if time.Since(l.windowStartedAt) >= time.Minute {
		l.remaining = l.maxPerMinute
		l.windowStartedAt = time.Now()
	}
}
