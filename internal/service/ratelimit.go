package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/pkg/apperr"
)

// IssuanceCounter is the slice of the OTP store the rate limiter reads.
type IssuanceCounter interface {
	CountIssuancesSince(ctx context.Context, id model.Identifier, since time.Time) (int64, error)
}

// RateLimiter caps issuances per identifier in a trailing window.
// The check is advisory: two concurrent callers can both pass it.
type RateLimiter struct {
	counter IssuanceCounter
	max     int
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter(counter IssuanceCounter, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{counter: counter, max: max, window: window, now: time.Now}
}

// Allow fails with a rate_limited error once the ceiling is reached.
func (r *RateLimiter) Allow(ctx context.Context, id model.Identifier) error {
	const op = "RateLimiter.Allow"
	count, err := r.counter.CountIssuancesSince(ctx, id, r.now().Add(-r.window))
	if err != nil {
		return apperr.Internal(op, err)
	}
	if count >= int64(r.max) {
		return apperr.New(apperr.KindRateLimited, op,
			fmt.Sprintf("Too many verification codes requested. Please try again in %s.", humanWindow(r.window))).
			With("identifier_kind", id.Kind).
			With("count", count).
			With("max", r.max)
	}
	return nil
}

func humanWindow(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	m := int(d / time.Minute)
	if m <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
