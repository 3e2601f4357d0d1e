package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Kind identifies one of the two outbound queues.
type Kind string

const (
	KindAnnounce Kind = "announce"
	KindSend     Kind = "send"
)

// QueueLimiters holds one token bucket limiter per outbound queue kind.
// The bot API throttles aggressively on bursts, so the drainer waits on the
// matching limiter before every dispatch. Burst equals the rate: no "saved
// up" burst beyond the configured per-second maximum.
type QueueLimiters struct {
	limiters map[Kind]*rate.Limiter
}

// New creates QueueLimiters with the given dispatches per second per kind.
func New(announcePerSec, sendPerSec int) *QueueLimiters {
	return &QueueLimiters{
		limiters: map[Kind]*rate.Limiter{
			KindAnnounce: rate.NewLimiter(rate.Limit(announcePerSec), announcePerSec),
			KindSend:     rate.NewLimiter(rate.Limit(sendPerSec), sendPerSec),
		},
	}
}

// Wait blocks until the kind's limiter grants a token.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (ql *QueueLimiters) Wait(ctx context.Context, k Kind) error {
	return ql.limiters[k].Wait(ctx)
}
