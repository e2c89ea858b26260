package dispatch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultSendInterval keeps consecutive sends under the provider burst limit.
const DefaultSendInterval = 100 * time.Millisecond

// Limiter gates transport calls. One Limiter is shared by every worker of a
// Dispatcher.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewIntervalLimiter returns a bucket of depth 1 refilled once per interval:
// the first send goes out at once, each later one waits for the interval.
// A non-positive interval disables limiting.
func NewIntervalLimiter(interval time.Duration) Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
