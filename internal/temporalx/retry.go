package temporalx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// Retry bounds a connect-style operation: each attempt gets Attempt (zero
// means no per-attempt deadline) and the whole loop gives up after Budget.
// Sleeps double from Base up to Max.
type Retry struct {
	Attempt time.Duration
	Budget  time.Duration
	Base    time.Duration
	Max     time.Duration
}

func (r Retry) delay(attempt int) time.Duration {
	base := r.Base
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if r.Max > 0 && sleep >= r.Max {
			return r.Max
		}
	}
	if r.Max > 0 && sleep > r.Max {
		return r.Max
	}
	return sleep
}

// Do calls fn until it succeeds, returns a permanent error (retry=false) or
// the budget is spent. A zero budget means a single attempt.
func (r Retry) Do(ctx context.Context, log *logger.Logger, op string, fn func(ctx context.Context) (retry bool, err error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(r.Budget)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		actx, cancel := ctx, context.CancelFunc(func() {})
		if r.Attempt > 0 {
			actx, cancel = context.WithTimeout(ctx, r.Attempt)
		}
		retry, err := fn(actx)
		cancel()
		if err == nil {
			if attempt > 1 && log != nil {
				log.Info(op+" succeeded", "attempts", attempt)
			}
			return nil
		}
		if !retry || r.Budget <= 0 || time.Now().After(deadline) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if log != nil {
			log.Warn(op+" failed; retrying", "attempt", attempt, "error", err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(r.delay(attempt)):
		}
	}
}

// isRetryableRPC reports transient gRPC failures.
func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
