package pace

import (
	"context"
	"time"
)

// Wait blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when interrupted and nil otherwise.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
