package notify

import (
	"context"
	"fmt"
	"time"
)

// Retry resends through Inner until it succeeds, Attempts run out, or ctx ends.
type Retry struct {
	Inner    Notifier
	Attempts int
	Backoff  time.Duration
}

func (r *Retry) Send(ctx context.Context, title, text string) error {
	attempts := max(r.Attempts, 1)
	var last error
	for i := 0; i < attempts; i++ {
		if last = r.Inner.Send(ctx, title, text); last == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Backoff):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, last)
}
