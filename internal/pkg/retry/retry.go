// Package retry implements bounded exponential backoff for transient
// gateway failures.
package retry

import (
	"context"
	"time"
)

type Policy struct {
	Attempts int
	BaseWait time.Duration
	MaxWait  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 3, BaseWait: 500 * time.Millisecond, MaxWait: 5 * time.Second}
}

// Do runs fn up to Attempts times, doubling the wait between attempts.
// shouldRetry decides per error whether another attempt is worthwhile; a nil
// shouldRetry retries every error. The last error is returned when all
// attempts fail.
func Do(ctx context.Context, p Policy, fn func() error, shouldRetry func(error) bool) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	wait := p.BaseWait
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		if attempt == p.Attempts {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait *= 2
		if p.MaxWait > 0 && wait > p.MaxWait {
			wait = p.MaxWait
		}
	}
	return err
}
