// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsync

import (
	"context"
	"time"
)

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nextDelay computes the backoff before the next push attempt given the
// number of failures so far: min(MaxBackoff, InitialBackoff * 2^failures).
// Past the retry cap the delay stays at the maximum.
func (c *Config) nextDelay(failures int) time.Duration {
	if failures >= c.MaxRetryCount {
		return c.MaxBackoff
	}
	d := c.InitialBackoff << uint(failures)
	if d <= 0 || d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}
