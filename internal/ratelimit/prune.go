package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Pruner removes expired counters from a store.
type Pruner interface {
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextRun returns the duration from now until the schedule next fires.
func nextRun(sched cron.Schedule, now time.Time) time.Duration {
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RunPruner prunes p every time expr fires until ctx is cancelled. Prune
// failures are logged and the schedule continues.
func RunPruner(ctx context.Context, p Pruner, expr string, log zerolog.Logger) error {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("ratelimit: prune schedule %q: %w", expr, err)
	}

	timer := time.NewTimer(nextRun(sched, time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			now := time.Now()
			n, err := p.Prune(ctx, now)
			if err != nil {
				log.Warn().Err(err).Msg("prune rate limit counters")
			} else if n > 0 {
				log.Debug().Int64("removed", n).Msg("pruned rate limit counters")
			}
			timer.Reset(nextRun(sched, time.Now()))
		}
	}
}
