package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every refresh interval.
type TickFunc func(ctx context.Context, now time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval    time.Duration
	Immediately bool
}

// Scheduler drives periodic refresh jobs such as the ledger history
// pull. Tick errors are logged, never fatal; the next interval still
// fires.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function every interval until ctx is
// cancelled. When Immediately is set the first tick fires right away.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.Immediately {
		s.fire(ctx, tick)
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.fire(ctx, tick)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, tick TickFunc) {
	now := time.Now().UTC()
	s.logger.Debug().Time("at", now).Msg("executing scheduled tick")
	if err := tick(ctx, now); err != nil {
		s.logger.Error().Err(err).Msg("tick execution failed")
	}
}
