package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/heartbeat/internal/monitor"
	"go.uber.org/zap"
)

// Source supplies deduplicated monitor definitions.
type Source interface {
	Load(ctx context.Context) ([]monitor.Definition, error)
}

// Runner is the single driver loop: one Setup, then Tick and a fixed
// delay until the context is cancelled.
type Runner struct {
	engine   *Engine
	source   Source
	interval time.Duration
	logger   *zap.Logger
}

// NewRunner creates a runner that ticks engine every interval.
func NewRunner(engine *Engine, source Source, interval time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		engine:   engine,
		source:   source,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, then stops the engine. It returns an
// error only if loading definitions or Setup fails.
func (r *Runner) Run(ctx context.Context) error {
	defer r.engine.Stop()

	defs, err := r.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}
	if err := r.engine.Setup(ctx, defs); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("setup engine: %w", err)
	}

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		sum, err := r.engine.Tick(ctx)
		switch {
		case errors.Is(err, ErrStopped):
			return nil
		case err != nil && ctx.Err() == nil:
			r.logger.Warn("tick failed", zap.Error(err))
		case err == nil && sum.Batches > 0:
			r.logger.Debug("tick complete",
				zap.Int("batches", sum.Batches),
				zap.Int("succeeded", sum.Succeeded),
				zap.Int("failed", sum.Failed),
				zap.Int("not_due", sum.NotDue),
			)
		}

		timer.Reset(r.interval)
		select {
		case <-ctx.Done():
			r.logger.Info("heartbeat runner stopping")
			return nil
		case <-timer.C:
		}
	}
}
