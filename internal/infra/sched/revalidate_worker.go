// File: internal/infra/sched/revalidate_worker.go
package sched

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/infra/metrics"
)

// Sweeper runs one revalidation sweep over the locally known codes.
// Satisfied by the validation use case.
type Sweeper interface {
	RunSweep(ctx context.Context) error
}

// RevalidateWorker fires the periodic revalidation sweep on a cron schedule.
// Overlap is prevented by the sweep's own distributed lock, so a slow sweep
// simply makes the next tick a no-op.
type RevalidateWorker struct {
	spec    string
	sweeper Sweeper
	cron    *cron.Cron
	log     *zerolog.Logger
}

func NewRevalidateWorker(spec string, sweeper Sweeper, logger *zerolog.Logger) *RevalidateWorker {
	l := logger.With().Str("component", "Revalidator").Logger()
	return &RevalidateWorker{
		spec:    spec,
		sweeper: sweeper,
		log:     &l,
	}
}

// Start registers the schedule and begins ticking. The returned error covers
// schedule parsing only.
func (w *RevalidateWorker) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(w.spec, func() { w.sweep(ctx) })
	if err != nil {
		return fmt.Errorf("parse revalidation schedule %q: %w", w.spec, err)
	}
	w.cron = c
	c.Start()
	w.log.Info().Str("schedule", w.spec).Msg("periodic revalidation scheduled")

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running sweep trigger to return.
func (w *RevalidateWorker) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
	w.log.Info().Msg("periodic revalidation stopped")
}

func (w *RevalidateWorker) sweep(ctx context.Context) {
	err := w.sweeper.RunSweep(ctx)
	switch {
	case err == nil:
		metrics.IncRevalidatorRun("ok")
	case errors.Is(err, domain.ErrLockHeld):
		metrics.IncRevalidatorRun("skipped")
		w.log.Info().Msg("sweep already in progress elsewhere, skipping")
	case errors.Is(err, context.Canceled):
		// shutdown
	default:
		metrics.IncRevalidatorRun("failed")
		w.log.Error().Err(err).Msg("revalidation sweep failed")
	}
}
