// File: internal/infra/sched/sync_worker.go
package sched

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"giftcode-redemption/internal/config"
	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/adapter"
	"giftcode-redemption/internal/domain/ports/repository"
	"giftcode-redemption/internal/infra/metrics"
	red "giftcode-redemption/internal/infra/redis"
)

// CodeValidator probes a code against the validation account and applies the
// verdict. Satisfied by the validation use case.
type CodeValidator interface {
	ValidateWithRetries(ctx context.Context, code string) (model.Outcome, error)
}

// Throttle enforces minimum spacing between outgoing registry calls across
// all processes sharing the redis instance.
type Throttle interface {
	WaitAllow(ctx context.Context, key string, limit int, window time.Duration) error
}

// SyncWorker keeps the local code registry and the community-shared one
// convergent. Each cycle drains pending removals, pulls unknown remote codes
// in for validation, and pushes locally validated codes out. Consecutive
// failures widen the interval with jittered exponential backoff; a success
// resets it to the randomized base window.
type SyncWorker struct {
	registry  adapter.SharedRegistryClient
	codes     repository.CodeRepository
	validator CodeValidator
	throttle  Throttle
	notifier  adapter.Notifier
	cfg       config.RegistryConfig
	log       *zerolog.Logger

	mu      sync.Mutex
	pending map[string]struct{} // codes awaiting remote removal

	backoff time.Duration
	rng     *rand.Rand
}

func NewSyncWorker(
	registry adapter.SharedRegistryClient,
	codes repository.CodeRepository,
	validator CodeValidator,
	throttle Throttle,
	notifier adapter.Notifier,
	cfg config.RegistryConfig,
	logger *zerolog.Logger,
) *SyncWorker {
	l := logger.With().Str("component", "SyncWorker").Logger()
	return &SyncWorker{
		registry:  registry,
		codes:     codes,
		validator: validator,
		throttle:  throttle,
		notifier:  notifier,
		cfg:       cfg,
		log:       &l,
		pending:   make(map[string]struct{}),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetValidator installs the inline validator after construction. The worker
// also serves the classifier as its removal scheduler, which puts it on both
// sides of the validation flow; late binding breaks that cycle at wiring
// time. Must be called before Run.
func (w *SyncWorker) SetValidator(v CodeValidator) {
	w.validator = v
}

// ScheduleRemoval queues a code for deletion from the shared registry on the
// next cycle. Duplicate scheduling collapses into one removal.
func (w *SyncWorker) ScheduleRemoval(code string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[code] = struct{}{}
}

// Run drives sync cycles until the context ends.
func (w *SyncWorker) Run(ctx context.Context) error {
	w.log.Info().
		Dur("interval_min", w.cfg.SyncIntervalMin).
		Dur("interval_max", w.cfg.SyncIntervalMax).
		Msg("starting registry synchronizer")

	for {
		wait := w.nextWait()
		metrics.SetSyncBackoff(w.backoff.Seconds())
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping registry synchronizer")
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := w.runCycle(ctx); err != nil {
			w.backoff = nextBackoff(w.backoff, w.cfg.BackoffBase, w.cfg.BackoffCap)
			metrics.IncSyncRun("failed")
			w.log.Error().Err(err).Dur("backoff", w.backoff).Msg("sync cycle failed")
			continue
		}
		w.backoff = 0
		metrics.IncSyncRun("ok")
	}
}

// nextWait returns the delay before the next cycle: the jittered backoff when
// the previous cycle failed, otherwise a fresh random slice of the window.
func (w *SyncWorker) nextWait() time.Duration {
	if w.backoff > 0 {
		return withJitter(w.backoff, w.rng)
	}
	return randomInterval(w.cfg.SyncIntervalMin, w.cfg.SyncIntervalMax, w.rng)
}

// runCycle performs one full removals-pull-push pass. Partial progress is
// fine: anything that did not make it stays for the next cycle.
func (w *SyncWorker) runCycle(ctx context.Context) error {
	w.drainRemovals(ctx)

	if err := w.pull(ctx); err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	if err := w.push(ctx); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}

// drainRemovals deletes scheduled codes from the shared registry. A failed
// removal is rescheduled rather than lost.
func (w *SyncWorker) drainRemovals(ctx context.Context) {
	w.mu.Lock()
	batch := make([]string, 0, len(w.pending))
	for code := range w.pending {
		batch = append(batch, code)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for _, code := range batch {
		if err := w.wait(ctx); err != nil {
			w.ScheduleRemoval(code)
			continue
		}
		if err := w.registry.RemoveCode(ctx, code); err != nil {
			w.log.Warn().Err(err).Str("code", code).Msg("registry removal failed, rescheduled")
			w.ScheduleRemoval(code)
			continue
		}
		w.log.Info().Str("code", code).Msg("code removed from shared registry")
	}
}

// pull imports remote codes unknown locally, registering them as pending and
// validating them inline so they fan out immediately when live.
func (w *SyncWorker) pull(ctx context.Context) error {
	if err := w.wait(ctx); err != nil {
		return err
	}
	entries, malformed, err := w.registry.ListCodes(ctx)
	if err != nil {
		return err
	}
	if len(malformed) > 0 {
		w.log.Warn().Strs("entries", malformed).Msg("malformed registry entries skipped")
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		local, err := w.codes.FindByCode(ctx, nil, e.Code)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			w.log.Info().Str("code", e.Code).Msg("new code discovered in shared registry")
			w.revalidate(ctx, e.Code, false)
		case err != nil:
			return err
		case local.Status == model.CodeStatusInvalid:
			// The registry still lists a code we hold invalid: either it came
			// back to life or the listing is stale. Probing settles it; a
			// confirmed-dead code is scheduled for removal so the disagreement
			// converges instead of repeating every cycle.
			w.log.Info().Str("code", e.Code).Msg("registry lists locally invalid code, re-probing")
			w.revalidate(ctx, e.Code, true)
		}
	}
	return nil
}

// revalidate probes one pulled code inline. With removeWhenDead set, a
// hard-invalid verdict queues the code for removal from the shared registry.
func (w *SyncWorker) revalidate(ctx context.Context, code string, removeWhenDead bool) {
	if w.validator == nil {
		return
	}
	outcome, err := w.validator.ValidateWithRetries(ctx, code)
	if err != nil {
		if !errors.Is(err, domain.ErrLockHeld) {
			w.log.Error().Err(err).Str("code", code).Msg("inline validation of pulled code failed")
		}
		return
	}
	if removeWhenDead && outcome.IsHardInvalid() {
		w.ScheduleRemoval(code)
	}
}

// push uploads locally validated codes the registry does not have yet. A
// rejection is authoritative: the registry saw the code die before we did.
func (w *SyncWorker) push(ctx context.Context) error {
	validated, err := w.codes.ListByStatus(ctx, nil, model.CodeStatusValidated)
	if err != nil {
		return err
	}

	for _, c := range validated {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.wait(ctx); err != nil {
			return err
		}
		exists, err := w.registry.CheckCode(ctx, c.Code)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		if err := w.wait(ctx); err != nil {
			return err
		}
		switch err := w.registry.AddCode(ctx, c.Code, c.CreatedAt); {
		case err == nil:
			w.log.Info().Str("code", c.Code).Msg("code pushed to shared registry")
		case errors.Is(err, domain.ErrAlreadyExists):
			// A concurrent writer won the race; nothing to do.
		case errors.Is(err, domain.ErrRegistryRejected):
			w.log.Warn().Str("code", c.Code).Msg("registry rejected code, downgrading locally")
			if _, uerr := w.codes.UpdateStatus(ctx, nil, c.Code, model.CodeStatusInvalid); uerr != nil {
				w.log.Error().Err(uerr).Str("code", c.Code).Msg("downgrade after rejection failed")
			}
			if w.notifier != nil {
				_ = w.notifier.Notify(ctx, fmt.Sprintf("Shared registry rejected code %s; marked invalid locally", c.Code))
			}
		default:
			return err
		}
	}
	return nil
}

func (w *SyncWorker) wait(ctx context.Context) error {
	if w.throttle == nil {
		return nil
	}
	return w.throttle.WaitAllow(ctx, red.RegistrySpacingKey(), 1, w.cfg.MinSpacing)
}

// nextBackoff doubles the current backoff, seeding from base and clamping at
// cap.
func nextBackoff(cur, base, cap time.Duration) time.Duration {
	if cur <= 0 {
		return base
	}
	next := cur * 2
	if next > cap {
		return cap
	}
	return next
}

// withJitter spreads a duration over [0.75x, 1.25x] so synchronized replicas
// do not stampede the registry after a shared outage.
func withJitter(d time.Duration, rng *rand.Rand) time.Duration {
	if d <= 0 {
		return 0
	}
	f := 0.75 + rng.Float64()*0.5
	return time.Duration(float64(d) * f)
}

// randomInterval picks a uniform point in [min, max].
func randomInterval(min, max time.Duration, rng *rand.Rand) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}
