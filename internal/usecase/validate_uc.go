// File: internal/usecase/validate_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"giftcode-redemption/internal/config"
	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/repository"
)

const (
	validateLockKeyPrefix = "lock:validate:"
	sweepLockKey          = "lock:revalidate"
	retentionMarkerPrefix = "marker:retention:"
	validateLockTTL       = 5 * time.Minute
	sweepLockTTL          = 30 * time.Minute
	validationRetries     = 3
	validationRetryDelay  = 5 * time.Second
)

// Locker guards validation passes across processes. TryLock never blocks; a
// held lock returns domain.ErrLockHeld.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// ValidationUseCase probes codes against the designated validation account,
// promotes or invalidates them based on the classified outcome, and fans
// newly validated codes out to auto-redeeming groups.
type ValidationUseCase struct {
	codes      repository.CodeRepository
	records    repository.RedemptionRecordRepository
	groups     repository.GroupRepository
	redeemer   *RedeemUseCase
	classifier *ClassifierService
	queue      *WorkQueue
	locker     Locker
	cfg        config.Config
	log        *zerolog.Logger

	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

func NewValidationUseCase(
	codes repository.CodeRepository,
	records repository.RedemptionRecordRepository,
	groups repository.GroupRepository,
	redeemer *RedeemUseCase,
	classifier *ClassifierService,
	queue *WorkQueue,
	locker Locker,
	cfg config.Config,
	logger *zerolog.Logger,
) *ValidationUseCase {
	l := logger.With().Str("component", "Validation").Logger()
	return &ValidationUseCase{
		codes:      codes,
		records:    records,
		groups:     groups,
		redeemer:   redeemer,
		classifier: classifier,
		queue:      queue,
		locker:     locker,
		cfg:        cfg,
		log:        &l,
		sleep:      sleepCtx,
		now:        time.Now,
	}
}

// ValidateCode probes one code once and applies the verdict. The code row is
// created as pending when missing, so callers can hand in brand-new codes.
func (uc *ValidationUseCase) ValidateCode(ctx context.Context, code string) (model.Outcome, error) {
	token, err := uc.locker.TryLock(ctx, validateLockKeyPrefix+code, validateLockTTL)
	if err != nil {
		return "", err
	}
	defer func() { _ = uc.locker.Unlock(ctx, validateLockKeyPrefix+code, token) }()

	prev, err := uc.codes.FindByCode(ctx, nil, code)
	if errors.Is(err, domain.ErrNotFound) {
		prev = model.NewGiftCode(code)
		if err := uc.codes.Save(ctx, nil, prev); err != nil {
			return "", fmt.Errorf("register code %s: %w", code, err)
		}
	} else if err != nil {
		return "", err
	}

	account := uc.cfg.Redeem.ValidationAccount
	outcome, err := uc.redeemer.Attempt(ctx, account, code)
	if err != nil {
		return "", err
	}

	if outcome.IsSuccess() {
		// An invalid code answering successfully again means a fresh grant
		// cycle; stale records must go before any new attempts are recorded.
		if prev.Status == model.CodeStatusInvalid {
			if err := uc.classifier.Reactivate(ctx, code); err != nil {
				uc.log.Error().Err(err).Str("code", code).Msg("reactivation cascade failed")
			} else {
				uc.log.Info().Str("code", code).Msg("previously invalid code is live again")
			}
		} else if _, err := uc.codes.UpdateStatus(ctx, nil, code, model.CodeStatusValidated); err != nil {
			return "", fmt.Errorf("promote code %s: %w", code, err)
		}
	}

	if err := uc.classifier.Apply(ctx, account, code, outcome, nil); err != nil {
		uc.log.Error().Err(err).Str("code", code).Msg("verdict propagation failed")
	}

	// Fan out only on the first promotion (pending upgrade or reactivation).
	// Sweeps re-probe validated codes constantly; those confirmations must
	// not schedule another redemption batch.
	if outcome.IsSuccess() && prev.Status != model.CodeStatusValidated {
		uc.EnqueueAutoRedeem(code)
	}

	uc.log.Info().Str("code", code).Str("outcome", string(outcome)).Msg("code validated")
	return outcome, nil
}

// ValidateWithRetries retries inconclusive probes a fixed number of times
// before giving up. Terminal verdicts return immediately.
func (uc *ValidationUseCase) ValidateWithRetries(ctx context.Context, code string) (model.Outcome, error) {
	var outcome model.Outcome
	var err error
	for attempt := 1; attempt <= validationRetries; attempt++ {
		outcome, err = uc.ValidateCode(ctx, code)
		if err != nil || outcome.IsTerminal() {
			return outcome, err
		}
		if attempt < validationRetries {
			uc.sleep(ctx, validationRetryDelay)
		}
	}
	return outcome, err
}

// EnqueueAutoRedeem schedules a redemption batch of the code for every group
// that opted into automatic redemption.
func (uc *ValidationUseCase) EnqueueAutoRedeem(code string) {
	ctx := context.Background()
	groups, err := uc.groups.ListAutoRedeem(ctx, nil)
	if err != nil {
		uc.log.Error().Err(err).Str("code", code).Msg("list auto-redeem groups")
		return
	}
	if len(groups) == 0 {
		return
	}
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	if _, err := uc.queue.Enqueue(&QueueItem{
		Kind:     KindRedeem,
		Code:     code,
		GroupIDs: ids,
		Source:   "auto",
	}); err != nil {
		uc.log.Error().Err(err).Str("code", code).Msg("enqueue auto-redemption")
	}
}

// RunSweep revalidates up to the configured number of validated codes and,
// once per day, drops long-invalid codes together with their records. Returns
// domain.ErrLockHeld when another sweep is in flight.
func (uc *ValidationUseCase) RunSweep(ctx context.Context) error {
	token, err := uc.locker.TryLock(ctx, sweepLockKey, sweepLockTTL)
	if err != nil {
		return err
	}
	defer func() { _ = uc.locker.Unlock(ctx, sweepLockKey, token) }()

	uc.runRetention(ctx)

	codes, err := uc.codes.ListByStatus(ctx, nil, model.CodeStatusValidated, model.CodeStatusPending)
	if err != nil {
		return fmt.Errorf("list codes for sweep: %w", err)
	}
	if max := uc.cfg.Revalidate.MaxCodesPerRun; len(codes) > max {
		codes = codes[:max]
	}

	uc.log.Info().Int("codes", len(codes)).Msg("revalidation sweep started")
	for _, c := range codes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := uc.ValidateCode(ctx, c.Code); err != nil && !errors.Is(err, domain.ErrLockHeld) {
			uc.log.Error().Err(err).Str("code", c.Code).Msg("sweep probe failed")
		}
		uc.sleep(ctx, jittered(uc.cfg.Redeem.InterAccountDelay))
	}
	return nil
}

// runRetention is guarded by a day-scoped marker so the purge runs at most
// once per calendar day regardless of how many sweeps fire.
func (uc *ValidationUseCase) runRetention(ctx context.Context) {
	day := uc.now().UTC().Format("2006-01-02")
	token, err := uc.locker.TryLock(ctx, retentionMarkerPrefix+day, 48*time.Hour)
	if err != nil {
		if !errors.Is(err, domain.ErrLockHeld) {
			uc.log.Error().Err(err).Msg("retention marker check failed")
		}
		return
	}
	_ = token // the marker is deliberately never unlocked; it expires on its own

	cutoff := uc.now().AddDate(0, 0, -uc.cfg.Revalidate.RetentionDays)
	deleted, err := uc.codes.DeleteInvalidOlderThan(ctx, nil, cutoff)
	if err != nil {
		uc.log.Error().Err(err).Msg("retention purge failed")
		return
	}
	for _, code := range deleted {
		if _, err := uc.records.DeleteByCode(ctx, nil, code); err != nil {
			uc.log.Error().Err(err).Str("code", code).Msg("purge records of expired code")
		}
	}
	if len(deleted) > 0 {
		uc.log.Info().Int("deleted", len(deleted)).Msg("expired invalid codes purged")
	}
}
