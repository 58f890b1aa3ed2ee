// File: internal/usecase/redeem_uc.go
package usecase

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"giftcode-redemption/internal/config"
	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/adapter"
	"giftcode-redemption/internal/domain/ports/repository"
	"giftcode-redemption/internal/infra/metrics"
)

// RedeemUseCase runs the solve-and-submit loop for a single (account, code)
// pair. It never talks to the game service outside the serialized queue; the
// batch orchestrator and the validation flow both call it from queue handlers.
type RedeemUseCase struct {
	game    adapter.GameClient
	solver  adapter.CaptchaSolver
	records repository.RedemptionRecordRepository
	cfg     config.RedeemConfig
	log     *zerolog.Logger

	// sleep is swapped out in tests to keep the retry loop instant.
	sleep func(ctx context.Context, d time.Duration)
}

func NewRedeemUseCase(
	game adapter.GameClient,
	solver adapter.CaptchaSolver,
	records repository.RedemptionRecordRepository,
	cfg config.RedeemConfig,
	logger *zerolog.Logger,
) *RedeemUseCase {
	l := logger.With().Str("component", "Redeem").Logger()
	return &RedeemUseCase{
		game:    game,
		solver:  solver,
		records: records,
		cfg:     cfg,
		log:     &l,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Redeem attempts one redemption end to end and returns the final outcome.
// A terminal record already on file short-circuits without any service call.
func (uc *RedeemUseCase) Redeem(ctx context.Context, accountID, code string) (model.Outcome, error) {
	if rec, err := uc.records.Find(ctx, nil, accountID, code); err == nil && rec != nil {
		uc.log.Debug().Str("account_id", accountID).Str("code", code).
			Str("outcome", string(rec.Outcome)).Msg("terminal record on file, skipping")
		return rec.Outcome, nil
	}
	return uc.Attempt(ctx, accountID, code)
}

// Attempt runs the loop unconditionally, without the terminal-record
// short-circuit. Validation probes use it directly.
func (uc *RedeemUseCase) Attempt(ctx context.Context, accountID, code string) (model.Outcome, error) {
	if !uc.solver.Enabled() {
		return "", domain.ErrSolverUnavailable
	}

	if _, err := uc.game.Login(ctx, accountID); err != nil {
		uc.log.Warn().Err(err).Str("account_id", accountID).Msg("login failed")
		return model.OutcomeLoginFailed, nil
	}

	for cycle := 1; cycle <= uc.cfg.MaxCaptchaCycles; cycle++ {
		outcome, final := uc.runCycle(ctx, accountID, code, cycle)
		if final {
			return outcome, nil
		}
		if ctx.Err() != nil {
			return model.OutcomeConnectionError, ctx.Err()
		}
		if cycle < uc.cfg.MaxCaptchaCycles {
			uc.sleep(ctx, randomBetween(uc.cfg.CycleDelayMin, uc.cfg.CycleDelayMax))
		}
	}

	metrics.IncCaptchaCycle("exhausted")
	uc.log.Warn().Str("account_id", accountID).Str("code", code).
		Int("cycles", uc.cfg.MaxCaptchaCycles).Msg("captcha attempts exhausted")
	return model.OutcomeMaxCaptchaAttempts, nil
}

// runCycle performs one fetch-solve-submit round. final=false means the
// cycle burned an attempt but the loop should continue.
func (uc *RedeemUseCase) runCycle(ctx context.Context, accountID, code string, cycle int) (model.Outcome, bool) {
	img, err := uc.game.GetCaptcha(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			// Parking is the orchestrator's call; report it without burning
			// further cycles against a throttled session.
			metrics.IncCaptchaCycle("too_frequent")
			return model.OutcomeCaptchaTooFrequent, true
		}
		uc.log.Warn().Err(err).Str("account_id", accountID).Int("cycle", cycle).Msg("captcha fetch failed")
		return model.OutcomeConnectionError, true
	}

	solved, err := uc.solver.Solve(ctx, img)
	if err != nil || !solved.OK {
		metrics.IncCaptchaCycle("unsolved")
		uc.log.Debug().Err(err).Str("account_id", accountID).Int("cycle", cycle).Msg("no usable captcha candidate")
		return "", false
	}

	reply, err := uc.game.SubmitCode(ctx, accountID, code, solved.Text)
	if err != nil {
		uc.log.Warn().Err(err).Str("account_id", accountID).Str("code", code).Msg("submission failed")
		return model.OutcomeConnectionError, true
	}

	outcome := ClassifyReply(reply)
	if outcome == model.OutcomeCaptchaInvalid {
		metrics.IncCaptchaCycle("rejected")
		return "", false
	}
	if outcome == model.OutcomeCaptchaTooFrequent {
		metrics.IncCaptchaCycle("too_frequent")
		return outcome, true
	}
	metrics.IncCaptchaCycle("accepted")
	return outcome, true
}

func randomBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
