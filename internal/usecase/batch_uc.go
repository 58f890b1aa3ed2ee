// File: internal/usecase/batch_uc.go
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
	"giftcode-redemption/internal/domain/ports/adapter"
	"giftcode-redemption/internal/domain/ports/repository"
	"giftcode-redemption/internal/infra/metrics"
)

// maxParkRetries caps how many times one (account, code) attempt may be
// parked and retried within a single batch before it counts as failed.
const maxParkRetries = 3

// BatchUseCase fans a set of (group, code) items out across group members,
// consolidating per-account outcomes into rate-limited progress snapshots.
// A hard-invalid outcome halts all further work for that code.
type BatchUseCase struct {
	codes      repository.CodeRepository
	groups     repository.GroupRepository
	records    repository.RedemptionRecordRepository
	redeemer   *RedeemUseCase
	classifier *ClassifierService
	cfg        config.Config
	log        *zerolog.Logger

	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

func NewBatchUseCase(
	codes repository.CodeRepository,
	groups repository.GroupRepository,
	records repository.RedemptionRecordRepository,
	redeemer *RedeemUseCase,
	classifier *ClassifierService,
	cfg config.Config,
	logger *zerolog.Logger,
) *BatchUseCase {
	l := logger.With().Str("component", "Batch").Logger()
	return &BatchUseCase{
		codes:      codes,
		groups:     groups,
		records:    records,
		redeemer:   redeemer,
		classifier: classifier,
		cfg:        cfg,
		log:        &l,
		sleep:      sleepCtx,
		now:        time.Now,
	}
}

// attemptUnit is one expanded (account, code) pair awaiting an attempt.
type attemptUnit struct {
	accountID string
	code      string
	attempts  int
}

// batchRun is the mutable state of one run. Single-goroutine; the queue
// serializes batches so no locking is needed.
type batchRun struct {
	snap        model.ProgressSnapshot
	observer    adapter.ProgressObserver
	lastEmit    time.Time
	emitEvery   time.Duration
	haltedCodes map[string]bool
}

func (r *batchRun) emit(ctx context.Context, force bool, now time.Time) {
	if r.observer == nil {
		return
	}
	if !force && now.Sub(r.lastEmit) < r.emitEvery {
		return
	}
	r.snap.UpdatedAt = now
	r.observer.Update(ctx, r.snap.BatchID, r.snap.Clone())
	r.lastEmit = now
}

func (r *batchRun) fail(outcome model.Outcome) {
	r.snap.Failed++
	r.snap.Processed++
	if r.snap.Failures == nil {
		r.snap.Failures = make(map[model.Outcome]int)
	}
	r.snap.Failures[outcome]++
}

// Run executes one batch to completion and returns the final snapshot. The
// error return covers orchestration failures only; per-account failures are
// folded into the snapshot.
func (uc *BatchUseCase) Run(ctx context.Context, batchID string, items []model.BatchItem, observer adapter.ProgressObserver) (model.ProgressSnapshot, error) {
	units, err := uc.expand(ctx, items)
	if err != nil {
		metrics.IncBatch(string(model.BatchStatusError))
		return model.ProgressSnapshot{}, err
	}

	run := &batchRun{
		snap: model.ProgressSnapshot{
			BatchID:  batchID,
			Status:   model.BatchStatusRunning,
			Total:    len(units),
			Failures: make(map[model.Outcome]int),
		},
		observer:    observer,
		emitEvery:   uc.cfg.Batch.ProgressInterval,
		haltedCodes: make(map[string]bool),
	}
	uc.seedHalted(ctx, run, units)
	uc.log.Info().Str("batch_id", batchID).Int("units", len(units)).Msg("batch started")
	run.emit(ctx, true, uc.now())

	buf := &RecordBuffer{}
	pending := units
	var parked []model.RetryCycleState

	for len(pending) > 0 || len(parked) > 0 {
		if ctx.Err() != nil {
			break
		}
		pending, parked = mergeDue(pending, parked, uc.now())
		if len(pending) == 0 {
			// Only parked work remains; wait out the earliest cooldown.
			// Parked entries are in cooldown order, so the head is next due.
			uc.sleep(ctx, parked[0].NextEligibleAt.Sub(uc.now()))
			if ctx.Err() != nil {
				break
			}
			pending = append(pending, attemptUnit{
				accountID: parked[0].AccountID,
				code:      parked[0].Code,
				attempts:  parked[0].Attempts,
			})
			parked = parked[1:]
		}

		unit := pending[0]
		pending = pending[1:]

		if run.haltedCodes[unit.code] {
			run.snap.NotAttempted++
			run.snap.Processed++
			run.emit(ctx, false, uc.now())
			continue
		}

		uc.runUnit(ctx, run, unit, buf, &parked)
		run.emit(ctx, false, uc.now())

		if len(pending) > 0 || len(parked) > 0 {
			uc.sleep(ctx, jittered(uc.cfg.Redeem.InterAccountDelay))
		}
	}

	if err := buf.Flush(ctx, uc.records); err != nil {
		uc.log.Error().Err(err).Str("batch_id", batchID).Msg("final record flush failed")
	}

	switch {
	case ctx.Err() != nil:
		run.snap.Status = model.BatchStatusError
	case len(run.haltedCodes) > 0:
		run.snap.Status = model.BatchStatusHalted
	default:
		run.snap.Status = model.BatchStatusCompleted
	}
	metrics.IncBatch(string(run.snap.Status))

	run.snap.UpdatedAt = uc.now()
	if observer != nil {
		observer.Complete(ctx, batchID, run.snap.Clone())
	}
	uc.log.Info().Str("batch_id", batchID).Str("status", string(run.snap.Status)).
		Int("success", run.snap.Success).Int("failed", run.snap.Failed).Msg("batch finished")
	return run.snap, nil
}

// seedHalted marks codes the registry already holds invalid, so a batch
// started after an invalidation never issues live attempts for them.
func (uc *BatchUseCase) seedHalted(ctx context.Context, run *batchRun, units []attemptUnit) {
	checked := make(map[string]bool)
	for _, u := range units {
		if checked[u.code] {
			continue
		}
		checked[u.code] = true
		gc, err := uc.codes.FindByCode(ctx, nil, u.code)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				uc.log.Error().Err(err).Str("code", u.code).Msg("registry lookup failed, attempting anyway")
			}
			continue
		}
		if gc.Status == model.CodeStatusInvalid {
			run.haltedCodes[u.code] = true
			uc.log.Info().Str("code", u.code).Msg("code already invalid, its attempts are skipped")
		}
	}
}

// mergeDue moves parked units whose cooldown has elapsed back into the active
// list. Parked entries are appended with a fixed cooldown, so only the due
// prefix needs checking.
func mergeDue(pending []attemptUnit, parked []model.RetryCycleState, now time.Time) ([]attemptUnit, []model.RetryCycleState) {
	for len(parked) > 0 && !parked[0].NextEligibleAt.After(now) {
		p := parked[0]
		parked = parked[1:]
		pending = append(pending, attemptUnit{accountID: p.AccountID, code: p.Code, attempts: p.Attempts})
	}
	return pending, parked
}

// runUnit drives one (account, code) pair through the cache check, the
// redemption attempt, and outcome bookkeeping.
func (uc *BatchUseCase) runUnit(ctx context.Context, run *batchRun, unit attemptUnit, buf *RecordBuffer, parked *[]model.RetryCycleState) {
	if unit.attempts > 0 {
		// The unit leaves the parked pool the moment it is reattempted.
		run.snap.Retrying--
	}

	if rec, err := uc.records.Find(ctx, nil, unit.accountID, unit.code); err == nil && rec != nil {
		if rec.Outcome.IsHardInvalid() {
			// A recorded hard-invalid verdict dooms the code for every
			// remaining account, same as a fresh one would.
			run.haltedCodes[unit.code] = true
			run.fail(rec.Outcome)
			return
		}
		run.snap.AlreadyRedeemed++
		run.snap.Processed++
		return
	}

	outcome, err := uc.redeemer.Attempt(ctx, unit.accountID, unit.code)
	if err != nil {
		uc.log.Error().Err(err).Str("account_id", unit.accountID).Str("code", unit.code).Msg("attempt aborted")
		run.fail(model.OutcomeConnectionError)
		return
	}

	if applyErr := uc.classifier.Apply(ctx, unit.accountID, unit.code, outcome, buf); applyErr != nil {
		uc.log.Error().Err(applyErr).Str("code", unit.code).Msg("outcome propagation failed")
	}

	switch {
	case outcome.IsSuccess():
		if outcome == model.OutcomeSuccess {
			run.snap.Success++
		} else {
			run.snap.AlreadyRedeemed++
		}
		run.snap.Processed++
	case outcome.IsHardInvalid():
		run.haltedCodes[unit.code] = true
		run.fail(outcome)
		uc.log.Warn().Str("code", unit.code).Str("outcome", string(outcome)).Msg("code halted for remainder of batch")
	case outcome.IsRetryable() && unit.attempts < maxParkRetries:
		*parked = append(*parked, model.RetryCycleState{
			AccountID:      unit.accountID,
			Code:           unit.code,
			Attempts:       unit.attempts + 1,
			NextEligibleAt: uc.now().Add(uc.cfg.Redeem.ParkCooldown),
		})
		run.snap.Retrying++
	default:
		run.fail(outcome)
	}
}

// expand turns (group, code) items into per-account attempt units in the
// configured traversal order.
func (uc *BatchUseCase) expand(ctx context.Context, items []model.BatchItem) ([]attemptUnit, error) {
	type groupMembers struct {
		groupID string
		members []*model.Account
	}

	seen := make(map[string][]*model.Account)
	var order []groupMembers
	codesByGroup := make(map[string][]string)
	for _, it := range items {
		if _, ok := seen[it.GroupID]; !ok {
			members, err := uc.groups.ListMembers(ctx, nil, it.GroupID)
			if err != nil {
				return nil, fmt.Errorf("list members of group %s: %w", it.GroupID, err)
			}
			seen[it.GroupID] = members
			order = append(order, groupMembers{it.GroupID, members})
		}
		codesByGroup[it.GroupID] = append(codesByGroup[it.GroupID], it.Code)
	}

	var units []attemptUnit
	if uc.cfg.Batch.Order == "code_major" {
		// All accounts for one code before moving to the next code.
		for _, g := range order {
			for _, code := range codesByGroup[g.groupID] {
				for _, m := range g.members {
					units = append(units, attemptUnit{accountID: m.ID, code: code})
				}
			}
		}
		return units, nil
	}
	// group_major: all codes for one account before the next account, keeping
	// each account's authenticated session warm.
	for _, g := range order {
		for _, m := range g.members {
			for _, code := range codesByGroup[g.groupID] {
				units = append(units, attemptUnit{accountID: m.ID, code: code})
			}
		}
	}
	return units, nil
}

// jittered spreads a base delay over [0.5x, 1.5x] so batch traffic does not
// hit the service on a fixed cadence.
func jittered(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return base/2 + randomBetween(0, base)
}
