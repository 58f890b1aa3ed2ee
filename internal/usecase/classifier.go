// File: internal/usecase/classifier.go
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/adapter"
	"giftcode-redemption/internal/domain/ports/repository"
	"giftcode-redemption/internal/infra/metrics"
)

// replyKey is a normalized (message, err_code) pair from the submission
// endpoint. Messages are upper-cased, trimmed and stripped of a trailing
// period before lookup.
type replyKey struct {
	msg     string
	errCode int
}

// classificationTable is the exhaustive mapping of observed service replies
// to canonical outcomes. Anything not listed here classifies as
// UNKNOWN_API_RESPONSE and is treated as an account-local failure.
var classificationTable = map[replyKey]model.Outcome{
	{"SUCCESS", 20000}:                     model.OutcomeSuccess,
	{"RECEIVED", 40008}:                    model.OutcomeReceived,
	{"SAME TYPE EXCHANGE", 40011}:          model.OutcomeSameTypeExchange,
	{"TIME ERROR", 40007}:                  model.OutcomeTimeError,
	{"CDK NOT FOUND", 40014}:               model.OutcomeCdkNotFound,
	{"USED", 40005}:                        model.OutcomeUsageLimit,
	{"TOO SMALL SPEND MORE", 40009}:        model.OutcomeTooSmallSpendMore,
	{"TOO POOR SPEND MORE", 40010}:         model.OutcomeTooPoorSpendMore,
	{"TIMEOUT RETRY", 40004}:               model.OutcomeTimeoutRetry,
	{"CAPTCHA CHECK ERROR", 40103}:         model.OutcomeCaptchaInvalid,
	{"CAPTCHA CHECK TOO FREQUENT", 40101}:  model.OutcomeCaptchaTooFrequent,
	{"SIGN ERROR", 40001}:                  model.OutcomeSignError,
	{"PARAMS ERROR", 40000}:                model.OutcomeSignError,
	{"NOT LOGIN", 40002}:                   model.OutcomeLoginFailed,
}

// ClassifyReply maps a raw submission reply to its canonical outcome.
func ClassifyReply(reply adapter.SubmitReply) model.Outcome {
	msg := strings.ToUpper(strings.TrimSpace(reply.Message))
	msg = strings.TrimSuffix(msg, ".")
	if o, ok := classificationTable[replyKey{msg, reply.ErrCode}]; ok {
		return o
	}
	return model.OutcomeUnknownAPIResponse
}

// RemovalScheduler receives codes whose removal from the shared registry is
// pending; the registry synchronizer drains it.
type RemovalScheduler interface {
	ScheduleRemoval(code string)
}

// RecordBuffer collects terminal records for batched persistence, so a batch
// run does one write per flush instead of one per account.
type RecordBuffer struct {
	recs []*model.RedemptionRecord
}

func (b *RecordBuffer) Add(rec *model.RedemptionRecord) { b.recs = append(b.recs, rec) }
func (b *RecordBuffer) Len() int                        { return len(b.recs) }

func (b *RecordBuffer) Flush(ctx context.Context, repo repository.RedemptionRecordRepository) error {
	if len(b.recs) == 0 {
		return nil
	}
	if err := repo.UpsertMany(ctx, nil, b.recs); err != nil {
		return err
	}
	b.recs = b.recs[:0]
	return nil
}

// ClassifierService owns the downstream effects of a classified outcome:
// terminal-record persistence, one-shot code invalidation with its cascade,
// and operator notification for fatal signing drift.
type ClassifierService struct {
	codes             repository.CodeRepository
	records           repository.RedemptionRecordRepository
	removals          RemovalScheduler
	notifier          adapter.Notifier
	validationAccount string
	log               *zerolog.Logger
}

func NewClassifierService(
	codes repository.CodeRepository,
	records repository.RedemptionRecordRepository,
	removals RemovalScheduler,
	notifier adapter.Notifier,
	validationAccount string,
	logger *zerolog.Logger,
) *ClassifierService {
	l := logger.With().Str("component", "Classifier").Logger()
	return &ClassifierService{
		codes:             codes,
		records:           records,
		removals:          removals,
		notifier:          notifier,
		validationAccount: validationAccount,
		log:               &l,
	}
}

// Apply persists and propagates the effects of one classified outcome.
// When buf is non-nil, cacheable records go into it for batched persistence;
// otherwise they are written immediately.
func (s *ClassifierService) Apply(ctx context.Context, accountID, code string, outcome model.Outcome, buf *RecordBuffer) error {
	metrics.IncRedemption(string(outcome))

	if outcome.IsCacheable() {
		rec := model.NewRedemptionRecord(accountID, code, outcome)
		if buf != nil {
			buf.Add(rec)
		} else if err := s.records.Upsert(ctx, nil, rec); err != nil {
			return fmt.Errorf("persist redemption record: %w", err)
		}
	}

	if outcome.IsHardInvalid() {
		if err := s.invalidate(ctx, code, outcome); err != nil {
			return err
		}
	}

	if outcome.IsFatal() {
		s.log.Error().Str("code", code).Str("account_id", accountID).Msg("sign error from service; secret or format drift")
		if s.notifier != nil {
			_ = s.notifier.Notify(ctx, fmt.Sprintf("SIGN ERROR redeeming %s for account %s — check the shared secret and request format", code, accountID))
		}
	}

	return nil
}

// invalidate flips the code exactly once; only the call that actually changed
// the row runs the cascade, so concurrent observers cannot double-fire it.
func (s *ClassifierService) invalidate(ctx context.Context, code string, outcome model.Outcome) error {
	changed, err := s.codes.UpdateStatus(ctx, nil, code, model.CodeStatusInvalid)
	if err != nil {
		return fmt.Errorf("flip code %s invalid: %w", code, err)
	}
	if !changed {
		return nil
	}

	s.log.Warn().Str("code", code).Str("outcome", string(outcome)).Msg("code invalidated")

	// The validation account's row must not mask a future reactivation probe.
	if s.validationAccount != "" {
		if err := s.records.Delete(ctx, nil, s.validationAccount, code); err != nil {
			s.log.Error().Err(err).Str("code", code).Msg("purge validation account record")
		}
	}
	if s.removals != nil {
		s.removals.ScheduleRemoval(code)
	}
	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, fmt.Sprintf("Gift code %s is no longer valid (%s); removing it from the shared registry", code, outcome))
	}
	return nil
}

// Reactivate treats an externally re-reported code as a fresh grant cycle:
// every cached record for it is cleared before the status flips back.
func (s *ClassifierService) Reactivate(ctx context.Context, code string) error {
	n, err := s.records.DeleteByCode(ctx, nil, code)
	if err != nil {
		return fmt.Errorf("clear records for reactivated code %s: %w", code, err)
	}
	changed, err := s.codes.UpdateStatus(ctx, nil, code, model.CodeStatusValidated)
	if err != nil {
		return fmt.Errorf("reactivate code %s: %w", code, err)
	}
	if !changed {
		return domain.ErrAlreadyExists
	}
	s.log.Info().Str("code", code).Int64("records_cleared", n).Msg("code reactivated")
	return nil
}
