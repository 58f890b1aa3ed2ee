// File: internal/usecase/classifier_test.go
package usecase

import (
	"context"
	"testing"

	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/adapter"
)

func TestClassifyReply_KnownPairs(t *testing.T) {
	cases := []struct {
		msg     string
		errCode int
		want    model.Outcome
	}{
		{"SUCCESS", 20000, model.OutcomeSuccess},
		{"RECEIVED", 40008, model.OutcomeReceived},
		{"SAME TYPE EXCHANGE", 40011, model.OutcomeSameTypeExchange},
		{"TIME ERROR", 40007, model.OutcomeTimeError},
		{"CDK NOT FOUND", 40014, model.OutcomeCdkNotFound},
		{"USED", 40005, model.OutcomeUsageLimit},
		{"TOO SMALL SPEND MORE", 40009, model.OutcomeTooSmallSpendMore},
		{"TOO POOR SPEND MORE", 40010, model.OutcomeTooPoorSpendMore},
		{"TIMEOUT RETRY", 40004, model.OutcomeTimeoutRetry},
		{"CAPTCHA CHECK ERROR", 40103, model.OutcomeCaptchaInvalid},
		{"CAPTCHA CHECK TOO FREQUENT", 40101, model.OutcomeCaptchaTooFrequent},
		{"SIGN ERROR", 40001, model.OutcomeSignError},
		{"NOT LOGIN", 40002, model.OutcomeLoginFailed},
	}
	for _, tc := range cases {
		got := ClassifyReply(adapter.SubmitReply{Message: tc.msg, ErrCode: tc.errCode})
		if got != tc.want {
			t.Errorf("ClassifyReply(%q, %d) = %s, want %s", tc.msg, tc.errCode, got, tc.want)
		}
	}
}

func TestClassifyReply_NormalizesMessage(t *testing.T) {
	got := ClassifyReply(adapter.SubmitReply{Message: "  success. ", ErrCode: 20000})
	if got != model.OutcomeSuccess {
		t.Errorf("normalized reply classified as %s", got)
	}
}

func TestClassifyReply_UnknownPairFallsBack(t *testing.T) {
	// A known message with a drifted code must not match.
	got := ClassifyReply(adapter.SubmitReply{Message: "SUCCESS", ErrCode: 99999})
	if got != model.OutcomeUnknownAPIResponse {
		t.Errorf("drifted pair classified as %s", got)
	}
	got = ClassifyReply(adapter.SubmitReply{Message: "SOMETHING NEW", ErrCode: 40404})
	if got != model.OutcomeUnknownAPIResponse {
		t.Errorf("novel pair classified as %s", got)
	}
}

func newTestClassifier(codes *memCodeRepo, records *memRecordRepo, removals *mockRemovals, notifier *mockNotifier) *ClassifierService {
	return NewClassifierService(codes, records, removals, notifier, "validator", testLogger())
}

func TestClassifier_SuccessWritesTerminalRecord(t *testing.T) {
	ctx := context.Background()
	codes, records := newMemCodeRepo(), newMemRecordRepo()
	svc := newTestClassifier(codes, records, &mockRemovals{}, &mockNotifier{})

	if err := svc.Apply(ctx, "42", "CODE1", model.OutcomeSuccess, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !records.has("42", "CODE1") {
		t.Error("no terminal record written for success")
	}
}

func TestClassifier_RetryableOutcomeLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	codes, records := newMemCodeRepo(), newMemRecordRepo()
	svc := newTestClassifier(codes, records, &mockRemovals{}, &mockNotifier{})

	for _, o := range []model.Outcome{model.OutcomeTimeoutRetry, model.OutcomeCaptchaTooFrequent, model.OutcomeConnectionError} {
		if err := svc.Apply(ctx, "42", "CODE1", o, nil); err != nil {
			t.Fatalf("Apply(%s): %v", o, err)
		}
	}
	if records.has("42", "CODE1") {
		t.Error("retryable outcome was persisted as terminal")
	}
}

func TestClassifier_HardInvalidCascadesOnce(t *testing.T) {
	ctx := context.Background()
	codes, records := newMemCodeRepo(), newMemRecordRepo()
	removals, notifier := &mockRemovals{}, &mockNotifier{}
	svc := newTestClassifier(codes, records, removals, notifier)

	code := model.NewGiftCode("DEAD1")
	code.Status = model.CodeStatusValidated
	if err := codes.Save(ctx, nil, code); err != nil {
		t.Fatal(err)
	}
	// Validation account has a stale record that must be purged.
	if err := records.Upsert(ctx, nil, model.NewRedemptionRecord("validator", "DEAD1", model.OutcomeSuccess)); err != nil {
		t.Fatal(err)
	}

	if err := svc.Apply(ctx, "42", "DEAD1", model.OutcomeTimeError, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := codes.status("DEAD1"); got != model.CodeStatusInvalid {
		t.Errorf("status = %s, want invalid", got)
	}
	if records.has("validator", "DEAD1") {
		t.Error("validation account record survived invalidation")
	}
	if got := removals.scheduled(); len(got) != 1 || got[0] != "DEAD1" {
		t.Errorf("removals = %v", got)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}

	// A second observer of the same dead code must not re-fire the cascade.
	if err := svc.Apply(ctx, "7", "DEAD1", model.OutcomeCdkNotFound, nil); err != nil {
		t.Fatalf("Apply #2: %v", err)
	}
	if got := removals.scheduled(); len(got) != 1 {
		t.Errorf("cascade fired twice: removals = %v", got)
	}
	if notifier.count() != 1 {
		t.Errorf("cascade fired twice: notifications = %d", notifier.count())
	}
	// Both observers still keep their terminal records.
	if !records.has("42", "DEAD1") || !records.has("7", "DEAD1") {
		t.Error("terminal records missing after invalidation")
	}
}

func TestClassifier_SignErrorNotifiesWithoutInvalidation(t *testing.T) {
	ctx := context.Background()
	codes, records := newMemCodeRepo(), newMemRecordRepo()
	removals, notifier := &mockRemovals{}, &mockNotifier{}
	svc := newTestClassifier(codes, records, removals, notifier)

	code := model.NewGiftCode("LIVE1")
	code.Status = model.CodeStatusValidated
	if err := codes.Save(ctx, nil, code); err != nil {
		t.Fatal(err)
	}

	if err := svc.Apply(ctx, "42", "LIVE1", model.OutcomeSignError, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
	if got := codes.status("LIVE1"); got != model.CodeStatusValidated {
		t.Errorf("sign error flipped code status to %s", got)
	}
	if len(removals.scheduled()) != 0 {
		t.Error("sign error scheduled a registry removal")
	}
}

func TestClassifier_BufferedApplyDefersPersistence(t *testing.T) {
	ctx := context.Background()
	codes, records := newMemCodeRepo(), newMemRecordRepo()
	svc := newTestClassifier(codes, records, &mockRemovals{}, &mockNotifier{})

	buf := &RecordBuffer{}
	for _, acct := range []string{"1", "2", "3"} {
		if err := svc.Apply(ctx, acct, "CODE1", model.OutcomeSuccess, buf); err != nil {
			t.Fatalf("Apply(%s): %v", acct, err)
		}
	}
	if records.has("1", "CODE1") {
		t.Fatal("buffered record reached the repository before Flush")
	}
	if buf.Len() != 3 {
		t.Fatalf("buffer holds %d records, want 3", buf.Len())
	}

	if err := buf.Flush(ctx, records); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if records.upsertManyCalls != 1 {
		t.Errorf("UpsertMany calls = %d, want 1", records.upsertManyCalls)
	}
	for _, acct := range []string{"1", "2", "3"} {
		if !records.has(acct, "CODE1") {
			t.Errorf("record for account %s missing after flush", acct)
		}
	}
	if buf.Len() != 0 {
		t.Error("buffer not drained by Flush")
	}
}

func TestClassifier_ReactivateClearsRecordsAndPromotes(t *testing.T) {
	ctx := context.Background()
	codes, records := newMemCodeRepo(), newMemRecordRepo()
	svc := newTestClassifier(codes, records, &mockRemovals{}, &mockNotifier{})

	code := model.NewGiftCode("BACK1")
	code.Status = model.CodeStatusInvalid
	if err := codes.Save(ctx, nil, code); err != nil {
		t.Fatal(err)
	}
	for _, acct := range []string{"1", "2"} {
		if err := records.Upsert(ctx, nil, model.NewRedemptionRecord(acct, "BACK1", model.OutcomeSuccess)); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.Reactivate(ctx, "BACK1"); err != nil {
		t.Fatalf("Reactivate: %v", err)
	}
	if got := codes.status("BACK1"); got != model.CodeStatusValidated {
		t.Errorf("status = %s, want validated", got)
	}
	if records.has("1", "BACK1") || records.has("2", "BACK1") {
		t.Error("stale records survived reactivation")
	}
}
