//go:build !integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/repository"
)

func TestRedemptionCache_FindHitsCacheAfterUpsert(t *testing.T) {
	ctx := context.Background()
	innerCalls := 0
	inner := &mockInnerRedemptionRepo{
		UpsertFunc: func(ctx context.Context, tx repository.Tx, rec *model.RedemptionRecord) error {
			return nil
		},
		FindFunc: func(ctx context.Context, tx repository.Tx, accountID, code string) (*model.RedemptionRecord, error) {
			innerCalls++
			return nil, errors.New("database should not be consulted on a cache hit")
		},
	}
	d := NewRedemptionRepoCacheDecorator(inner, newMemRedis(), time.Hour)

	rec := model.NewRedemptionRecord("42", "XYZ", model.OutcomeSuccess)
	if err := d.Upsert(ctx, nil, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := d.Find(ctx, nil, "42", "XYZ")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Outcome != model.OutcomeSuccess {
		t.Errorf("outcome = %s", got.Outcome)
	}
	if innerCalls != 0 {
		t.Errorf("inner repo consulted %d times on cache hit", innerCalls)
	}
}

func TestRedemptionCache_MissFallsThroughAndWarms(t *testing.T) {
	ctx := context.Background()
	innerCalls := 0
	inner := &mockInnerRedemptionRepo{
		FindFunc: func(ctx context.Context, tx repository.Tx, accountID, code string) (*model.RedemptionRecord, error) {
			innerCalls++
			return model.NewRedemptionRecord(accountID, code, model.OutcomeReceived), nil
		},
	}
	d := NewRedemptionRepoCacheDecorator(inner, newMemRedis(), time.Hour)

	for i := 0; i < 2; i++ {
		got, err := d.Find(ctx, nil, "7", "QQQ")
		if err != nil {
			t.Fatalf("Find #%d: %v", i+1, err)
		}
		if got.Outcome != model.OutcomeReceived {
			t.Errorf("outcome = %s", got.Outcome)
		}
	}
	if innerCalls != 1 {
		t.Errorf("inner calls = %d, want 1 (second lookup should hit cache)", innerCalls)
	}
}

func TestRedemptionCache_DeleteByCodePurgesPairs(t *testing.T) {
	ctx := context.Background()
	inner := &mockInnerRedemptionRepo{
		UpsertManyFunc: func(ctx context.Context, tx repository.Tx, recs []*model.RedemptionRecord) error {
			return nil
		},
		DeleteByCodeFunc: func(ctx context.Context, tx repository.Tx, code string) (int64, error) {
			return 2, nil
		},
		FindFunc: func(ctx context.Context, tx repository.Tx, accountID, code string) (*model.RedemptionRecord, error) {
			// After reactivation the pair must be gone everywhere.
			return nil, errors.New("not found in database")
		},
	}
	d := NewRedemptionRepoCacheDecorator(inner, newMemRedis(), time.Hour)

	recs := []*model.RedemptionRecord{
		model.NewRedemptionRecord("1", "ABC", model.OutcomeSuccess),
		model.NewRedemptionRecord("2", "ABC", model.OutcomeSuccess),
	}
	if err := d.UpsertMany(ctx, nil, recs); err != nil {
		t.Fatalf("UpsertMany: %v", err)
	}

	if _, err := d.DeleteByCode(ctx, nil, "ABC"); err != nil {
		t.Fatalf("DeleteByCode: %v", err)
	}

	if _, err := d.Find(ctx, nil, "1", "ABC"); err == nil {
		t.Fatal("cached pair survived the reactivation cascade")
	}
}
