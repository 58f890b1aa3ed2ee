package repository

import (
	"context"

	"giftcode-redemption/internal/domain/model"
)

// RedemptionRecordRepository is the port for the per-(account, code) terminal
// outcome store. Only terminal outcomes are ever persisted here.
type RedemptionRecordRepository interface {
	// Upsert writes or overwrites the terminal outcome for one pair.
	Upsert(ctx context.Context, tx Tx, rec *model.RedemptionRecord) error
	// UpsertMany batches several records in one round trip.
	UpsertMany(ctx context.Context, tx Tx, recs []*model.RedemptionRecord) error
	// Find returns the record for a pair, or domain.ErrNotFound.
	Find(ctx context.Context, tx Tx, accountID, code string) (*model.RedemptionRecord, error)
	// ListByCode returns all records for one code.
	ListByCode(ctx context.Context, tx Tx, code string) ([]*model.RedemptionRecord, error)
	// DeleteByCode removes every record for the code (reactivation cascade),
	// returning the number of rows removed.
	DeleteByCode(ctx context.Context, tx Tx, code string) (int64, error)
	// Delete removes one pair's record.
	Delete(ctx context.Context, tx Tx, accountID, code string) error
}
