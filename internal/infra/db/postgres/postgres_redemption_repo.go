package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/repository"
)

var _ repository.RedemptionRecordRepository = (*redemptionRepo)(nil)

type redemptionRepo struct {
	pool *pgxpool.Pool
}

func NewRedemptionRepo(pool *pgxpool.Pool) repository.RedemptionRecordRepository {
	return &redemptionRepo{pool: pool}
}

const upsertRecordSQL = `
INSERT INTO redemption_records (account_id, code, outcome, redeemed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (account_id, code) DO UPDATE SET
  outcome = EXCLUDED.outcome,
  redeemed_at = EXCLUDED.redeemed_at;
`

func (r *redemptionRepo) Upsert(ctx context.Context, tx repository.Tx, rec *model.RedemptionRecord) error {
	_, err := execSQL(ctx, r.pool, tx, upsertRecordSQL,
		rec.AccountID, rec.Code, rec.Outcome, rec.RedeemedAt)
	return err
}

// UpsertMany writes a whole batch inside one transaction rather than one
// round trip per account.
func (r *redemptionRepo) UpsertMany(ctx context.Context, tx repository.Tx, recs []*model.RedemptionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	if tx != nil {
		for _, rec := range recs {
			if err := r.Upsert(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(upsertRecordSQL, rec.AccountID, rec.Code, rec.Outcome, rec.RedeemedAt)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range recs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *redemptionRepo) Find(ctx context.Context, tx repository.Tx, accountID, code string) (*model.RedemptionRecord, error) {
	const q = `
SELECT account_id, code, outcome, redeemed_at
  FROM redemption_records
 WHERE account_id = $1 AND code = $2;
`
	row, err := pickRow(ctx, r.pool, tx, q, accountID, code)
	if err != nil {
		return nil, err
	}
	var rec model.RedemptionRecord
	if err := row.Scan(&rec.AccountID, &rec.Code, &rec.Outcome, &rec.RedeemedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &rec, nil
}

func (r *redemptionRepo) ListByCode(ctx context.Context, tx repository.Tx, code string) ([]*model.RedemptionRecord, error) {
	const q = `
SELECT account_id, code, outcome, redeemed_at
  FROM redemption_records
 WHERE code = $1;
`
	rows, err := queryRows(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RedemptionRecord
	for rows.Next() {
		var rec model.RedemptionRecord
		if err := rows.Scan(&rec.AccountID, &rec.Code, &rec.Outcome, &rec.RedeemedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *redemptionRepo) DeleteByCode(ctx context.Context, tx repository.Tx, code string) (int64, error) {
	const q = `DELETE FROM redemption_records WHERE code = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, code)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *redemptionRepo) Delete(ctx context.Context, tx repository.Tx, accountID, code string) error {
	const q = `DELETE FROM redemption_records WHERE account_id = $1 AND code = $2;`
	_, err := execSQL(ctx, r.pool, tx, q, accountID, code)
	return err
}
