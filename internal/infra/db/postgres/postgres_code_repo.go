package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.CodeRepository = (*codeRepo)(nil)

type codeRepo struct {
	pool *pgxpool.Pool
}

func NewCodeRepo(pool *pgxpool.Pool) repository.CodeRepository {
	return &codeRepo{pool: pool}
}

// Save upserts on the code identifier so first sighting and later status
// writes go through the same path.
func (r *codeRepo) Save(ctx context.Context, tx repository.Tx, code *model.GiftCode) error {
	const q = `
INSERT INTO gift_codes (code, status, created_at, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE SET
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at;
`
	if code.UpdatedAt.IsZero() {
		code.UpdatedAt = time.Now()
	}
	_, err := execSQL(ctx, r.pool, tx, q, code.Code, code.Status, code.CreatedAt, code.UpdatedAt)
	return err
}

func (r *codeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.GiftCode, error) {
	const q = `
SELECT code, status, created_at, updated_at
  FROM gift_codes
 WHERE code = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	var c model.GiftCode
	if err := row.Scan(&c.Code, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}

func (r *codeRepo) ListByStatus(ctx context.Context, tx repository.Tx, statuses ...model.CodeStatus) ([]*model.GiftCode, error) {
	const q = `
SELECT code, status, created_at, updated_at
  FROM gift_codes
 WHERE status = ANY($1)
 ORDER BY created_at ASC;
`
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	rows, err := queryRows(ctx, r.pool, tx, q, ss)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.GiftCode
	for rows.Next() {
		var c model.GiftCode
		if err := rows.Scan(&c.Code, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// UpdateStatus is the idempotence guard for invalidation propagation: the
// WHERE clause makes the flip a no-op when the code is already in the target
// status, and the caller learns whether this call was the one that changed it.
func (r *codeRepo) UpdateStatus(ctx context.Context, tx repository.Tx, code string, to model.CodeStatus) (bool, error) {
	const q = `
UPDATE gift_codes
   SET status = $2, updated_at = NOW()
 WHERE code = $1 AND status <> $2;
`
	tag, err := execSQL(ctx, r.pool, tx, q, code, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *codeRepo) DeleteInvalidOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]string, error) {
	const q = `
DELETE FROM gift_codes
 WHERE status = 'invalid' AND updated_at < $1
RETURNING code;
`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		deleted = append(deleted, c)
	}
	return deleted, rows.Err()
}
