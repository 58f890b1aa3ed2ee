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

var _ repository.GroupRepository = (*groupRepo)(nil)

// groupRepo reads the externally administered group/account tables.
type groupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) repository.GroupRepository {
	return &groupRepo{pool: pool}
}

func (r *groupRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Group, error) {
	const q = `
SELECT id, name, priority, auto_redeem, created_at
  FROM account_groups
 WHERE id = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var g model.Group
	if err := row.Scan(&g.ID, &g.Name, &g.Priority, &g.AutoRedeem, &g.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &g, nil
}

func (r *groupRepo) ListAutoRedeem(ctx context.Context, tx repository.Tx) ([]*model.Group, error) {
	const q = `
SELECT id, name, priority, auto_redeem, created_at
  FROM account_groups
 WHERE auto_redeem = TRUE
 ORDER BY priority ASC, id ASC;
`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Priority, &g.AutoRedeem, &g.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

func (r *groupRepo) ListMembers(ctx context.Context, tx repository.Tx, groupID string) ([]*model.Account, error) {
	const q = `
SELECT id, name, group_id, created_at
  FROM accounts
 WHERE group_id = $1
 ORDER BY id ASC;
`
	rows, err := queryRows(ctx, r.pool, tx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.GroupID, &a.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
