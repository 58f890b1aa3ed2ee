package repository

import (
	"context"
	"time"

	"giftcode-redemption/internal/domain/model"
)

// CodeRepository is the port for the local gift-code registry.
type CodeRepository interface {
	// Save upserts a code row (idempotent on the code identifier).
	Save(ctx context.Context, tx Tx, code *model.GiftCode) error
	// FindByCode returns the registry row for a code, or domain.ErrNotFound.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.GiftCode, error)
	// ListByStatus returns codes in any of the given statuses, oldest first.
	ListByStatus(ctx context.Context, tx Tx, statuses ...model.CodeStatus) ([]*model.GiftCode, error)
	// UpdateStatus flips a code to the given status only when it currently is
	// not in it, returning whether a row actually changed. This is the
	// idempotence guard for invalidation propagation.
	UpdateStatus(ctx context.Context, tx Tx, code string, to model.CodeStatus) (changed bool, err error)
	// DeleteInvalidOlderThan removes long-invalid codes and returns the
	// identifiers it deleted, so the caller can purge dependent records.
	DeleteInvalidOlderThan(ctx context.Context, tx Tx, cutoff time.Time) ([]string, error)
}
