package repository

import (
	"context"

	"giftcode-redemption/internal/domain/model"
)

// GroupRepository reads externally managed account groups. This service never
// mutates membership; community administration happens elsewhere.
type GroupRepository interface {
	// FindByID returns one group or domain.ErrNotFound.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Group, error)
	// ListAutoRedeem returns groups with auto-redemption enabled, by priority.
	ListAutoRedeem(ctx context.Context, tx Tx) ([]*model.Group, error)
	// ListMembers returns the accounts of a group in stable order.
	ListMembers(ctx context.Context, tx Tx, groupID string) ([]*model.Account, error)
}
