package adapter

import (
	"context"

	"giftcode-redemption/internal/domain/model"
)

// ProgressObserver receives consolidated batch progress. The core emits
// events; the collaborator (UI, bot, log sink) renders them.
type ProgressObserver interface {
	Update(ctx context.Context, batchID string, snap model.ProgressSnapshot)
	// Complete is always called exactly once, on completion or halt.
	Complete(ctx context.Context, batchID string, snap model.ProgressSnapshot)
}

// Notifier delivers out-of-band operator notifications (invalid code found,
// signing drift, persistent sync failure).
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
