// File: internal/usecase/observer.go
package usecase

import (
	"context"

	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/adapter"
)

// NoopObserver satisfies the observer port for callers that do not track
// progress, like the auto-redemption fan-out.
type NoopObserver struct{}

func (NoopObserver) Update(context.Context, string, model.ProgressSnapshot)   {}
func (NoopObserver) Complete(context.Context, string, model.ProgressSnapshot) {}

// MultiObserver fans progress out to several sinks, typically the in-memory
// progress store plus the operator bot.
type MultiObserver []adapter.ProgressObserver

func (m MultiObserver) Update(ctx context.Context, batchID string, snap model.ProgressSnapshot) {
	for _, o := range m {
		o.Update(ctx, batchID, snap.Clone())
	}
}

func (m MultiObserver) Complete(ctx context.Context, batchID string, snap model.ProgressSnapshot) {
	for _, o := range m {
		o.Complete(ctx, batchID, snap.Clone())
	}
}
