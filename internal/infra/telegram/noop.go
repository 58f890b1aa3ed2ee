// File: internal/infra/telegram/noop.go
package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"giftcode-redemption/internal/domain/model"
)

// NoopNotifier logs instead of sending. Used when the bot is disabled.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	l := logger.With().Str("component", "NoopNotifier").Logger()
	return &NoopNotifier{log: &l}
}

func (n *NoopNotifier) Notify(ctx context.Context, message string) error {
	n.log.Info().Str("notification", message).Msg("operator notification (bot disabled)")
	return nil
}

func (n *NoopNotifier) Update(ctx context.Context, batchID string, snap model.ProgressSnapshot) {}

func (n *NoopNotifier) Complete(ctx context.Context, batchID string, snap model.ProgressSnapshot) {
	n.log.Info().
		Str("batch_id", batchID).
		Str("status", string(snap.Status)).
		Int("success", snap.Success).
		Int("failed", snap.Failed).
		Msg("batch finished (bot disabled)")
}
