// File: internal/infra/telegram/notifier.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"giftcode-redemption/internal/config"
	"giftcode-redemption/internal/domain/model"
)

// Notifier pushes operator notifications and batch progress to the admin
// chat. Progress updates for one batch edit a single message in place so a
// long batch does not flood the chat.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger

	// batch id -> message id of the live progress message
	progressMsgs map[string]int
}

func NewNotifier(cfg *config.BotConfig, logger *zerolog.Logger) (*Notifier, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("bot token is required")
	}
	if cfg.AdminChatID == 0 {
		return nil, errors.New("admin chat id is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "TelegramNotifier").Logger()
	return &Notifier{
		bot:          bot,
		chatID:       cfg.AdminChatID,
		log:          &l,
		progressMsgs: make(map[string]int),
	}, nil
}

func (n *Notifier) Notify(ctx context.Context, message string) error {
	msg := tgbotapi.NewMessage(n.chatID, message)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Error().Err(err).Msg("notification send failed")
		return err
	}
	return nil
}

// Update edits the batch's progress message, creating it on the first call.
// The queue serializes batches, so no locking is needed here.
func (n *Notifier) Update(ctx context.Context, batchID string, snap model.ProgressSnapshot) {
	text := renderProgress(snap)
	if msgID, ok := n.progressMsgs[batchID]; ok {
		edit := tgbotapi.NewEditMessageText(n.chatID, msgID, text)
		if _, err := n.bot.Send(edit); err != nil {
			n.log.Debug().Err(err).Str("batch_id", batchID).Msg("progress edit failed")
		}
		return
	}
	sent, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text))
	if err != nil {
		n.log.Error().Err(err).Str("batch_id", batchID).Msg("progress send failed")
		return
	}
	n.progressMsgs[batchID] = sent.MessageID
}

func (n *Notifier) Complete(ctx context.Context, batchID string, snap model.ProgressSnapshot) {
	n.Update(ctx, batchID, snap)
	delete(n.progressMsgs, batchID)
}

func renderProgress(snap model.ProgressSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch %s [%s]\n", snap.BatchID, snap.Status)
	fmt.Fprintf(&b, "Progress: %d/%d\n", snap.Processed, snap.Total)
	fmt.Fprintf(&b, "Success: %d\n", snap.Success)
	fmt.Fprintf(&b, "Already redeemed: %d\n", snap.AlreadyRedeemed)
	if snap.Retrying > 0 {
		fmt.Fprintf(&b, "Retrying: %d\n", snap.Retrying)
	}
	if snap.NotAttempted > 0 {
		fmt.Fprintf(&b, "Not attempted: %d\n", snap.NotAttempted)
	}
	if snap.Failed > 0 {
		fmt.Fprintf(&b, "Failed: %d\n", snap.Failed)
		keys := make([]string, 0, len(snap.Failures))
		for o := range snap.Failures {
			keys = append(keys, string(o))
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %d\n", k, snap.Failures[model.Outcome(k)])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
