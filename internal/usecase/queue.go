// File: internal/usecase/queue.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/infra/metrics"
)

type OpKind string

const (
	KindValidate OpKind = "validate"
	KindRedeem   OpKind = "redeem"
)

// QueueItem is one unit of work owned exclusively by the queue until
// dequeued. Items are ephemeral; nothing about them is persisted.
type QueueItem struct {
	ID         string
	Kind       OpKind
	Code       string
	Codes      []string // multi-code redemption batches; Code covers the rest
	GroupIDs   []string
	BatchID    string
	Source     string
	EnqueuedAt time.Time

	// Result, when non-nil, receives the final outcome of a validate item so
	// the enqueuer can wait for it. Must be buffered.
	Result chan model.Outcome
}

// Handler processes one dequeued item to completion.
type Handler func(ctx context.Context, item *QueueItem) error

// WorkQueue serializes every interaction with the external game service. The
// captcha flow is session-like and concurrent attempts trip the service's
// rate limiting, so total ordering here is a correctness requirement.
//
// The worker is lazy: it starts on the first enqueue while idle, drains the
// queue one item at a time, and exits when empty. A failing handler is
// logged and never stops the worker.
type WorkQueue struct {
	mu         sync.Mutex
	items      []*QueueItem
	running    bool
	processing bool
	handlers   map[OpKind]Handler
	ctx        context.Context
	log        *zerolog.Logger
}

func NewWorkQueue(logger *zerolog.Logger) *WorkQueue {
	l := logger.With().Str("component", "WorkQueue").Logger()
	return &WorkQueue{
		handlers: make(map[OpKind]Handler),
		log:      &l,
	}
}

// Start binds the queue to its lifetime context. Enqueues before Start or
// after the context ends are rejected.
func (q *WorkQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx = ctx
}

// Register installs the handler for an operation kind. Not safe to call once
// items are flowing; wire everything up before Start.
func (q *WorkQueue) Register(kind OpKind, h Handler) {
	q.handlers[kind] = h
}

// Enqueue appends the item at the tail and, if no worker is active, starts
// one. Returns the queue id of the item.
func (q *WorkQueue) Enqueue(item *QueueItem) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx == nil || q.ctx.Err() != nil {
		return "", domain.ErrQueueClosed
	}
	if _, ok := q.handlers[item.Kind]; !ok {
		return "", fmt.Errorf("%w: no handler for kind %q", domain.ErrInvalidArgument, item.Kind)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.EnqueuedAt = time.Now()

	q.items = append(q.items, item)
	metrics.IncQueueItem(string(item.Kind))
	metrics.SetQueueDepth(len(q.items))

	if !q.running {
		q.running = true
		go q.work()
	}
	return item.ID, nil
}

// Depth reports the number of items still waiting (excluding the one being
// processed).
func (q *WorkQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Processing is true iff an item has been dequeued but not yet finished.
func (q *WorkQueue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

func (q *WorkQueue) work() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 || q.ctx.Err() != nil {
			q.running = false
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		q.processing = true
		metrics.SetQueueDepth(len(q.items))
		ctx := q.ctx
		q.mu.Unlock()

		q.dispatch(ctx, item)

		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
	}
}

// dispatch runs one handler to completion, containing panics and errors so
// one bad item cannot take the worker down with it.
func (q *WorkQueue) dispatch(ctx context.Context, item *QueueItem) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().
				Str("queue_id", item.ID).
				Str("kind", string(item.Kind)).
				Interface("panic", r).
				Msg("queue handler panicked")
		}
	}()

	h := q.handlers[item.Kind]
	if err := h(ctx, item); err != nil {
		q.log.Error().
			Err(err).
			Str("queue_id", item.ID).
			Str("kind", string(item.Kind)).
			Str("code", item.Code).
			Msg("queue item failed")
	}
}
