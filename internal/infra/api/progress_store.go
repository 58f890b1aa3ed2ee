// File: internal/infra/api/progress_store.go
package api

import (
	"context"
	"sync"

	"giftcode-redemption/internal/domain/model"
)

// ProgressStore keeps the latest snapshot of every batch in memory so the
// admin API can answer status queries. Batches are ephemeral; a restart
// forgetting them is acceptable.
type ProgressStore struct {
	mu    sync.RWMutex
	snaps map[string]model.ProgressSnapshot
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{snaps: make(map[string]model.ProgressSnapshot)}
}

func (s *ProgressStore) Update(ctx context.Context, batchID string, snap model.ProgressSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[batchID] = snap
}

func (s *ProgressStore) Complete(ctx context.Context, batchID string, snap model.ProgressSnapshot) {
	s.Update(ctx, batchID, snap)
}

// Get returns the latest snapshot for a batch.
func (s *ProgressStore) Get(batchID string) (model.ProgressSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[batchID]
	return snap, ok
}

// Register seeds a just-accepted batch so a status query between acceptance
// and the first progress update does not 404.
func (s *ProgressStore) Register(batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snaps[batchID]; !ok {
		s.snaps[batchID] = model.ProgressSnapshot{BatchID: batchID, Status: model.BatchStatusRunning}
	}
}
