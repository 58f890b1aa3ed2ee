//go:build !integration

package postgres

import (
	"context"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/repository"
	red "giftcode-redemption/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerRedemptionRepo mocks the database repository the decorator wraps.
type mockInnerRedemptionRepo struct {
	UpsertFunc       func(ctx context.Context, tx repository.Tx, rec *model.RedemptionRecord) error
	UpsertManyFunc   func(ctx context.Context, tx repository.Tx, recs []*model.RedemptionRecord) error
	FindFunc         func(ctx context.Context, tx repository.Tx, accountID, code string) (*model.RedemptionRecord, error)
	ListByCodeFunc   func(ctx context.Context, tx repository.Tx, code string) ([]*model.RedemptionRecord, error)
	DeleteByCodeFunc func(ctx context.Context, tx repository.Tx, code string) (int64, error)
	DeleteFunc       func(ctx context.Context, tx repository.Tx, accountID, code string) error
}

func (m *mockInnerRedemptionRepo) Upsert(ctx context.Context, tx repository.Tx, rec *model.RedemptionRecord) error {
	return m.UpsertFunc(ctx, tx, rec)
}
func (m *mockInnerRedemptionRepo) UpsertMany(ctx context.Context, tx repository.Tx, recs []*model.RedemptionRecord) error {
	return m.UpsertManyFunc(ctx, tx, recs)
}
func (m *mockInnerRedemptionRepo) Find(ctx context.Context, tx repository.Tx, accountID, code string) (*model.RedemptionRecord, error) {
	return m.FindFunc(ctx, tx, accountID, code)
}
func (m *mockInnerRedemptionRepo) ListByCode(ctx context.Context, tx repository.Tx, code string) ([]*model.RedemptionRecord, error) {
	return m.ListByCodeFunc(ctx, tx, code)
}
func (m *mockInnerRedemptionRepo) DeleteByCode(ctx context.Context, tx repository.Tx, code string) (int64, error) {
	return m.DeleteByCodeFunc(ctx, tx, code)
}
func (m *mockInnerRedemptionRepo) Delete(ctx context.Context, tx repository.Tx, accountID, code string) error {
	return m.DeleteFunc(ctx, tx, accountID, code)
}

// memRedis is a tiny in-memory stand-in for the redis client.
type memRedis struct {
	mu    sync.Mutex
	store map[string]string
}

var _ red.RedisClient = (*memRedis)(nil)

func newMemRedis() *memRedis { return &memRedis{store: make(map[string]string)} }

func (m *memRedis) Ping(ctx context.Context) error { return nil }

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case string:
		m.store[key] = v
	case []byte:
		m.store[key] = string(v)
	}
	return nil
}

func (m *memRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[key]; ok {
		return false, nil
	}
	switch v := value.(type) {
	case string:
		m.store[key] = v
	case []byte:
		m.store[key] = string(v)
	}
	return true, nil
}

func (m *memRedis) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memRedis) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = m.store[key] + "x"
	return int64(len(m.store[key])), nil
}

func (m *memRedis) Expire(ctx context.Context, key string, _ time.Duration) error { return nil }

func (m *memRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.store, k)
	}
	return nil
}

func (m *memRedis) Close() error { return nil }
