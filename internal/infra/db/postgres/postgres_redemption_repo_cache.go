package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/repository"
	"giftcode-redemption/internal/infra/metrics"
	red "giftcode-redemption/internal/infra/redis"
)

var _ repository.RedemptionRecordRepository = (*redemptionRepoCacheDecorator)(nil)

// redemptionRepoCacheDecorator fronts the terminal-outcome store with redis.
// The hot path is Find: every attempt checks the pair before doing any
// captcha work, so the lookup must not cost a database round trip each time.
type redemptionRepoCacheDecorator struct {
	inner repository.RedemptionRecordRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewRedemptionRepoCacheDecorator(inner repository.RedemptionRecordRepository, cache red.RedisClient, ttl time.Duration) repository.RedemptionRecordRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redemptionRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func recordKey(accountID, code string) string {
	return fmt.Sprintf("redemption:%s:%s", accountID, code)
}

// codeKeysKey tracks all cached pair keys per code so DeleteByCode can clear
// them without a redis SCAN.
func codeKeysKey(code string) string {
	return fmt.Sprintf("redemption:code:%s", code)
}

func (d *redemptionRepoCacheDecorator) Upsert(ctx context.Context, tx repository.Tx, rec *model.RedemptionRecord) error {
	if err := d.inner.Upsert(ctx, tx, rec); err != nil {
		return err
	}
	d.cacheRecord(ctx, rec)
	return nil
}

func (d *redemptionRepoCacheDecorator) UpsertMany(ctx context.Context, tx repository.Tx, recs []*model.RedemptionRecord) error {
	if err := d.inner.UpsertMany(ctx, tx, recs); err != nil {
		return err
	}
	for _, rec := range recs {
		d.cacheRecord(ctx, rec)
	}
	return nil
}

func (d *redemptionRepoCacheDecorator) cacheRecord(ctx context.Context, rec *model.RedemptionRecord) {
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_ = d.cache.Set(ctx, recordKey(rec.AccountID, rec.Code), b, d.ttl)
	d.trackKey(ctx, rec.Code, recordKey(rec.AccountID, rec.Code))
}

func (d *redemptionRepoCacheDecorator) trackKey(ctx context.Context, code, key string) {
	idx := codeKeysKey(code)
	existing, err := d.cache.Get(ctx, idx)
	var keys []string
	if err == nil {
		_ = json.Unmarshal([]byte(existing), &keys)
	}
	for _, k := range keys {
		if k == key {
			return
		}
	}
	keys = append(keys, key)
	if b, err := json.Marshal(keys); err == nil {
		_ = d.cache.Set(ctx, idx, b, d.ttl)
	}
}

func (d *redemptionRepoCacheDecorator) Find(ctx context.Context, tx repository.Tx, accountID, code string) (*model.RedemptionRecord, error) {
	key := recordKey(accountID, code)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var rec model.RedemptionRecord
		if json.Unmarshal([]byte(val), &rec) == nil {
			metrics.IncCacheRequest("redemption", "hit")
			return &rec, nil
		}
	} else if err != redis.Nil {
		// real redis error: fall through to the database
		_ = err
	}

	metrics.IncCacheRequest("redemption", "miss")
	rec, err := d.inner.Find(ctx, tx, accountID, code)
	if err != nil {
		return nil, err
	}
	d.cacheRecord(ctx, rec)
	return rec, nil
}

func (d *redemptionRepoCacheDecorator) ListByCode(ctx context.Context, tx repository.Tx, code string) ([]*model.RedemptionRecord, error) {
	return d.inner.ListByCode(ctx, tx, code)
}

// DeleteByCode is the reactivation cascade; stale cache entries here would
// resurrect outcomes the registry just cleared, so the index is purged first.
func (d *redemptionRepoCacheDecorator) DeleteByCode(ctx context.Context, tx repository.Tx, code string) (int64, error) {
	d.purgeCode(ctx, code)
	return d.inner.DeleteByCode(ctx, tx, code)
}

func (d *redemptionRepoCacheDecorator) purgeCode(ctx context.Context, code string) {
	idx := codeKeysKey(code)
	if existing, err := d.cache.Get(ctx, idx); err == nil {
		var keys []string
		if json.Unmarshal([]byte(existing), &keys) == nil && len(keys) > 0 {
			_ = d.cache.Del(ctx, keys...)
		}
	}
	_ = d.cache.Del(ctx, idx)
}

func (d *redemptionRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, accountID, code string) error {
	_ = d.cache.Del(ctx, recordKey(accountID, code))
	return d.inner.Delete(ctx, tx, accountID, code)
}
