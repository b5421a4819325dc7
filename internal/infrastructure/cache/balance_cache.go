// Package cache provides the optional Redis read cache over ledger
// balances. Balances are folds over legs; the cache trades up to one TTL
// of staleness for fold cost. Correctness never depends on it: posting
// drops the touched key families, and any Redis failure degrades to the
// fold.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/stockkey"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stockledger"
	"millstock/pkg/logger"
)

const (
	balanceKeyPrefix = "stock:bal:"
	defaultTTL       = 5 * time.Minute
	scanCount        = 100
)

// BalanceCache decorates the ledger service with a Redis cache on the
// single-key balance read. Every other method passes through; the write
// path additionally drops the cached families of the keys it touches.
type BalanceCache struct {
	*stockledger.Service

	rdb *redis.Client
	ttl time.Duration
}

var _ posting.Ledger = (*BalanceCache)(nil)

// NewBalanceCache wraps the ledger service. A non-positive ttl falls back
// to five minutes.
func NewBalanceCache(next *stockledger.Service, rdb *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &BalanceCache{Service: next, rdb: rdb, ttl: ttl}
}

// Balance returns the closing balance for a key, serving from Redis when a
// fresh entry exists.
func (c *BalanceCache) Balance(ctx context.Context, key stockkey.Key, asOf time.Time) (stockledger.Balance, error) {
	cacheKey := balanceKey(key, asOf, stockledger.ProfileClosing)

	data, err := c.rdb.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var b stockledger.Balance
		if jerr := json.Unmarshal(data, &b); jerr == nil {
			logger.Debug(ctx, "balance read", "key", key, "cache_hit", true)
			return b, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.Warn(ctx, "balance cache read failed", "error", err)
	}

	b, err := c.Service.Balance(ctx, key, asOf)
	if err != nil {
		return b, err
	}
	logger.Debug(ctx, "balance read", "key", key, "cache_hit", false)

	if payload, merr := json.Marshal(b); merr == nil {
		if serr := c.rdb.Set(ctx, cacheKey, payload, c.ttl).Err(); serr != nil {
			logger.Warn(ctx, "balance cache write failed", "error", serr)
		}
	}

	return b, nil
}

// RecordLegs writes legs through the ledger, then drops the cached balance
// families of every key the legs touch. A write dated d supersedes every
// cached as-of at or after d; dropping the whole family covers that.
func (c *BalanceCache) RecordLegs(ctx context.Context, recorderID id.ID, recorderVersion int, legs []entity.StockLeg) error {
	if err := c.Service.RecordLegs(ctx, recorderID, recorderVersion, legs); err != nil {
		return err
	}
	c.invalidateKeys(ctx, legKeys(legs))
	return nil
}

// ReverseLegs removes a recorder's legs and drops their cached families.
// The keys are read before the delete; afterwards nothing remembers them.
func (c *BalanceCache) ReverseLegs(ctx context.Context, recorderID id.ID) error {
	legs, err := c.Service.LegsByRecorder(ctx, recorderID)
	if err != nil {
		logger.Warn(ctx, "cache invalidation lookup failed", "recorder_id", recorderID, "error", err)
	}
	if err := c.Service.ReverseLegs(ctx, recorderID); err != nil {
		return err
	}
	c.invalidateKeys(ctx, legKeys(legs))
	return nil
}

func legKeys(legs []entity.StockLeg) []stockkey.Key {
	seen := make(map[stockkey.Key]struct{}, len(legs))
	keys := make([]stockkey.Key, 0, len(legs))
	for _, l := range legs {
		if _, ok := seen[l.Key]; ok {
			continue
		}
		seen[l.Key] = struct{}{}
		keys = append(keys, l.Key)
	}
	return keys
}

// invalidateKeys deletes the whole cached family of each key via SCAN.
// Failures are logged and swallowed; the TTL bounds staleness.
func (c *BalanceCache) invalidateKeys(ctx context.Context, keys []stockkey.Key) {
	for _, key := range keys {
		pattern := balanceKeyPrefix + key.String() + ":*"
		iter := c.rdb.Scan(ctx, 0, pattern, scanCount).Iterator()

		var stale []string
		for iter.Next(ctx) {
			stale = append(stale, iter.Val())
		}
		if err := iter.Err(); err != nil {
			logger.Warn(ctx, "balance cache scan failed", "pattern", pattern, "error", err)
			continue
		}
		if len(stale) == 0 {
			continue
		}

		if err := c.rdb.Del(ctx, stale...).Err(); err != nil {
			logger.Warn(ctx, "balance cache invalidation failed", "key", key, "error", err)
		}
	}
}

func balanceKey(key stockkey.Key, asOf time.Time, profile stockledger.Profile) string {
	return fmt.Sprintf("%s%s:%s:%s", balanceKeyPrefix, key, asOf.Format("2006-01-02"), profile.Name())
}
