package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tagLikeTotalsKey = "tag_like_totals"
	// versionKey is bumped by every Invalidate so a Set computed from older data can be refused.
	versionKey = "tag_like_totals:version"
	// populatedField marks a filled hash so an empty result set still counts as a hit.
	populatedField = "_populated"
)

// ErrStale is returned by Set when the totals were invalidated after the
// version was read.
var ErrStale = errors.New("tag like totals changed while computing")

// LikeTotals caches the per-tag like totals computed by the aggregation engine.
// A nil client disables caching: Get always misses and writes are no-ops.
type LikeTotals struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLikeTotals(rdb *redis.Client, ttl time.Duration) *LikeTotals {
	return &LikeTotals{rdb: rdb, ttl: ttl}
}

// Get returns the cached totals and whether the cache was populated.
func (c *LikeTotals) Get(ctx context.Context) (map[uuid.UUID]int, bool, error) {
	if c == nil || c.rdb == nil {
		return nil, false, nil
	}

	val, err := c.rdb.HGetAll(ctx, tagLikeTotalsKey).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read tag like totals: %w", err)
	}
	if _, ok := val[populatedField]; !ok {
		return nil, false, nil
	}

	totals := make(map[uuid.UUID]int, len(val))
	for k, v := range val {
		if k == populatedField {
			continue
		}
		id, err := uuid.Parse(k)
		if err != nil {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		totals[id] = n
	}

	return totals, true, nil
}

// Version returns the current invalidation generation. Read it before loading
// the data the totals are computed from and hand it back to Set.
func (c *LikeTotals) Version(ctx context.Context) (int64, error) {
	if c == nil || c.rdb == nil {
		return 0, nil
	}

	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read tag like totals version: %w", err)
	}
	return v, nil
}

// Set replaces the cached totals unless Invalidate ran since version was read,
// in which case it writes nothing and returns ErrStale.
func (c *LikeTotals) Set(ctx context.Context, version int64, totals map[uuid.UUID]int) error {
	if c == nil || c.rdb == nil {
		return nil
	}

	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != version {
			return ErrStale
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, tagLikeTotalsKey)
			pipe.HSet(ctx, tagLikeTotalsKey, populatedField, 1)
			for id, n := range totals {
				pipe.HSet(ctx, tagLikeTotalsKey, id.String(), n)
			}
			if c.ttl > 0 {
				pipe.Expire(ctx, tagLikeTotalsKey, c.ttl)
			}
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("failed to write tag like totals: %w", err)
	}
}

// Invalidate drops the cached totals and bumps the version. Any like, cover,
// gallery or tag-link change can move a tag's total, so the whole hash goes.
func (c *LikeTotals) Invalidate(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}

	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, versionKey)
	pipe.Del(ctx, tagLikeTotalsKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate tag like totals: %w", err)
	}
	return nil
}
