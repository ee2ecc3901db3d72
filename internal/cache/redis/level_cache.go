package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// LevelCache implements domain.LevelCache on Redis. Clustered level sets are
// stored as JSON under a key derived from instrument and cutoff instant, so
// repeated runs over the same history skip detection entirely.
//
// Key schema:
//
//	levels:{instrument}:{cutoff unix seconds}
type LevelCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLevelCache creates a LevelCache backed by the given Client. A
// non-positive ttl stores entries without expiry.
func NewLevelCache(c *Client, ttl time.Duration) *LevelCache {
	return &LevelCache{rdb: c.rdb, ttl: ttl}
}

func levelKey(id domain.InstrumentID, cutoff time.Time) string {
	return fmt.Sprintf("levels:%s:%d", id, cutoff.Unix())
}

// cachedLevel is the wire form of one level entry.
type cachedLevel struct {
	Kind     domain.LevelKind   `json:"kind"`
	Price    float64            `json:"price"`
	Strength float64            `json:"strength"`
	Members  []domain.LevelKind `json:"members,omitempty"`
}

// Get returns the cached level set, or domain.ErrNotFound on a miss. A
// corrupt entry is treated as a miss.
func (lc *LevelCache) Get(ctx context.Context, id domain.InstrumentID, cutoff time.Time) ([]domain.Level, error) {
	data, err := lc.rdb.Get(ctx, levelKey(id, cutoff)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get levels %s: %w", id, err)
	}

	var cached []cachedLevel
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, domain.ErrNotFound
	}

	levels := make([]domain.Level, 0, len(cached))
	for _, c := range cached {
		levels = append(levels, domain.Level{
			Instrument: id,
			Kind:       c.Kind,
			Price:      c.Price,
			Strength:   c.Strength,
			Members:    c.Members,
		})
	}
	return levels, nil
}

// Set stores a level set under the instrument+cutoff key.
func (lc *LevelCache) Set(ctx context.Context, id domain.InstrumentID, cutoff time.Time, levels []domain.Level) error {
	cached := make([]cachedLevel, 0, len(levels))
	for _, lvl := range levels {
		cached = append(cached, cachedLevel{
			Kind:     lvl.Kind,
			Price:    lvl.Price,
			Strength: lvl.Strength,
			Members:  lvl.Members,
		})
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("redis: marshal levels %s: %w", id, err)
	}
	if err := lc.rdb.Set(ctx, levelKey(id, cutoff), data, lc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set levels %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LevelCache = (*LevelCache)(nil)
