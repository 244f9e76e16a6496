// Package cache stores availability reports in Redis. Reports are keyed
// by date so every write to a date can drop them in one call.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/table-reservations/internal/config"
	"github.com/iliyamo/table-reservations/internal/model"
)

// minGenerationTTL keeps a date's generation counter around well past the
// lifetime of any report stored under it.
const minGenerationTTL = 24 * time.Hour

// setIfCurrent stores a report only while the date's generation still
// matches the one the caller read before evaluating.
//
// KEYS[1] generation counter, KEYS[2] report hash
// ARGV[1] expected generation, ARGV[2] field, ARGV[3] entry, ARGV[4] ttl ms
var setIfCurrent = redis.NewScript(`
local gen = tonumber(redis.call('GET', KEYS[1]) or '0')
if gen ~= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[4])
return 1
`)

// entry is the stored form of a report, stamped with the generation it
// was computed under.
type entry struct {
	Gen   int64                    `json:"gen"`
	Slots []model.AvailabilitySlot `json:"slots"`
}

// AvailabilityCache holds one Redis hash per date (<prefix>:<date>) with a
// field per requested capacity, plus a generation counter per date
// (<prefix>:<date>:gen) that every invalidation bumps. A nil client makes
// every method a no-op.
type AvailabilityCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	genTTL time.Duration
	prefix string
}

// NewAvailabilityCache returns a cache using rdb, or a disabled cache when
// rdb is nil or cfg disables caching.
func NewAvailabilityCache(cfg config.CacheConfig, rdb *redis.Client) *AvailabilityCache {
	if !cfg.Enabled {
		rdb = nil
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "availability"
	}
	genTTL := max(minGenerationTTL, 2*cfg.TTL)
	return &AvailabilityCache{rdb: rdb, ttl: cfg.TTL, genTTL: genTTL, prefix: prefix}
}

// Enabled reports whether reports are actually cached.
func (c *AvailabilityCache) Enabled() bool { return c != nil && c.rdb != nil }

// TTL is how long a report may be served after it was stored.
func (c *AvailabilityCache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

func (c *AvailabilityCache) key(date string) string    { return c.prefix + ":" + date }
func (c *AvailabilityCache) genKey(date string) string { return c.prefix + ":" + date + ":gen" }

// Get returns the cached report for date and capacity together with the
// date's current generation. ok is false on a miss, including an entry
// left over from an older generation.
func (c *AvailabilityCache) Get(ctx context.Context, date string, capacity int) (report []model.AvailabilitySlot, gen int64, ok bool, err error) {
	if !c.Enabled() {
		return nil, 0, false, nil
	}
	var genCmd *redis.StringCmd
	var rawCmd *redis.StringCmd
	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		genCmd = p.Get(ctx, c.genKey(date))
		rawCmd = p.HGet(ctx, c.key(date), strconv.Itoa(capacity))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("cache get %s: %w", date, err)
	}

	gen, err = genCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("cache generation %s: %w", date, err)
	}
	raw, err := rawCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("cache get %s: %w", date, err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, 0, false, fmt.Errorf("cache decode %s: %w", date, err)
	}
	if e.Gen != gen {
		return nil, gen, false, nil
	}
	return e.Slots, gen, true, nil
}

// Set stores report under date and capacity and refreshes the date's TTL,
// provided the date is still at generation gen. stored is false when an
// invalidation happened since gen was read.
func (c *AvailabilityCache) Set(ctx context.Context, date string, capacity int, gen int64, report []model.AvailabilitySlot) (stored bool, err error) {
	if !c.Enabled() {
		return false, nil
	}
	raw, err := json.Marshal(entry{Gen: gen, Slots: report})
	if err != nil {
		return false, err
	}
	n, err := setIfCurrent.Run(ctx, c.rdb,
		[]string{c.genKey(date), c.key(date)},
		gen, strconv.Itoa(capacity), raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("cache set %s: %w", date, err)
	}
	return n == 1, nil
}

// Invalidate drops every cached report for the given dates and bumps
// their generations, so a report computed before the call can no longer
// be stored. Empty and repeated dates are ignored.
func (c *AvailabilityCache) Invalidate(ctx context.Context, dates ...string) error {
	if !c.Enabled() {
		return nil
	}
	seen := make(map[string]bool, len(dates))
	days := make([]string, 0, len(dates))
	for _, d := range dates {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	if len(days) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, d := range days {
			p.Incr(ctx, c.genKey(d))
			p.Expire(ctx, c.genKey(d), c.genTTL)
			p.Del(ctx, c.key(d))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
