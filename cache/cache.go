// Package cache is the TTL cache in front of the analytics aggregator and the
// full-profile resolver. Entries are invalidated by expiry only, so a served
// value may lag the store by at most its TTL. Backend failures never fail a
// request: reads fall through to live computation and writes are dropped,
// both with a warning.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"dei-tracker/apperr"
	"dei-tracker/logging"
)

// Backend is a key-value store with per-entry expiry. Patterns use glob
// syntax where * matches any run of characters and ? a single one.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteMatching(ctx context.Context, pattern string) (int, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	Name() string
}

// Cache wraps a Backend with timeouts and logging. A nil *Cache or a nil
// backend disables caching; every Fetch then computes live.
type Cache struct {
	backend Backend
	timeout time.Duration
	log     *slog.Logger
}

func New(backend Backend, timeout time.Duration, log *slog.Logger) *Cache {
	if log == nil {
		log = logging.Discard()
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Cache{backend: backend, timeout: timeout, log: log}
}

func (c *Cache) Enabled() bool { return c != nil && c.backend != nil }

// BackendName reports the configured backend, "none" when disabled.
func (c *Cache) BackendName() string {
	if !c.Enabled() {
		return "none"
	}
	return c.backend.Name()
}

// Fetch returns the cached value for key or computes, stores and returns
// it. The bool reports a cache hit. Only compute errors are returned.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, bool, error) {
	if c.Enabled() {
		if raw, ok := c.get(ctx, key); ok {
			var v T
			err := json.Unmarshal(raw, &v)
			if err == nil {
				return v, true, nil
			}
			c.log.Warn("cache entry undecodable, recomputing", "key", key, "error", err)
		}
	}

	v, err := compute(ctx)
	if err != nil {
		return v, false, err
	}
	if c.Enabled() {
		c.set(ctx, key, v, ttl)
	}
	return v, false, nil
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache get failed", "key", key, "backend", c.backend.Name(), "error", err)
		return nil, false
	}
	return raw, ok
}

func (c *Cache) set(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.backend.Set(ctx, key, raw, ttl); err != nil {
		c.log.Warn("cache set failed", "key", key, "backend", c.backend.Name(), "error", err)
	}
}

// Stats summarises the live keys.
type Stats struct {
	Backend   string         `json:"backend"`
	Enabled   bool           `json:"enabled"`
	TotalKeys int            `json:"total_keys"`
	ByPrefix  map[string]int `json:"by_prefix"`
}

// Stats counts live keys grouped by prefix. Unlike Fetch, backend errors
// are returned since this is an operator call.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Backend: c.BackendName(), Enabled: c.Enabled(), ByPrefix: map[string]int{}}
	if !c.Enabled() {
		return st, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	keys, err := c.backend.Keys(ctx, "*")
	if err != nil {
		return st, apperr.Upstream(err, "cache backend %s unavailable", c.backend.Name())
	}
	st.TotalKeys = len(keys)
	for _, k := range keys {
		st.ByPrefix[Prefix(k)]++
	}
	return st, nil
}

// Clear deletes every key matching pattern; an empty pattern clears all.
func (c *Cache) Clear(ctx context.Context, pattern string) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}
	if pattern == "" {
		pattern = "*"
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.backend.DeleteMatching(ctx, pattern)
	if err != nil {
		return 0, apperr.Upstream(err, "cache backend %s unavailable", c.backend.Name())
	}
	c.log.Info("cache cleared", "pattern", pattern, "deleted", n)
	return n, nil
}

// Ping checks backends that support it. A disabled cache is always
// healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	p, ok := c.backend.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return apperr.Upstream(err, "cache backend %s unavailable", c.backend.Name())
	}
	return nil
}

// Prefix is the operation part of a key: its first two colon-separated
// segments ("analytics:compare:a_b" -> "analytics:compare").
func Prefix(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return key
	}
	return parts[0] + ":" + parts[1]
}

// SortedPrefixes returns the prefixes of st ordered by name.
func (st Stats) SortedPrefixes() []string {
	out := make([]string, 0, len(st.ByPrefix))
	for p := range st.ByPrefix {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
