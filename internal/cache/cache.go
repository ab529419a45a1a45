// Package cache is the fail-open memoization layer over the KV store.
//
// Caching is best-effort and never load-bearing: when the store is down or a
// row is malformed, Get reports a miss and Set drops the write silently
// (counted on an OTel metric so operators can see it).
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/citybrief/citybrief/internal/store"
)

// Key namespaces. Tool-level keys memoize fetcher output; view-level keys
// memoize rendered endpoint responses with a much shorter TTL.
const (
	nsWeatherView = "cache:weather:"
	nsNewsView    = "cache:news:"
	nsTool        = "cache:tool:"
)

// Normalize canonicalizes a place name for cache keys: trimmed and lowercased.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// WeatherViewKey returns the view-cache key for a place's weather line.
func WeatherViewKey(place string) string {
	p := Normalize(place)
	if p == "" {
		p = "unknown"
	}
	return nsWeatherView + p
}

// NewsViewKey returns the view-cache key for a place's news listing.
func NewsViewKey(place string) string {
	p := Normalize(place)
	if p == "" {
		p = "unknown"
	}
	return nsNewsView + p
}

// ToolKey builds a tool-level cache key from a tool name and its normalized
// key parts, e.g. ToolKey("weather_line", place, horizon).
func ToolKey(tool string, parts ...string) string {
	b := strings.Builder{}
	b.WriteString(nsTool)
	b.WriteString(tool)
	for _, p := range parts {
		b.WriteString(":")
		b.WriteString(Normalize(p))
	}
	return b.String()
}

// ToolCache memoizes fetcher output in the KV store.
// A nil *ToolCache is valid and behaves as an always-miss cache.
type ToolCache struct {
	store *store.Store
	ttl   time.Duration
}

// New creates a ToolCache with the given default TTL. store may be nil.
func New(s *store.Store, ttl time.Duration) *ToolCache {
	return &ToolCache{store: s, ttl: ttl}
}

// TTL returns the cache's default TTL.
func (c *ToolCache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// GetString returns the cached string for key, or ("", false) on miss or
// store unavailability.
func (c *ToolCache) GetString(ctx context.Context, key string) (string, bool) {
	if c == nil || c.store == nil {
		return "", false
	}
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache_read_failed")
		return "", false
	}
	return v, ok
}

// SetString stores value under key with the cache's TTL. Failures are
// swallowed and counted.
func (c *ToolCache) SetString(ctx context.Context, key, value string) {
	c.SetStringTTL(ctx, key, value, c.TTL())
}

// SetStringTTL is SetString with an explicit TTL.
func (c *ToolCache) SetStringTTL(ctx context.Context, key, value string, ttl time.Duration) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		writeFailures.Add(ctx, 1)
		log.Debug().Err(err).Str("key", key).Msg("cache_write_failed")
	}
}

// GetJSON unmarshals the cached value for key into out. Malformed rows are
// treated as misses.
func (c *ToolCache) GetJSON(ctx context.Context, key string, out interface{}) bool {
	raw, ok := c.GetString(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache_decode_failed")
		return false
	}
	return true
}

// SetJSON marshals v and stores it under key with the cache's TTL.
func (c *ToolCache) SetJSON(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.SetString(ctx, key, string(raw))
}

// GetOrCompute returns the cached string for key, or computes, stores (with
// explicit ttl), and returns it. Compute errors pass through uncached.
func (c *ToolCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func() (string, error)) (string, error) {
	if v, ok := c.GetString(ctx, key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return "", err
	}
	c.SetStringTTL(ctx, key, v, ttl)
	return v, nil
}
