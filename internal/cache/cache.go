// Package cache provides the in-process response cache for structured
// generation results: a size-bounded LRU whose entries also expire after a
// fixed time-to-live.
package cache

import (
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultMaxEntries = 500
	DefaultTTL        = time.Hour
)

// Config sizes a ResponseCache.
type Config struct {
	MaxEntries int           `json:"max_entries"`
	TTL        time.Duration `json:"ttl"`
}

// Stats reports the cache's current size and configuration.
type Stats struct {
	Size int           `json:"size"`
	Max  int           `json:"max"`
	TTL  time.Duration `json:"ttl"`
}

// ResponseCache maps request fingerprints to validated JSON values.
// All methods are safe for concurrent use.
type ResponseCache struct {
	lru *expirable.LRU[string, json.RawMessage]
	max int
	ttl time.Duration
}

// New creates a cache. Zero fields fall back to the defaults.
func New(cfg Config) *ResponseCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &ResponseCache{
		lru: expirable.NewLRU[string, json.RawMessage](cfg.MaxEntries, nil, cfg.TTL),
		max: cfg.MaxEntries,
		ttl: cfg.TTL,
	}
}

// Get returns the value for key and marks it most recently used.
// Expired entries are reported as absent.
func (c *ResponseCache) Get(key string) (json.RawMessage, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return cloneRaw(v), true
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *ResponseCache) Set(key string, value json.RawMessage) {
	c.lru.Add(key, cloneRaw(value))
}

// Clear drops every entry.
func (c *ResponseCache) Clear() {
	c.lru.Purge()
}

// Stats returns the current size and the configured bounds.
func (c *ResponseCache) Stats() Stats {
	return Stats{
		Size: c.lru.Len(),
		Max:  c.max,
		TTL:  c.ttl,
	}
}

// Values are copied in and out so callers cannot mutate cached bytes.
func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}
