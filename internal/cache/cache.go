// Package cache is a read-through TTL cache over the KV bucket. The
// bucket has no per-entry TTL, so every value is wrapped in an envelope
// carrying its write time; stale entries read as misses. Readers always
// fall back to the document store on a miss.
package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"skein/internal/config"
	"skein/internal/core"
)

type envelope struct {
	V        json.RawMessage `json:"v"`
	CachedAt time.Time       `json:"cachedAt"`
}

type Cache struct {
	Logger *slog.Logger
	KV     core.KeyValueClient
	Config *config.Config

	ttl time.Duration
}

func (c *Cache) Init(_ context.Context) error {
	c.Logger = c.Logger.With("component", "cache.Cache")
	c.ttl = c.Config.CacheTTL
	if c.ttl == 0 {
		c.ttl = 30 * time.Second
	}
	return nil
}

// Get unmarshals a fresh entry into out and reports a hit. Expired and
// missing entries are both misses; KV errors degrade to misses as well,
// since the document store is always able to answer.
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	raw, err := c.KV.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			c.Logger.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	if time.Since(env.CachedAt) > c.ttl {
		return false
	}

	return json.Unmarshal(env.V, out) == nil
}

func (c *Cache) Put(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.Logger.Warn("cache marshal failed", "key", key, "error", err)
		return
	}

	payload, err := json.Marshal(envelope{V: raw, CachedAt: time.Now()})
	if err != nil {
		return
	}

	if err := c.KV.Put(ctx, key, payload); err != nil {
		c.Logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// InvalidatePrefix drops every key equal to a prefix or nested under it.
// Matching stops at part boundaries so one encoded part never shadows a
// longer sibling.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefixes ...string) {
	keys, err := c.KV.Keys(ctx)
	if err != nil {
		c.Logger.Warn("cache invalidation failed", "error", err)
		return
	}

	for _, key := range keys {
		for _, prefix := range prefixes {
			if key == prefix || strings.HasPrefix(key, prefix+".") {
				if err := c.KV.Delete(ctx, key); err != nil {
					c.Logger.Warn("cache delete failed", "key", key, "error", err)
				}
				break
			}
		}
	}
}

// Key builds a KV-safe key from parts; URIs are base64url-encoded since
// the bucket's key alphabet is restricted.
func Key(parts ...string) string {
	encoded := make([]string, len(parts))
	for i, p := range parts {
		if strings.ContainsAny(p, ":/@") {
			encoded[i] = base64.RawURLEncoding.EncodeToString([]byte(p))
		} else {
			encoded[i] = p
		}
	}
	return strings.Join(encoded, ".")
}
