// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

// posts.go provides a Valkey-backed cache for public post responses.
// The serialized JSON for a post detail or list is stored so repeat
// reads skip the database entirely. Writes from the admin area and the
// import pipeline invalidate affected keys.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/poer2023/tdp/internal/models"
)

const (
	// postKeyPrefix is the Valkey key prefix for cached post responses.
	postKeyPrefix = "post:"

	// DefaultPostTTL is how long a cached response stays fresh.
	DefaultPostTTL = 5 * time.Minute
)

// PostCache manages public post response caching in Valkey.
type PostCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPostCache creates a post cache backed by the given Valkey client.
func NewPostCache(client *redis.Client, ttl time.Duration) *PostCache {
	if ttl == 0 {
		ttl = DefaultPostTTL
	}
	return &PostCache{client: client, ttl: ttl}
}

// DetailKey returns the cache key for one post.
func DetailKey(locale models.Locale, slug string) string {
	return string(locale) + ":" + slug
}

// ListKey returns the cache key for a locale's post listing.
func ListKey(locale models.Locale) string {
	return string(locale) + ":_list"
}

// Get retrieves a cached response. Returns (nil, false) on miss.
func (pc *PostCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := pc.client.Get(ctx, postKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("post cache get error", "key", key, "error", err)
		return nil, false
	}
	return val, true
}

// Set stores a serialized response with the configured TTL.
func (pc *PostCache) Set(ctx context.Context, key string, body []byte) {
	if err := pc.client.Set(ctx, postKeyPrefix+key, body, pc.ttl).Err(); err != nil {
		slog.Warn("post cache set error", "key", key, "error", err)
	}
}

// Invalidate removes a single cached response.
func (pc *PostCache) Invalidate(ctx context.Context, key string) {
	if err := pc.client.Del(ctx, postKeyPrefix+key).Err(); err != nil {
		slog.Warn("post cache invalidate error", "key", key, "error", err)
	}
}

// InvalidateAll removes every cached post response by scanning for the
// prefix. The import pipeline calls this after apply: a batch can touch
// any number of posts in both locales.
func (pc *PostCache) InvalidateAll(ctx context.Context) {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := pc.client.Scan(ctx, cursor, postKeyPrefix+"*", 100).Result()
		if err != nil {
			slog.Warn("post cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := pc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("post cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("post cache fully cleared", "deleted", deleted)
	}
}
