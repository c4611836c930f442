// Package cache keeps recent search pages in Redis.
//
// Entries are keyed by the md5 of the normalized criteria key together with
// a generation counter. Invalidate bumps the counter so that every listing
// write retires all cached pages at once; stale entries age out via their TTL.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/config"
	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL    = 60 * time.Second
	defaultPrefix = "flat"
)

// SearchCache stores search result pages.
type SearchCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// New wraps an existing client. A non-positive ttl uses DefaultTTL.
func New(client redis.Cmdable, prefix string, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &SearchCache{client: client, prefix: prefix, ttl: ttl}
}

// Open connects to the configured Redis. It returns a nil cache and client
// when no address is configured.
func Open(ctx context.Context, cfg config.RedisConfig) (*SearchCache, *redis.Client, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, defaultPrefix, cfg.TTL), client, nil
}

// Load returns the cached page for key along with the generation it was
// looked up in. A miss still reports the generation so the caller can Store
// the page it computes under it.
func (c *SearchCache) Load(ctx context.Context, key string) (types.Page[types.Property], int64, bool, error) {
	var page types.Page[types.Property]

	gen, err := c.generation(ctx)
	if err != nil {
		return page, 0, false, err
	}
	data, err := c.client.Get(ctx, c.entryKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return page, gen, false, nil
	}
	if err != nil {
		return page, gen, false, err
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return types.Page[types.Property]{}, gen, false, fmt.Errorf("decode cached page: %w", err)
	}
	return page, gen, true, nil
}

// Store caches page under key in generation gen, which must be the value
// Load reported before the page was queried. A page read before an
// Invalidate therefore lands in a retired generation and is never served.
func (c *SearchCache) Store(ctx context.Context, key string, gen int64, page types.Page[types.Property]) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	return c.client.Set(ctx, c.entryKey(gen, key), data, c.ttl).Err()
}

// Invalidate retires every cached page.
func (c *SearchCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, c.generationKey()).Err()
}

func (c *SearchCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *SearchCache) generationKey() string {
	return c.prefix + ":search:gen"
}

func (c *SearchCache) entryKey(gen int64, key string) string {
	return EntryKey(c.prefix, gen, key)
}

// EntryKey derives the Redis key of one cached page.
func EntryKey(prefix string, gen int64, key string) string {
	hash := md5.Sum([]byte(key))
	return prefix + ":search:" + strconv.FormatInt(gen, 10) + ":" + hex.EncodeToString(hash[:])
}
