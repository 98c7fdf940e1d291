package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/mediadrop/internal/manifest"
	"github.com/maneesh/mediadrop/internal/models"
)

const (
	// DefaultCacheTTL is how long a cached bundle lives in Redis.
	DefaultCacheTTL = time.Hour

	defaultCachePrefix = "mediadrop"
)

// CachedBundleStore is a Redis read-through cache in front of a BundleStore.
// Bundles never change, so entries are only ever added or expired. Redis
// failures are logged and the backing store answers instead.
type CachedBundleStore struct {
	inner  BundleStore
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// CacheOption configures a CachedBundleStore.
type CacheOption func(*CachedBundleStore)

// WithCacheTTL sets the entry lifetime. Zero keeps entries until evicted.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *CachedBundleStore) {
		c.ttl = ttl
	}
}

// WithCachePrefix sets the Redis key prefix.
func WithCachePrefix(prefix string) CacheOption {
	return func(c *CachedBundleStore) {
		c.prefix = prefix
	}
}

// WithCacheLogger sets the logger used for cache warnings.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *CachedBundleStore) {
		c.logger = l
	}
}

func NewCachedBundleStore(inner BundleStore, client *redis.Client, opts ...CacheOption) *CachedBundleStore {
	c := &CachedBundleStore{
		inner:  inner,
		client: client,
		ttl:    DefaultCacheTTL,
		prefix: defaultCachePrefix,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "bundle_cache")
	return c
}

// NewRedisClient initializes a Redis client and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// Put writes through to the backing store, then warms the cache.
func (c *CachedBundleStore) Put(ctx context.Context, token string, attachments []models.Attachment) error {
	if err := c.inner.Put(ctx, token, attachments); err != nil {
		return err
	}
	if err := c.set(ctx, token, attachments); err != nil {
		c.logger.Warn("failed to warm cache", "token", token, "error", err)
	}
	return nil
}

// Get serves from Redis when possible and fills the cache on a miss.
func (c *CachedBundleStore) Get(ctx context.Context, token string) ([]models.Attachment, error) {
	attachments, err := c.lookup(ctx, token)
	if err != nil {
		c.logger.Warn("cache lookup failed", "token", token, "error", err)
	}
	if attachments != nil {
		return attachments, nil
	}

	attachments, err = c.inner.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := c.set(ctx, token, attachments); err != nil {
		c.logger.Warn("failed to update cache", "token", token, "error", err)
	}
	return attachments, nil
}

func (c *CachedBundleStore) lookup(ctx context.Context, token string) ([]models.Attachment, error) {
	ctx, span := tracer.Start(ctx, "redis.get_bundle",
		trace.WithAttributes(
			attribute.String("token", token),
		),
	)
	defer span.End()

	data, err := c.client.Get(ctx, c.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(
			attribute.Bool("cache_hit", false),
			attribute.String("cache_status", "miss"),
		)
		return nil, nil
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	m, err := manifest.Decode(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode cached bundle: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_hit", true),
		attribute.String("cache_status", "hit"),
	)
	return m.Attachments, nil
}

func (c *CachedBundleStore) set(ctx context.Context, token string, attachments []models.Attachment) error {
	ctx, span := tracer.Start(ctx, "redis.set_bundle",
		trace.WithAttributes(
			attribute.String("token", token),
		),
	)
	defer span.End()

	data, err := manifest.Encode(token, attachments, c.now())
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := c.client.Set(ctx, c.key(token), data, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cache: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_set_success", true),
		attribute.Int64("ttl_seconds", int64(c.ttl.Seconds())),
	)
	return nil
}

func (c *CachedBundleStore) key(token string) string {
	return fmt.Sprintf("%s:bundle:%s", c.prefix, token)
}
