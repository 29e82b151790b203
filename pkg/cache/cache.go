// Package cache decorates a VisionClient with a Redis read-through cache.
//
// Replies are keyed by a SHA-256 digest of the model, prompt, options and
// image bytes. Only successful replies are stored, so a failing backend is
// retried on the next call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/client"
)

const (
	DefaultTTL       = 24 * time.Hour
	DefaultNamespace = "jadescribe:vision"
)

// Client is a caching VisionClient.
type Client struct {
	inner     client.VisionClient
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	logger    *slog.Logger
}

var _ client.VisionClient = (*Client)(nil)

// New wraps inner. A nil rdb disables caching and every call goes to inner.
// A non-positive ttl uses DefaultTTL; an empty namespace uses DefaultNamespace.
func New(rdb *redis.Client, inner client.VisionClient, ttl time.Duration, namespace string) *Client {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Client{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger used for cache diagnostics.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// Connect opens a Redis client and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection to %s failed: %w", addr, err)
	}
	return rdb, nil
}

// Invoke returns the cached reply when present, otherwise calls inner and
// stores a successful reply. Redis errors never fail the call.
func (c *Client) Invoke(ctx context.Context, model, prompt string, image []byte, opts client.Options) (string, error) {
	if c.rdb == nil {
		return c.inner.Invoke(ctx, model, prompt, image, opts)
	}

	key := c.Key(model, prompt, image, opts)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil && cached != "":
		c.logger.Debug("vision cache hit", "key", key)
		return cached, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.logger.Warn("vision cache read failed", "key", key, "error", err)
	}

	out, err := c.inner.Invoke(ctx, model, prompt, image, opts)
	if err != nil {
		return "", err
	}

	if err := c.rdb.Set(ctx, key, out, c.ttl).Err(); err != nil {
		c.logger.Warn("vision cache write failed", "key", key, "error", err)
	}
	return out, nil
}

// Ping is passed through uncached.
func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}

// Models is passed through uncached.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	return c.inner.Models(ctx)
}

// Key returns the cache key for a request.
func (c *Client) Key(model, prompt string, image []byte, opts client.Options) string {
	h := sha256.New()
	for _, part := range [][]byte{
		[]byte(model),
		[]byte(prompt),
		[]byte(strconv.FormatFloat(opts.Temperature, 'f', -1, 64)),
		[]byte(strconv.FormatBool(opts.JSON)),
		image,
	} {
		// length prefix keeps ("ab","c") and ("a","bc") apart
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{0})
		h.Write(part)
	}
	return c.namespace + ":" + hex.EncodeToString(h.Sum(nil))
}
