package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Kowshalya-Eswar/agrofarm/pkg/config"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace = "agrofarm"
	stockPrefix  = "stock"
	holdPrefix   = "hold"
	lockPrefix   = "lock"
)

// Nil re-exports the sentinel returned when a key does not exist.
var Nil = redis.Nil

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	IncrBy(context.Context, string, int64) *redis.IntCmd
	DecrBy(context.Context, string, int64) *redis.IntCmd
	Del(context.Context, ...string) *redis.IntCmd
	HSet(context.Context, string, ...any) *redis.IntCmd
	HGetAll(context.Context, string) *redis.MapStringStringCmd
	Scan(context.Context, uint64, string, int64) *redis.ScanCmd
}

// Client wraps the redis connection helpers used by the reservation layer.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{store: raw, raw: raw}, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Set stores a string value with an optional TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns a string value stored at key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", errors.New("redis client not initialized")
	}
	return c.store.Get(ctx, key).Result()
}

// GetInt reads the key as a base-10 integer. A missing key reads as zero.
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	raw, err := c.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %s: %w", key, err)
	}
	return n, nil
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// IncrBy adds delta to the counter stored at key.
func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	if c.store == nil {
		return 0, errors.New("redis client not initialized")
	}
	return c.store.IncrBy(ctx, key, delta).Result()
}

// DecrBy subtracts delta from the counter stored at key.
func (c *Client) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	if c.store == nil {
		return 0, errors.New("redis client not initialized")
	}
	return c.store.DecrBy(ctx, key, delta).Result()
}

// HSet writes field/value pairs into the hash at key.
func (c *Client) HSet(ctx context.Context, key string, values ...any) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.HSet(ctx, key, values...).Err()
}

// HGetAll returns the full hash stored at key. A missing key yields an empty map.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if c.store == nil {
		return nil, errors.New("redis client not initialized")
	}
	return c.store.HGetAll(ctx, key).Result()
}

// ScanKeys walks the keyspace for the given match pattern and returns all hits.
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	if c.store == nil {
		return nil, errors.New("redis client not initialized")
	}
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := c.store.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Del removes the provided keys and reports how many actually existed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	if c.store == nil {
		return 0, errors.New("redis client not initialized")
	}
	return c.store.Del(ctx, keys...).Result()
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// StockKey returns the reserved-stock counter key for a product.
func (c *Client) StockKey(productID string) string {
	return c.buildKey(stockPrefix, productID)
}

// HoldKey returns the hold hash key for a product/cart pair.
func (c *Client) HoldKey(productID, cartID string) string {
	return c.buildKey(holdPrefix, productID, cartID)
}

// HoldPattern matches every hold key in the keyspace.
func (c *Client) HoldPattern() string {
	return c.buildKey(holdPrefix, "*", "*")
}

// ProductHoldPattern matches every hold key for one product.
func (c *Client) ProductHoldPattern(productID string) string {
	return c.buildKey(holdPrefix, productID, "*")
}

// CartHoldPattern matches every hold key for one cart.
func (c *Client) CartHoldPattern(cartID string) string {
	return c.buildKey(holdPrefix, "*", cartID)
}

// LockKey returns a namespaced mutex key.
func (c *Client) LockKey(scope string) string {
	return c.buildKey(lockPrefix, scope)
}

// SplitHoldKey recovers the product and cart ids from a hold key.
func SplitHoldKey(key string) (productID, cartID string, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != keyNamespace || parts[1] != holdPrefix {
		return "", "", false
	}
	return parts[2], parts[3], true
}

func (c *Client) buildKey(parts ...string) string {
	if len(parts) == 0 {
		return keyNamespace
	}
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}
