/*
Package redis provides Redis-backed payroll claims.

PURPOSE:
  The in-memory payroll.ProcessedSet only protects a single process. When a
  run's payments are worked by more than one process, order and payment
  claims must be shared. Claims implements payroll.Claims with SETNX so the
  first claimant wins across processes.

KEYS:
  <prefix>:<scope>:<key>   e.g. payroll:3f2c...:order:O1

  Scope is the run id. Every run builds its own ledger, so a rerun of the
  same period must start from an empty keyspace.

SEE ALSO:
  - payroll/orders.go: Claims interface and the in-memory set
*/
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Astoria-Consulting/mad-dogs/config"
	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

const keyPrefix = "payroll"

// Client wraps the go-redis client.
type Client struct {
	Client *redis.Client
}

// NewClient connects to Redis using the provided configuration.
func NewClient(cfg config.RedisConfig, logger *zap.Logger) *Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	}

	return &Client{Client: client}
}

// Close closes the client.
func (c *Client) Close() {
	if c != nil && c.Client != nil {
		_ = c.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return errors.New("redis client not configured")
	}
	return c.Client.Ping(ctx).Err()
}

// =============================================================================
// CLAIMS
// =============================================================================

// Claims is a shared payroll.Claims over a Redis keyspace.
type Claims struct {
	client redis.Cmdable
	scope  string
	ttl    time.Duration
}

var _ payroll.Claims = (*Claims)(nil)

// NewClaims scopes claims under scope. A zero ttl keeps keys forever.
func NewClaims(client redis.Cmdable, scope string, ttl time.Duration) *Claims {
	return &Claims{client: client, scope: scope, ttl: ttl}
}

func (c *Claims) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(key), time.Now().UTC().Format(time.RFC3339), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Release drops every claim in the scope. cmd/payroll calls it once a run
// is final; otherwise keys expire with the TTL.
func (c *Claims) Release(ctx context.Context) (int64, error) {
	var released int64
	iter := c.client.Scan(ctx, 0, c.key("*"), 256).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 256 {
			n, err := c.client.Del(ctx, batch...).Result()
			if err != nil {
				return released, err
			}
			released += n
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return released, err
	}
	if len(batch) > 0 {
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return released, err
		}
		released += n
	}
	return released, nil
}

func (c *Claims) key(k string) string {
	return keyPrefix + ":" + c.scope + ":" + k
}
