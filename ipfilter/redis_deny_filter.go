package ipfilter

import (
	"context"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberinferno/tcpserve/logger"
)

// RedisDenyFilter denies connections from IPs that are members of a shared
// Redis set, letting multiple server processes enforce one deny list. The
// filter fails open: when Redis is unreachable the connection is admitted and
// the lookup error is logged.
type RedisDenyFilter struct {
	client  *redis.Client
	key     string
	timeout time.Duration
	log     logger.Logger
}

// NewRedisDenyFilter creates a filter checking membership of the given Redis
// set key.
//
// Parameters:
//   - client: The Redis client to query
//   - key: The Redis set holding denied IPs
//   - timeout: Per-lookup timeout
//   - log: Logger for lookup failures
//
// Returns:
//   - A new RedisDenyFilter
func NewRedisDenyFilter(client *redis.Client, key string, timeout time.Duration, log logger.Logger) *RedisDenyFilter {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &RedisDenyFilter{
		client:  client,
		key:     key,
		timeout: timeout,
		log:     log,
	}
}

// Name implements ConnectionFilter.
func (f *RedisDenyFilter) Name() string {
	return "redis-deny"
}

// AllowConnect implements ConnectionFilter.
func (f *RedisDenyFilter) AllowConnect(remoteAddr net.Addr) bool {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	denied, err := f.client.SIsMember(ctx, f.key, RemoteIP(remoteAddr)).Result()
	if err != nil {
		f.log.Error("redis deny list lookup failed",
			logger.Field{Key: "key", Value: f.key},
			logger.Field{Key: "error", Value: err})
		return true
	}

	return !denied
}

// Deny adds an IP to the shared deny list.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - ip: The IP to deny
//
// Returns:
//   - An error if the Redis write fails
func (f *RedisDenyFilter) Deny(ctx context.Context, ip string) error {
	return f.client.SAdd(ctx, f.key, ip).Err()
}

// Allow removes an IP from the shared deny list.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - ip: The IP to stop denying
//
// Returns:
//   - An error if the Redis write fails
func (f *RedisDenyFilter) Allow(ctx context.Context, ip string) error {
	return f.client.SRem(ctx, f.key, ip).Err()
}
