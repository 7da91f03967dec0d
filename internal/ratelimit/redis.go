package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/httprate"
	httprateredis "github.com/go-chi/httprate-redis"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisCounter shares rate limit windows between every instance pointing
// at the same Redis. While Redis is unreachable it counts in memory.
type RedisCounter struct {
	httprate.LimitCounter
	client *redis.Client
}

// NewRedisCounter connects to the Redis at url (redis://...) and checks it
// answers. Keys are namespaced under prefix.
func NewRedisCounter(ctx context.Context, url, prefix string, logger zerolog.Logger) (*RedisCounter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	// fail fast so the in-memory fallback takes over quickly
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 300 * time.Millisecond
	opts.WriteTimeout = 300 * time.Millisecond
	opts.MaxRetries = -1

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	counter, err := httprateredis.NewRedisLimitCounter(&httprateredis.Config{
		Client:    client,
		PrefixKey: prefix,
		OnFallbackChange: func(activated bool) {
			if activated {
				logger.Warn().Msg("redis unavailable, rate limiting in memory")
				return
			}
			logger.Info().Msg("redis reachable again, rate limiting in redis")
		},
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create redis limit counter: %w", err)
	}

	return &RedisCounter{LimitCounter: counter, client: client}, nil
}

// Close releases the Redis connection pool.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}
