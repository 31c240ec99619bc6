// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the client's sorted set to the window, then records
// the request if there is room. Scores are milliseconds.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisStore is a sliding window rate limit store shared by all
// instances connected to the same Redis.
type RedisStore struct {
	client  *redis.Client
	max     int
	window  time.Duration
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewRedisStore(client *redis.Client, max int, window time.Duration, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client:  client,
		max:     max,
		window:  window,
		prefix:  "ratelimit:",
		timeout: time.Second,
		logger:  logger,
		now:     time.Now,
	}
}

// Allow implements echo's RateLimiterStore. Redis failures let the request
// through.
func (s *RedisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := slidingWindow.Run(ctx, s.client,
		[]string{s.prefix + identifier},
		s.now().UnixMilli(),
		s.window.Milliseconds(),
		s.max,
		uuid.NewString(),
	).Int()
	if err != nil {
		s.logger.Error("rate_limit_store_failed", "error", err)
		return true, nil
	}
	return res == 1, nil
}
