// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/apierror"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// ErrTooManyRequests is returned once a client used up its window.
var ErrTooManyRequests = apierror.TooManyRequests("Too many requests from this IP, please try again in an hour!")

// RateLimitPrefix is the path prefix subject to rate limiting.
const RateLimitPrefix = "/api"

// RateLimiter limits requests below RateLimitPrefix per client IP using store.
func RateLimiter(store echomw.RateLimiterStore, logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return !strings.HasPrefix(c.Request().URL.Path, RateLimitPrefix)
		},
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			return apierror.Internal(err)
		},
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			logger.Warn("rate_limited", "ip", identifier, "path", c.Request().URL.Path)
			return ErrTooManyRequests
		},
	})
}

// SlidingWindowStore remembers the request times of every client in
// memory and allows at most max requests in any window.
type SlidingWindowStore struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewSlidingWindowStore(max int, window time.Duration) *SlidingWindowStore {
	return &SlidingWindowStore{
		max:    max,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow implements echo's RateLimiterStore.
func (s *SlidingWindowStore) Allow(identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)

	if now.Sub(s.lastSweep) > s.window {
		s.sweep(cutoff)
		s.lastSweep = now
	}

	hits := s.hits[identifier]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	if len(hits) >= s.max {
		s.hits[identifier] = hits
		return false, nil
	}

	s.hits[identifier] = append(hits, now)
	return true, nil
}

// sweep drops clients without hits inside the window.
func (s *SlidingWindowStore) sweep(cutoff time.Time) {
	for id, hits := range s.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(s.hits, id)
		}
	}
}
