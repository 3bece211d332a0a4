package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// WindowStore counts hits per key inside fixed windows. Incr returns the hit count for the
// current window, including this one, and when that window resets.
type WindowStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// RateLimiter enforces a fixed request budget per client and route within a window.
type RateLimiter struct {
	store  WindowStore
	limit  int
	window time.Duration
	prefix string
}

func NewRateLimiter(store WindowStore, limit int, window time.Duration, prefix string) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RateLimiter{store: store, limit: limit, window: window, prefix: prefix}
}

// Middleware limits requests for one named route. When the store errors, failOpen decides
// whether the request goes through.
func (rl *RateLimiter) Middleware(logger *slog.Logger, route string, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.prefix + ":" + route + ":" + ClientAddr(r)
			count, resetAt, err := rl.store.Incr(r.Context(), key, rl.window)
			if err != nil {
				if logger != nil {
					logger.Warn("rate limiter store error", "err", err, "route", route)
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			}

			remaining := int64(rl.limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if count > int64(rl.limit) {
				retry := int(time.Until(resetAt).Seconds()) + 1
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemoryWindowStore is a process-local WindowStore. Expired windows are dropped lazily on
// access and in bulk by Sweep.
type MemoryWindowStore struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*counter
}

type counter struct {
	count   int64
	resetAt time.Time
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{now: time.Now, windows: map[string]*counter{}}
}

func (s *MemoryWindowStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := s.windows[key]
	if c == nil || !now.Before(c.resetAt) {
		c = &counter{resetAt: now.Add(window)}
		s.windows[key] = c
	}
	c.count++
	return c.count, c.resetAt, nil
}

// Sweep removes every expired window and returns how many were removed.
func (s *MemoryWindowStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, c := range s.windows {
		if !now.Before(c.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryWindowStore) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *MemoryWindowStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
