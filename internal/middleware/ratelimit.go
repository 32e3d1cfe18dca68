package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

type callerWindow struct {
	count       int
	windowStart time.Time
}

// RateLimiter throttles expensive endpoints with a fixed window per caller.
// Submissions sit behind JWT auth, so the key is the authenticated owner;
// unauthenticated requests fall back to the remote address.
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string]*callerWindow
	limit   int
	window  time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		callers: make(map[string]*callerWindow),
		limit:   limit,
		window:  window,
	}

	go rl.sweep()
	return rl
}

// sweep drops callers whose window has lapsed. Upload traffic is bursty and
// per-owner, so the map stays small; a full scan per window is enough.
func (rl *RateLimiter) sweep() {
	for {
		time.Sleep(rl.window)
		rl.mu.Lock()
		for key, c := range rl.callers {
			if time.Since(c.windowStart) > rl.window {
				delete(rl.callers, key)
			}
		}
		rl.mu.Unlock()
	}
}

func callerKey(r *http.Request) string {
	if ownerID := GetOwnerID(r.Context()); ownerID != uuid.Nil {
		return "owner:" + ownerID.String()
	}
	return "addr:" + r.RemoteAddr
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.callers[key]
	if !ok || now.Sub(c.windowStart) > rl.window {
		rl.callers[key] = &callerWindow{count: 1, windowStart: now}
		return true
	}

	c.count++
	return c.count <= rl.limit
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(callerKey(r)) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
