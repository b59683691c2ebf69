package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleEviction drops limiters of clients not seen for this long.
const limiterIdleEviction = 10 * time.Minute

// RateLimiter holds one token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	enabled  bool
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

// NewRateLimiter allows requestsPerMin per key with the given burst. A
// non-positive requestsPerMin disables limiting.
func NewRateLimiter(requestsPerMin, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	rl.SetLimits(requestsPerMin, burst)
	go rl.cleanupRoutine(limiterIdleEviction)
	return rl
}

// SetLimits changes the rate for new and existing clients.
func (rl *RateLimiter) SetLimits(requestsPerMin, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.enabled = requestsPerMin > 0
	rl.rate = rate.Limit(float64(requestsPerMin) / 60.0)
	rl.burst = max(burst, 1)
	for _, l := range rl.limiters {
		l.SetLimit(rl.rate)
		l.SetBurst(rl.burst)
	}
}

// Allow reports whether a request from key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	if !rl.enabled {
		rl.mu.Unlock()
		return true
	}
	now := rl.now()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.lastSeen[key] = now
	rl.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// Stats describes the limiter for diagnostics.
func (rl *RateLimiter) Stats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]any{
		"enabled":         rl.enabled,
		"active_limiters": len(rl.limiters),
		"rate_per_minute": float64(rl.rate) * 60.0,
		"burst_capacity":  rl.burst,
	}
}

func (rl *RateLimiter) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(interval)
		case <-rl.done:
			return
		}
	}
}

// cleanup removes limiters that have not been used within evictionAge.
func (rl *RateLimiter) cleanup(evictionAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, seen := range rl.lastSeen {
		if now.Sub(seen) > evictionAge {
			delete(rl.limiters, key)
			delete(rl.lastSeen, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// clientIP returns the submitting client's address. With trustProxy set,
// proxy headers are consulted in order: the first X-Forwarded-For entry,
// X-Real-IP, then CF-Connecting-IP.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		for _, header := range []string{"X-Real-IP", "CF-Connecting-IP"} {
			if ip := strings.TrimSpace(r.Header.Get(header)); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
