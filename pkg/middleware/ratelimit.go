package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ipLimiter tracks a rate limiter and its last access time
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits requests per client IP with automatic cleanup of idle clients
type RateLimiter struct {
	limiters        map[string]*ipLimiter
	mu              sync.Mutex
	rate            rate.Limit
	burst           int
	maxSize         int           // Maximum number of IP limiters to cache
	cleanupInterval time.Duration // How often to cleanup stale entries
	stopCh          chan struct{}
	stopOnce        sync.Once
	logger          *zap.Logger
}

// NewRateLimiter creates a new rate limiter
// requestsPerSecond: max requests per second per IP
// burst: max burst size
func NewRateLimiter(requestsPerSecond float64, burst int, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		limiters:        make(map[string]*ipLimiter),
		rate:            rate.Limit(requestsPerSecond),
		burst:           burst,
		maxSize:         10000,
		cleanupInterval: 5 * time.Minute,
		stopCh:          make(chan struct{}),
		logger:          logger,
	}

	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup(time.Now())
		}
	}
}

// cleanup removes entries that haven't been accessed in the last cleanup interval
func (rl *RateLimiter) cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.cleanupInterval)
	removed := 0

	for ip, limiter := range rl.limiters {
		if limiter.lastAccess.Before(cutoff) {
			delete(rl.limiters, ip)
			removed++
		}
	}

	if removed > 100 {
		rl.logger.Info("Rate limiter cleanup",
			zap.Int("removed", removed),
			zap.Int("remaining", len(rl.limiters)),
		)
	}
	return removed
}

// Shutdown stops the cleanup goroutine
func (rl *RateLimiter) Shutdown() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// getLimiter returns the limiter of ip, evicting the least recently seen
// client when the cache is full
func (rl *RateLimiter) getLimiter(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, ok := rl.limiters[ip]; ok {
		entry.lastAccess = now
		return entry.limiter
	}

	if len(rl.limiters) >= rl.maxSize {
		oldestIP := ""
		for candidate, entry := range rl.limiters {
			if oldestIP == "" || entry.lastAccess.Before(rl.limiters[oldestIP].lastAccess) {
				oldestIP = candidate
			}
		}
		delete(rl.limiters, oldestIP)
	}

	entry := &ipLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst), lastAccess: now}
	rl.limiters[ip] = entry
	return entry.limiter
}

// Middleware rejects a client over its budget with 429 and a Retry-After
// telling it when the next token is available
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		ip := clientIP(r)

		reservation := rl.getLimiter(ip, now).ReserveN(now, 1)
		if delay := reservation.DelayFrom(now); !reservation.OK() || delay > 0 {
			reservation.CancelAt(now)
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client_ip", ip),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(delay)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"code":    "RATE_LIMITED",
				"message": "rate limit exceeded, please try again later",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(delay time.Duration) int {
	if delay == rate.InfDuration || delay <= 0 {
		return 1
	}
	return int(math.Ceil(delay.Seconds()))
}

// clientIP strips the port from RemoteAddr
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
