package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimit allows Requests per client IP in every Window.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

func (l RateLimit) headers(c *gin.Context) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(l.Requests))
	c.Header("X-RateLimit-Window", l.Window.String())
}

func tooManyRequests(c *gin.Context, l RateLimit) {
	l.headers(c)
	c.Header("Retry-After", strconv.Itoa(int(l.Window.Seconds())))
	abortJSON(c, http.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
}

// LocalRateLimiter limits each client IP with a token bucket held in memory.
// Buckets refill evenly over the window and start full.
func LocalRateLimiter(l RateLimit) gin.HandlerFunc {
	if l.Requests <= 0 || l.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	visitors := newVisitorTable(l)
	return func(c *gin.Context) {
		if !visitors.allow(c.ClientIP(), time.Now()) {
			tooManyRequests(c, l)
			return
		}
		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorTable holds one bucket per client. A bucket idle for a whole window
// is full again, so it is dropped on the next sweep.
type visitorTable struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	entries   map[string]*visitor
}

func newVisitorTable(l RateLimit) *visitorTable {
	return &visitorTable{
		every:   rate.Every(l.Window / time.Duration(l.Requests)),
		burst:   l.Requests,
		idle:    l.Window,
		entries: make(map[string]*visitor),
	}
}

func (t *visitorTable) allow(ip string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) >= t.idle {
		t.sweep(now)
	}
	v, ok := t.entries[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.every, t.burst)}
		t.entries[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (t *visitorTable) sweep(now time.Time) {
	for ip, v := range t.entries {
		if now.Sub(v.lastSeen) >= t.idle {
			delete(t.entries, ip)
		}
	}
	t.lastSweep = now
}

// RedisRateLimiter counts requests per client IP in a sliding window kept in
// a Redis sorted set, so every instance shares one budget. Redis failures
// let the request through.
type RedisRateLimiter struct {
	client *redis.Client
	limit  RateLimit
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisRateLimiter creates a limiter storing its windows under prefix.
func NewRedisRateLimiter(client *redis.Client, prefix string, l RateLimit, logger *slog.Logger) *RedisRateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRateLimiter{client: client, limit: l, prefix: prefix, logger: logger, now: time.Now}
}

// Middleware returns the gin handler enforcing the limit.
func (rl *RedisRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := rl.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			rl.logger.Warn("rate limiter unavailable", slog.String("error", err.Error()))
			c.Next()
			return
		}
		if !allowed {
			tooManyRequests(c, rl.limit)
			return
		}
		c.Next()
	}
}

// Allow records a request for key and reports whether it fits the window.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)
	now := rl.now().UnixNano()
	windowStart := now - rl.limit.Window.Nanoseconds()

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	count := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, redisKey, rl.limit.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}
	return count.Val() < int64(rl.limit.Requests), nil
}
