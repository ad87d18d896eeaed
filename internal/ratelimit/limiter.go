package ratelimit

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("rate limiter unavailable")

// ErrRateLimited is returned once a bucket is exhausted.
type ErrRateLimited struct {
	Bucket     string
	RetryAfter time.Duration
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited on %s, retry after %s", e.Bucket, e.RetryAfter)
}

// Rule is a fixed window: Limit hits every Window.
type Rule struct {
	Bucket string
	Limit  int
	Window time.Duration
}

// Result describes a bucket after a hit.
type Result struct {
	Bucket     string
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// SetHeaders writes the X-RateLimit-* headers.
func (r Result) SetHeaders(h http.Header) {
	h.Set("X-RateLimit-Bucket", r.Bucket)
	h.Set("X-RateLimit-Limit", strconv.Itoa(r.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
	h.Set("X-RateLimit-Reset-After", strconv.FormatFloat(r.ResetAfter.Seconds(), 'f', 3, 64))
}

// Limiter counts hits in Redis with fixed windows.
type Limiter struct {
	redis redis.UniversalClient
}

func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

// Key hides the identity: buckets are stored under md5(bucket:identity).
func Key(bucket, identity string) string {
	sum := md5.Sum([]byte(bucket + ":" + identity))
	return "derailed:ratelimit:" + hex.EncodeToString(sum[:])
}

// Hit records one hit of identity on rule. When the window is exhausted
// the Result is still returned along with ErrRateLimited.
func (l *Limiter) Hit(ctx context.Context, rule Rule, identity string) (Result, error) {
	key := Key(rule.Bucket, identity)
	res := Result{Bucket: rule.Bucket, Limit: rule.Limit}

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// Fixed window: the TTL is set by the first hit only.
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, rule.Window).Err(); err != nil {
			return res, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		// The key lost its TTL, start a new window.
		ttl = rule.Window
		l.redis.PExpire(ctx, key, ttl)
	}
	res.ResetAfter = ttl
	res.Remaining = rule.Limit - int(count)
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if count > int64(rule.Limit) {
		return res, ErrRateLimited{Bucket: rule.Bucket, RetryAfter: ttl}
	}
	return res, nil
}

// Middleware limits requests per identity. Requests with an empty
// identity are not limited. onLimit renders errors from Hit.
func (l *Limiter) Middleware(rule Rule, identity func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			res, err := l.Hit(r.Context(), rule, id)
			var limited ErrRateLimited
			if errors.As(err, &limited) {
				res.SetHeaders(w.Header())
				onLimit(w, r, err)
				return
			} else if err != nil {
				// Fail open when redis is down
				next.ServeHTTP(w, r)
				return
			}
			res.SetHeaders(w.Header())
			next.ServeHTTP(w, r)
		})
	}
}
