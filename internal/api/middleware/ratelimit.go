package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimit defines limits for an endpoint pattern.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RateLimiter implements fixed-window rate limiting per client IP,
// backed by Redis so limits hold across restarts.
type RateLimiter struct {
	client *redis.Client
	limits map[string]RateLimit
	logger zerolog.Logger
}

// NewRateLimiter creates a new rate limiter for the REST surface. The
// websocket path is not rate limited here; slow consumers shed frames
// at the transport instead.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		logger: logger,
		limits: map[string]RateLimit{
			"GET /presence": {120, time.Minute},
			"GET /calls/":   {120, time.Minute},
			"POST /dm/":     {60, time.Minute},
			"GET /dm":       {60, time.Minute},
			"GET /stats":    {30, time.Minute},
		},
	}
}

// Middleware enforces the configured limits.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, ok := rl.match(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		key := fmt.Sprintf("ratelimit:%s %s:%s:%d",
			r.Method, rl.pattern(r), ip, time.Now().Unix()/int64(limit.Window.Seconds()))

		count, err := rl.client.Incr(r.Context(), key).Result()
		if err != nil {
			// Redis trouble must not take the API down with it.
			rl.logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.client.Expire(r.Context(), key, limit.Window)
		}

		remaining := limit.Requests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > limit.Requests {
			w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) match(r *http.Request) (RateLimit, bool) {
	limit, ok := rl.limits[rl.pattern(r)]
	return limit, ok
}

// pattern maps a request onto a limits key: exact "METHOD /path" or
// "METHOD /prefix/" for parameterized routes.
func (rl *RateLimiter) pattern(r *http.Request) string {
	exact := r.Method + " " + r.URL.Path
	if _, ok := rl.limits[exact]; ok {
		return exact
	}
	for _, prefix := range []string{"/calls/", "/dm/"} {
		if strings.HasPrefix(r.URL.Path, prefix) && len(r.URL.Path) > len(prefix) {
			return r.Method + " " + prefix
		}
	}
	return exact
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
