package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// ユーザー単位のトークンバケット。
// 認証前のリクエストはリモートIPで数える。
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now

	//しばらく見ていないキーは掃除する
	for k, v := range rl.limiters {
		if now.Sub(v.lastSeen) > 10*time.Minute {
			delete(rl.limiters, k)
		}
	}

	return e.limiter.Allow()
}

// Middleware はAuthJWTの後に置く前提（user_idで数えるため）。
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if v, ok := c.Get(CtxUserIDKey).(int64); ok && v > 0 {
				key = "user:" + strconv.FormatInt(v, 10)
			}

			if !rl.allow(key) {
				return c.JSON(http.StatusTooManyRequests, errorJSON("rate_limited"))
			}
			return next(c)
		}
	}
}
