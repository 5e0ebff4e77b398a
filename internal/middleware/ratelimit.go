package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/requestdata"
	"github.com/rememory-app/backend/internal/utils"
)

// RateLimitMiddleware enforces a fixed window of chat turns per owner.
// Counts live in redis so the limit holds across instances; when redis is
// not configured an in-process counter covers the single-instance case.
type RateLimitMiddleware struct {
	log         *logger.Logger
	rdb         *goredis.Client
	maxRequests int
	window      time.Duration

	mu    sync.Mutex
	local map[string]*localWindow
	nowFn func() time.Time
}

type localWindow struct {
	count   int
	resetAt time.Time
}

func NewRateLimitMiddleware(log *logger.Logger, rdb *goredis.Client) *RateLimitMiddleware {
	middlewareLog := log.With("middleware", "RateLimitMiddleware")
	maxRequests := utils.GetEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 12, middlewareLog)
	windowMs := utils.GetEnvAsInt("RATE_LIMIT_WINDOW_MS", 60000, middlewareLog)
	return &RateLimitMiddleware{
		log:         middlewareLog,
		rdb:         rdb,
		maxRequests: maxRequests,
		window:      time.Duration(windowMs) * time.Millisecond,
		local:       make(map[string]*localWindow),
		nowFn:       time.Now,
	}
}

func (rl *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		key := "ratelimit:" + rd.OwnerID.String()

		allowed, err := rl.take(c.Request.Context(), key)
		if err != nil {
			rl.log.Warn("Rate limit check failed, allowing request", "error", err.Error())
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"code":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimitMiddleware) take(ctx context.Context, key string) (bool, error) {
	if rl.rdb != nil {
		count, err := rl.rdb.Incr(ctx, key).Result()
		if err != nil {
			return false, err
		}
		if count == 1 {
			if err := rl.rdb.Expire(ctx, key, rl.window).Err(); err != nil {
				return false, err
			}
		}
		return count <= int64(rl.maxRequests), nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.nowFn()
	w, ok := rl.local[key]
	if !ok || now.After(w.resetAt) {
		rl.local[key] = &localWindow{count: 1, resetAt: now.Add(rl.window)}
		return true, nil
	}
	w.count++
	return w.count <= rl.maxRequests, nil
}
