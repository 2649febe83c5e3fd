package middlewares

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimiter counts requests per business in fixed Redis windows.
// Requests without X-Business-Id are counted per client IP.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	logger *logrus.Logger
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

func (rl *RateLimiter) key(c *gin.Context) string {
	if businessId := strings.TrimSpace(c.GetHeader(HeaderBusinessId)); businessId != "" {
		return "ratelimit:business:" + businessId
	}
	return "ratelimit:ip:" + c.ClientIP()
}

// RateLimitMiddleware fails open: when Redis is unavailable the request is served and logged.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	ctx := c.Request.Context()
	key := rl.key(c)

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		rl.logFailure(key, "incr", err)
		c.Next()
		return
	}
	// First hit in the window starts the expiry.
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			rl.logFailure(key, "expire", err)
		}
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}
	c.Next()
}

func (rl *RateLimiter) logFailure(key string, op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.WithFields(logrus.Fields{
		"field": "ratelimit",
		"key":   key,
		"op":    op,
	}).Warn("rate limiter unavailable, request allowed: " + err.Error())
}
