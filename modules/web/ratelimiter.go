package web

import (
	"fmt"
	"net/http"
	"time"

	"elearn_backend/helpers/logs"
	"elearn_backend/modules/students/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimiter is a fixed-window counter in Redis. It lets requests through when Redis
// is not configured or fails.
type RateLimiter struct {
	redisClient *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{redisClient: client}
}

// Limit allows limit requests per window for each student, or client IP when
// unauthenticated. A limit of zero or less disables the check.
func (rl *RateLimiter) Limit(keySuffix string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.redisClient == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if v, ok := c.Get(studentKey); ok {
			subject = "student:" + v.(*models.Student).ID
		}
		key := fmt.Sprintf("rate_limit:%s:%s", keySuffix, subject)

		logger := logs.GetLogger().WithFields(logrus.Fields{
			"module":   "web",
			"function": "RateLimiter.Limit",
			"key":      key,
		})

		var incr *redis.IntCmd
		var ttlCmd *redis.DurationCmd
		_, err := rl.redisClient.TxPipelined(c, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(c, key)
			ttlCmd = pipe.TTL(c, key)
			return nil
		})
		if err != nil {
			logger.WithError(err).Warn("Rate limiter unavailable, letting request through")
			c.Next()
			return
		}
		count := incr.Val()
		ttl := ttlCmd.Val()

		// a fresh counter, or one whose expiry was never set
		if ttl < 0 {
			if err := rl.redisClient.Expire(c, key, window).Err(); err != nil {
				logger.WithError(err).Warn("Failed to set rate limit window")
			}
			ttl = window
		}

		if count > int64(limit) {
			c.Header("Retry-After", fmt.Sprintf("%.0f", ttl.Seconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":    false,
				"message":    "Too many requests",
				"retryAfter": fmt.Sprintf("%.0f seconds", ttl.Seconds()),
			})
			return
		}
		c.Next()
	}
}
