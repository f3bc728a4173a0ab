package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// PostRateLimiter enforces a fixed-window per-user posting limit backed by
// redis. Without redis the limiter is a no-op, and redis errors fail open so
// a cache outage never blocks chat.
func PostRateLimiter(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 || window < time.Millisecond {
			c.Next()
			return
		}

		userID := c.GetInt("userID")
		// millisecond buckets so sub-second windows stay valid divisors
		bucket := time.Now().UnixMilli() / window.Milliseconds()
		key := fmt.Sprintf("chat:rate:%d:%d", userID, bucket)

		count, err := rdb.Incr(c.Request.Context(), key).Result()
		if err != nil {
			log.Printf("rate limit check failed: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(c.Request.Context(), key, window)
		}
		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many messages, slow down"})
			return
		}
		c.Next()
	}
}
