package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupRateLimitRouter(rdb *redis.Client, limit int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/messages", PostRateLimiter(rdb, limit, window), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// unreachableRedis returns a client that fails every command immediately, so
// the limiter's fail-open path is exercised without a server.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 10 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestPostRateLimiterNilClientPassesThrough(t *testing.T) {
	router := setupRateLimitRouter(nil, 30, time.Minute)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPostRateLimiterZeroWindowPassesThrough(t *testing.T) {
	router := setupRateLimitRouter(unreachableRedis(), 30, 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPostRateLimiterSubSecondWindow(t *testing.T) {
	router := setupRateLimitRouter(unreachableRedis(), 30, 500*time.Millisecond)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages", nil))

	// redis is down, so the limiter fails open rather than blocking posts
	require.Equal(t, http.StatusOK, rec.Code)
}
