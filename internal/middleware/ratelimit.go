package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/campusdocs/portal/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultRateLimitMax    = 10
	DefaultRateLimitWindow = time.Minute
)

// RateLimit enforces a fixed-window limit of max requests per client IP.
// A nil client or a redis error lets the request through.
func RateLimit(rdb *redis.Client, max int64, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	if max <= 0 {
		max = DefaultRateLimitMax
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if rdb == nil || ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		bucket := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("portal:rate_limit:%s:%s:%d", c.FullPath(), ip, bucket)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Warn("rate limit check failed", zap.String("ip", ip), zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			rdb.PExpire(ctx, key, window+time.Second)
		}

		if count > max {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
