package middleware

import (
	"sync"

	"gradient/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware gives every client IP its own token bucket of rps
// requests per second with the given burst. rps <= 0 disables limiting.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}

	var limiters sync.Map // client IP -> *rate.Limiter
	return func(c *gin.Context) {
		v, ok := limiters.Load(c.ClientIP())
		if !ok {
			v, _ = limiters.LoadOrStore(c.ClientIP(), rate.NewLimiter(rate.Limit(rps), burst))
		}
		if !v.(*rate.Limiter).Allow() {
			utils.TrackError("http", "rate_limited")
			utils.TooManyRequests(c, "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
