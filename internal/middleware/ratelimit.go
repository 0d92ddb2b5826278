package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// SendRateLimit applies a per-user token bucket to send endpoints.
func SendRateLimit(perSecond float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		userID := c.GetString("userID")

		mu.Lock()
		lim, ok := limiters[userID]
		if !ok {
			lim = rate.NewLimiter(rate.Limit(perSecond), burst)
			limiters[userID] = lim
		}
		mu.Unlock()

		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "sending too fast"})
			return
		}
		c.Next()
	}
}
