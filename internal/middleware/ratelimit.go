package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/config"
	"github.com/stemsi/courseware-backend/internal/response"
)

// WindowCounter counts hits on a key within a fixed window.
type WindowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter implements a fixed-window limiter shared across instances.
// Requests are keyed by the authenticated user, or the client IP before
// login.
type RateLimiter struct {
	counter WindowCounter
	scope   string
	rate    int           // Requests per window
	window  time.Duration // Window length
	log     zerolog.Logger
	now     func() time.Time
}

// NewRateLimiter creates a RateLimiter (e.g., 10 requests per minute).
func NewRateLimiter(counter WindowCounter, scope string, rate int, window time.Duration, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		scope:   scope,
		rate:    rate,
		window:  window,
		log:     log.With().Str("component", "rate_limiter").Str("scope", scope).Logger(),
		now:     time.Now,
	}
}

// Middleware returns a Gin middleware that rate-limits requests.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.ClientIP()
		if claims := GetClaims(c); claims != nil {
			subject = claims.UserID.String()
		}
		if !rl.Allow(c.Request.Context(), subject) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

// Allow records one hit for subject and reports whether it is within the
// window's budget. A nil limiter allows everything.
func (rl *RateLimiter) Allow(ctx context.Context, subject string) bool {
	if rl == nil || rl.rate <= 0 {
		return true
	}
	slot := rl.now().UnixNano() / int64(rl.window)
	key := config.CacheKey.RateLimitKey(rl.scope, subject, slot)

	n, err := rl.counter.Incr(ctx, key, rl.window)
	if err != nil {
		// Fail open on counter errors.
		rl.log.Warn().Err(err).Msg("Rate limit counter unavailable")
		return true
	}
	return n <= int64(rl.rate)
}
