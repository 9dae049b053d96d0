package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/example/inbox/internal/ctxutil"
	"github.com/example/inbox/internal/identity"
	"github.com/example/inbox/internal/logger"
	"github.com/example/inbox/internal/metrics"
)

// IdentityHeader carries the caller's Identity Reference, set by the upstream
// session layer. It is trusted as-is.
const IdentityHeader = "X-User-ID"

const (
	requestIDHeader = "X-Request-ID"
	actorKey        = "actor"
)

// requestID propagates X-Request-ID or assigns a fresh one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set(logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// requireIdentity rejects requests without a usable X-User-ID.
func requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := identity.Parse(c.GetHeader(IdentityHeader))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: IdentityHeader + " header is required",
				Code:  "MISSING_IDENTITY",
			})
			return
		}
		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(ctxutil.WithActorID(c.Request.Context(), actor))
		c.Next()
	}
}

// rateLimit applies the per-identity token bucket. Must run after requireIdentity.
func rateLimit(pool *limiterPool, m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !pool.Allow(c.GetString(actorKey)) {
			if m != nil {
				m.RateLimited.WithLabelValues(c.FullPath()).Inc()
			}
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "too many requests",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

// observe records request latency by route template.
func observe(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
