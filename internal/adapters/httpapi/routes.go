// Package httpapi exposes the conversation service as a JSON API over gin.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/inbox/internal/logger"
	"github.com/example/inbox/internal/metrics"
	"github.com/example/inbox/internal/ports/primary"
)

// Config configures the router.
type Config struct {
	Service primary.ConversationService

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Metrics records request latency and rejections; nil disables it.
	Metrics *metrics.HTTPMetrics

	UnreadRPS   float64
	UnreadBurst int
}

// Server is the configured gin engine plus the resources it owns.
type Server struct {
	Engine  *gin.Engine
	limiter *limiterPool
}

// Close releases background resources held by the router.
func (s *Server) Close() {
	s.limiter.Stop()
}

// NewServer builds the API router.
//
//	POST   /v1/conversations               find-or-create, optionally with a first message
//	GET    /v1/conversations               caller's inbox, newest activity first
//	GET    /v1/conversations/:id           open (marks read)
//	POST   /v1/conversations/:id/messages  send
//	DELETE /v1/conversations/:id           delete
//	GET    /v1/unread                      total unread (rate limited)
//	GET    /healthz
//	GET    /metrics
func NewServer(cfg Config) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), logger.RequestLogger())
	if cfg.Metrics != nil {
		engine.Use(observe(cfg.Metrics))
	}

	handlers := NewHandlers(cfg.Service)
	pool := newLimiterPool(cfg.UnreadRPS, cfg.UnreadBurst)

	engine.GET("/healthz", handlers.HandleHealth)
	if cfg.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := engine.Group("/v1", requireIdentity())
	RegisterRoutes(v1, handlers, rateLimit(pool, cfg.Metrics))

	return &Server{Engine: engine, limiter: pool}
}

// RegisterRoutes registers the conversation routes on rg. limit guards the
// unread polling endpoint.
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers, limit gin.HandlerFunc) {
	conversations := rg.Group("/conversations")
	{
		conversations.POST("", handlers.HandleStart)
		conversations.GET("", handlers.HandleList)
		conversations.GET("/:id", handlers.HandleOpen)
		conversations.POST("/:id/messages", handlers.HandleSend)
		conversations.DELETE("/:id", handlers.HandleDelete)
	}

	rg.GET("/unread", limit, handlers.HandleUnread)
}
