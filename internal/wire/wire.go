// Package wire provides dependency injection for the inbox application.
// It creates singleton services with lazy initialization.
package wire

import (
	"io"
	"log"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	cliadapter "github.com/example/inbox/internal/adapters/cli"
	"github.com/example/inbox/internal/adapters/httpapi"
	"github.com/example/inbox/internal/adapters/sqlite"
	"github.com/example/inbox/internal/app"
	"github.com/example/inbox/internal/config"
	"github.com/example/inbox/internal/db"
	"github.com/example/inbox/internal/logger"
	"github.com/example/inbox/internal/metrics"
	"github.com/example/inbox/internal/ports/primary"
)

var (
	cfg                 *config.Config
	registry            *prometheus.Registry
	httpMetrics         *metrics.HTTPMetrics
	conversationService primary.ConversationService
	once                sync.Once
)

// Configure sets the configuration used to build services.
// Must be called before the first service accessor to take effect.
func Configure(c *config.Config) {
	cfg = c
}

// Config returns the active configuration, defaults if Configure was never called.
func Config() *config.Config {
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg
}

// ConversationService returns the singleton ConversationService instance.
func ConversationService() primary.ConversationService {
	once.Do(initServices)
	return conversationService
}

// Registry returns the Prometheus registry holding every inbox collector.
func Registry() *prometheus.Registry {
	once.Do(initServices)
	return registry
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	c := Config()

	if c.Database.Path != "" {
		db.SetPath(c.Database.Path)
	}

	// Get database connection
	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(database, "inbox"),
	)
	httpMetrics = metrics.NewHTTPMetrics(registry)

	// Create repository adapters (secondary ports) - sqlite adapters with injected DB
	conversationRepo := sqlite.NewConversationRepository(database)

	// Create services (primary ports implementation)
	conversationService = app.NewConversationService(
		conversationRepo,
		metrics.NewConversationMetrics(registry),
		logger.Log.Named("conversation"),
		app.RetryPolicy{
			Attempts: c.Store.WriteRetries + 1,
			Backoff:  c.Store.RetryBackoff,
		},
	)
}

// ConversationAdapter returns a new ConversationAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func ConversationAdapter() *cliadapter.ConversationAdapter {
	return ConversationAdapterWithOutput(os.Stdout)
}

// ConversationAdapterWithOutput returns a new ConversationAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func ConversationAdapterWithOutput(out io.Writer) *cliadapter.ConversationAdapter {
	once.Do(initServices)
	return cliadapter.NewConversationAdapter(conversationService, out)
}

// HTTPServer builds the API router over the singleton service.
// The caller owns the returned server and must Close it.
func HTTPServer() *httpapi.Server {
	once.Do(initServices)
	c := Config()
	return httpapi.NewServer(httpapi.Config{
		Service:     conversationService,
		Gatherer:    registry,
		Metrics:     httpMetrics,
		UnreadRPS:   c.Limits.UnreadRPS,
		UnreadBurst: c.Limits.UnreadBurst,
	})
}
