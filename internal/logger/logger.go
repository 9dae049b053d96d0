// Package logger holds the process-wide zap logger and the HTTP request
// logging middleware.
package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Log is a no-op logger until Initialize is called.
var Log *zap.Logger = zap.NewNop()

// Initialize builds a production JSON logger at the given level and installs it as Log.
func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return err
	}

	Log = zl
	return nil
}

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// RequestLogger logs one line per HTTP request after it completes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		Log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.Int("size", c.Writer.Size()),
			zap.String("request_id", c.GetString(RequestIDKey)),
		)
	}
}
