// Package cli provides CLI commands for the inbox application.
package cli

import (
	gocontext "context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/inbox/internal/config"
	"github.com/example/inbox/internal/ctxutil"
	"github.com/example/inbox/internal/identity"
	"github.com/example/inbox/internal/logger"
	"github.com/example/inbox/internal/wire"
)

// actorFlag holds the global --as flag for the current CLI invocation.
var actorFlag string

// BindGlobalFlags registers the flags every command accepts.
func BindGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&actorFlag, "as", "", "act as this identity (overrides INBOX_USER and config)")
}

// Bootstrap loads configuration from the working directory, initializes the
// logger and hands the config to wire. Runs as the root PersistentPreRunE.
func Bootstrap(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	if err := logger.Initialize(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	wire.Configure(cfg)
	return nil
}

// CurrentActor resolves the acting identity: --as, INBOX_USER, then config.
func CurrentActor() (string, error) {
	return identity.Current(actorFlag, wire.Config().Identity)
}

// NewContext creates a context.Background() with the actor embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext(actor string) gocontext.Context {
	ctx := gocontext.Background()
	if actor != "" {
		return ctxutil.WithActorID(ctx, actor)
	}
	return ctx
}

// actorContext resolves the actor and returns it with a context carrying it.
func actorContext() (gocontext.Context, string, error) {
	actor, err := CurrentActor()
	if err != nil {
		return nil, "", err
	}
	return NewContext(actor), actor, nil
}
