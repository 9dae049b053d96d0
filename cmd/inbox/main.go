package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/inbox/internal/cli"
	"github.com/example/inbox/internal/db"
	"github.com/example/inbox/internal/logger"
	"github.com/example/inbox/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "inbox",
		Short:   "inbox - conversations and unread counts between users",
		Version: version.String(),
		Long: `inbox stores two-party conversations, optionally scoped to a topic such
as a listing, and keeps a per-participant unread counter for badge display.`,
		SilenceUsage:      true,
		PersistentPreRunE: cli.Bootstrap,
	}
	cli.BindGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.ConversationCmd())
	rootCmd.AddCommand(cli.UnreadCmd())
	rootCmd.AddCommand(cli.DoctorCmd())

	// Operations
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MigrateCmd())

	err := rootCmd.Execute()
	_ = logger.Log.Sync()
	_ = db.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
