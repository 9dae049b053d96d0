package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/inbox/internal/config"
	"github.com/example/inbox/internal/db"
	"github.com/example/inbox/internal/identity"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var identityFlag, dbPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize inbox in the current directory",
		Long: `Write .inbox/config.yaml in the current directory and create the database
with the required schema.

Examples:
  inbox init --identity alice
  inbox init --identity alice --db ./data/inbox.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			if _, err := os.Stat(config.Path(dir)); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", config.Path(dir))
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to check config: %w", err)
			}

			cfg := config.Default()
			if identityFlag != "" {
				id, err := identity.Parse(identityFlag)
				if err != nil {
					return err
				}
				cfg.Identity = id
			}
			cfg.Database.Path = dbPath
			if cfg.Database.Path == "" {
				if cfg.Database.Path, err = db.GetDBPath(); err != nil {
					return fmt.Errorf("failed to get database path: %w", err)
				}
			}

			if err := config.Save(dir, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Config written to %s\n", config.Path(dir))

			conn, err := db.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.InitSchema(conn); err != nil {
				return fmt.Errorf("failed to initialize schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Database initialized at %s\n", cfg.Database.Path)

			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "Next steps:")
			fmt.Fprintln(cmd.OutOrStdout(), "  inbox conversation start <recipient> -m \"hello\"")
			fmt.Fprintln(cmd.OutOrStdout(), "  inbox serve")

			return nil
		},
	}

	cmd.Flags().StringVar(&identityFlag, "identity", "", "Default identity for CLI commands")
	cmd.Flags().StringVar(&dbPath, "db", "", "Database file (default ~/.inbox/inbox.db)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")

	return cmd
}
