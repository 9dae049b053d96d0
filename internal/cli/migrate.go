package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/inbox/internal/db"
	"github.com/example/inbox/internal/wire"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := wire.Config().Database.Path
			if path == "" {
				var err error
				if path, err = db.GetDBPath(); err != nil {
					return fmt.Errorf("failed to get database path: %w", err)
				}
			}

			conn, err := db.Open(path)
			if err != nil {
				return err
			}
			defer conn.Close()

			before, err := db.CurrentVersion(conn)
			if err != nil {
				return err
			}
			if status {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (latest %d)\n", path, before, db.LatestVersion())
				return nil
			}

			if err := db.InitSchema(conn); err != nil {
				return err
			}
			after, err := db.CurrentVersion(conn)
			if err != nil {
				return err
			}

			if after == before {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Schema already at version %d\n", after)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Migrated %s from version %d to %d\n", path, before, after)
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Show the schema version without migrating")

	return cmd
}
