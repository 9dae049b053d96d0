package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/inbox/internal/wire"
)

// UnreadCmd returns the unread command
func UnreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Show your total unread message count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := actorContext()
			if err != nil {
				return err
			}
			return wire.ConversationAdapterWithOutput(cmd.OutOrStdout()).Unread(ctx, actor)
		},
	}
}
