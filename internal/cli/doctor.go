package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/inbox/internal/wire"
)

// DoctorCmd returns the doctor command
func DoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor [conversation-id...]",
		Short: "Check and repair unread counters",
		Long: `Recompute unread counters from message read state and repair any that drifted.

With no arguments every conversation of the acting identity is checked.

Examples:
  inbox doctor CONV-001 CONV-007
  inbox --as alice doctor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var actor string
			if len(args) == 0 {
				var err error
				actor, err = CurrentActor()
				if err != nil {
					return err
				}
			}
			return wire.ConversationAdapterWithOutput(cmd.OutOrStdout()).Doctor(NewContext(actor), actor, args)
		},
	}
}
