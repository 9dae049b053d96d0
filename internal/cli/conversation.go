package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/inbox/internal/wire"
)

// ConversationCmd returns the conversation command
func ConversationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversation",
		Aliases: []string{"conv"},
		Short:   "Start, read and manage conversations",
		Long: `Conversations are threads between two identities, optionally scoped
to a topic such as a listing. The acting identity comes from --as,
INBOX_USER, or identity in .inbox/config.yaml.`,
	}

	cmd.AddCommand(conversationStartCmd())
	cmd.AddCommand(conversationSendCmd())
	cmd.AddCommand(conversationOpenCmd())
	cmd.AddCommand(conversationShowCmd())
	cmd.AddCommand(conversationDeleteCmd())
	cmd.AddCommand(conversationListCmd())

	return cmd
}

func conversationStartCmd() *cobra.Command {
	var topic, message string

	cmd := &cobra.Command{
		Use:   "start <recipient>",
		Short: "Find or create a conversation with a recipient",
		Long: `Find the conversation with a recipient (and topic), creating it if needed.
With --message the message is posted as well.

Examples:
  inbox conversation start bob --topic listing-42
  inbox --as alice conversation start bob -m "Is this still available?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := actorContext()
			if err != nil {
				return err
			}
			return wire.ConversationAdapterWithOutput(cmd.OutOrStdout()).Start(ctx, actor, args[0], topic, message)
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic reference (e.g. a listing ID)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message to send")

	return cmd
}

func conversationSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation-id> <message>",
		Short: "Send a message to a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateConversationID(args[0]); err != nil {
				return err
			}
			ctx, actor, err := actorContext()
			if err != nil {
				return err
			}
			return wire.ConversationAdapterWithOutput(cmd.OutOrStdout()).Send(ctx, actor, args[0], args[1])
		},
	}
}

func conversationOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <conversation-id>",
		Short: "Show a conversation and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateConversationID(args[0]); err != nil {
				return err
			}
			ctx, actor, err := actorContext()
			if err != nil {
				return err
			}
			return wire.ConversationAdapterWithOutput(cmd.OutOrStdout()).Open(ctx, actor, args[0])
		},
	}
}

func conversationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show a conversation without marking it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateConversationID(args[0]); err != nil {
				return err
			}
			ctx, actor, err := actorContext()
			if err != nil {
				return err
			}
			return wire.ConversationAdapterWithOutput(cmd.OutOrStdout()).Show(ctx, actor, args[0])
		},
	}
}

func conversationDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Permanently delete a conversation and its messages",
		Long: `Permanently delete a conversation and all of its messages.
There is no recovery. Requires --force.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateConversationID(args[0]); err != nil {
				return err
			}
			if !force {
				return errForceRequired("delete " + args[0])
			}
			ctx, actor, err := actorContext()
			if err != nil {
				return err
			}
			return wire.ConversationAdapterWithOutput(cmd.OutOrStdout()).Delete(ctx, actor, args[0])
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm permanent deletion")

	return cmd
}

func conversationListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := actorContext()
			if err != nil {
				return err
			}
			return wire.ConversationAdapterWithOutput(cmd.OutOrStdout()).List(ctx, actor, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum conversations to show")

	return cmd
}
