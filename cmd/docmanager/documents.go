package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docmanager/internal/commands"
)

// runCommand bootstraps a short-lived app and prints one command's output.
func runCommand(cmd *cobra.Command, opts *rootOptions, name, arg string) error {
	a, err := bootstrap(cmd.Context(), opts, logStderr)
	if err != nil {
		return err
	}
	defer a.Close()

	out, ok := a.commands.Run(cmd.Context(), operatorCaller(), name, arg)
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [filter]",
		Short: "List stored documents, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, opts, commands.ListDocuments, strings.Join(args, " "))
		},
	}
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <source>",
		Short: "Remove every chunk of one document",
		Long: `Remove every chunk whose source matches. Matching ignores case and
the directory part of the path.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, opts, commands.RemoveDocument, strings.Join(args, " "))
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear CONFIRM",
		Short: "Delete all documents",
		Long:  `Delete every chunk in the collection. The literal argument CONFIRM is required.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, opts, commands.ClearAllDocuments, strings.Join(args, " "))
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var detailed bool
	c := &cobra.Command{
		Use:   "stats",
		Short: "Show document statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := "basic"
			if detailed {
				level = "detailed"
			}
			return runCommand(cmd, opts, commands.DocumentStatistics, level)
		},
	}
	c.Flags().BoolVar(&detailed, "detailed", false, "include per-document details")
	return c
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Run a chat message through the hooks",
		Long: `Run a message through the prompt prefix and fast reply hooks, as the
host would, and print the reply. Messages no hook answers are reported
as passed through.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), cmd, opts, strings.Join(args, " "))
		},
	}
}

func runChat(ctx context.Context, cmd *cobra.Command, opts *rootOptions, message string) error {
	a, err := bootstrap(ctx, opts, logStderr)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	prefix, err := a.hooks.PromptPrefix(ctx, message, "")
	if err != nil {
		return err
	}
	if prefix != "" {
		fmt.Fprintf(out, "[prefix] %s\n\n", prefix)
	}
	reply, ok, err := a.hooks.FastReply(ctx, message, operatorCaller())
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "(no fast reply, message passes to the agent)")
		return nil
	}
	fmt.Fprintln(out, reply)
	return nil
}
