// Docmanager manages the documents stored in an agent's vector memory.
//
// It serves the admin HTTP API and chat hook endpoint, runs as an MCP
// server over stdio, and exposes the same operations as local commands.
//
// Usage:
//
//	# Start the HTTP server
//	docmanager serve
//
//	# Serve MCP tools over stdio
//	docmanager mcp
//
//	# Run against a config file
//	docmanager --config ~/.config/docmanager/config.yaml stats
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docmanager/internal/commands"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "docmanager",
		Short: "Manage documents stored in vector memory",
		Long: `docmanager lists, searches, removes and clears the document chunks an
agent keeps in its vector memory.

Configuration comes from a YAML file (default ~/.config/docmanager/config.yaml)
and DOCMANAGER_* environment variables, e.g. DOCMANAGER_SERVER_PORT=8080.`,
		Version:       version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newListCmd(opts),
		newRemoveCmd(opts),
		newClearCmd(opts),
		newStatsCmd(opts),
		newChatCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "docmanager by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Plugin:     %s\n", commands.Version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
