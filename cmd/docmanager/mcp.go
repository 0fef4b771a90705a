package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the document tools over MCP stdio",
		Long: `Serve the document commands as MCP tools on stdin/stdout.

Logs go to stderr because stdout carries the protocol stream. The session
runs as the local operator.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, opts, logStderr)
			if err != nil {
				return err
			}
			defer a.Close()

			logger := a.logger.Underlying()
			if err := a.announce(ctx); err != nil {
				logger.Warn("after_bootstrap hooks failed", zap.Error(err))
			}

			srv, err := mcp.NewServer(&mcp.Config{
				Name:    "docmanager",
				Version: version,
				Logger:  logger,
				Caller:  mcp.OperatorCaller(),
			}, a.commands, a.docs)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
