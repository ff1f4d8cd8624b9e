/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diagnoclinic/apiserver/config"
	"github.com/diagnoclinic/apiserver/internal/server"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the diagnosis server",
	Long: `Starts the diagnosis server. Usage:

	diagserver server

The server stops gracefully on SIGINT or SIGTERM.
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		logger := server.NewLogger(cfg.Env, cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, cfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
		if err := srv.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
