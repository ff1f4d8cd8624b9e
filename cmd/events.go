/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diagnoclinic/apiserver/config"
	"github.com/diagnoclinic/apiserver/internal/events"
	"github.com/diagnoclinic/apiserver/internal/mq"
	"github.com/diagnoclinic/apiserver/internal/server"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events published by the server",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log every event published on MQ_CHANNEL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := server.NewLogger(cfg.Env, cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg)
		if err != nil {
			return err
		}
		publisher := events.NewPublisher(queue, cfg.MQChannel)
		if publisher == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer publisher.Close()

		logger.Info().Str("channel", cfg.MQChannel).Msg("watching events")
		err = publisher.Watch(ctx, func(ctx context.Context, event events.Event) error {
			logger.Info().
				Str("type", event.Type).
				Str("actor", event.Actor).
				Str("subject", event.Subject).
				Time("at", event.At).
				Interface("payload", event.Payload).
				Msg("event")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
