package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/trunov/convo/internal/app"
	"github.com/trunov/convo/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

func initSentry(sc *config.SentryConfig) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:         sc.SentryDSN,
		Environment: sc.Environment,
		Release:     version,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := initSentry(&cfg.Sentry); err != nil {
			log.Error().Err(err).Msg("sentry init failed")
			return err
		}
		// Flush buffered events before the program terminates.
		defer sentry.Flush(2 * time.Second)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := app.New(ctx, cfg)
		if err != nil {
			log.Error().Err(err).Msg("failed initializing app")
			return err
		}

		if err := a.Run(ctx); err != nil {
			log.Error().Err(err).Msg("server stopped with error")
			return err
		}
		return nil
	},
}
