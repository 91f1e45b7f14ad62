package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"vinemod/internal/config"
	"vinemod/internal/database/sqlitestore"
	"vinemod/internal/guardian"
	"vinemod/internal/handlers"
	"vinemod/internal/moderation"
	"vinemod/internal/notify"
	"vinemod/internal/routing"
	"vinemod/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Configure zerolog
	switch cfg.LogLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting Vine moderation service")

	if cfg.TracingEnabled {
		tp, err := tracing.Init(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracing")
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("Tracer shutdown failed")
			}
		}()
	}

	store, err := sqlitestore.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
	}
	defer store.Close()
	log.Info().Str("path", cfg.DBPath).Msg("Database opened")

	roster, err := guardian.NewRoster(cfg.GuardianRoster)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.GuardianRoster).Msg("Failed to load guardian roster")
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhook(cfg.NotifyWebhookURL)
		log.Info().Str("url", cfg.NotifyWebhookURL).Msg("Webhook notifier configured")
	}

	restricted := make([]moderation.Action, 0, len(cfg.RestrictedActions))
	for _, a := range cfg.RestrictedActions {
		restricted = append(restricted, moderation.Action(a))
	}

	service := moderation.NewService(store, notifier, moderation.Options{
		RestrictedActions: restricted,
		ReportRateLimit:   cfg.ReportRateLimit,
	})

	sweeper := moderation.NewSweeper(store, notifier, cfg.SweepInterval, cfg.SweepBatchSize)
	if err := sweeper.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start expiry sweeper")
	}
	defer sweeper.Stop()

	h := handlers.NewHandler(service, store, roster)

	handler := routing.SetupRouter(routing.Config{
		Handlers: h,
		Logger:   log.Logger,
	})

	log.Info().
		Str("address", "0.0.0.0:"+cfg.Port).
		Str("database", cfg.DBPath).
		Bool("guardians_enabled", roster.IsEnabled()).
		Msg("Starting HTTP server")

	if err := http.ListenAndServe("0.0.0.0:"+cfg.Port, handler); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
