package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"blindtest/internal/catalog"
	"blindtest/internal/game"
	"blindtest/internal/gateway"
	"blindtest/internal/results"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if getEnv("LOG_LEVEL", "") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	catalogURL := getEnv("CATALOG_URL", firstNonEmpty(cfg.Catalog.BaseURL, "http://localhost:9090"))
	catalogKey := os.Getenv("CATALOG_API_KEY")
	natsURL := os.Getenv("NATS_URL")

	log.Info().
		Str("catalog_url", catalogURL).
		Str("nats_url", natsURL).
		Msg("starting blindtest server")

	tracks := catalog.NewClient(catalogURL, catalogKey)

	// Results sink: NATS when configured, otherwise a logging no-op.
	var sink game.ResultsSink
	var publisher *results.Publisher
	if natsURL != "" {
		rcfg := results.DefaultJetStreamConfig()
		rcfg.URL = natsURL
		if cfg.Results.StreamName != "" {
			rcfg.StreamName = cfg.Results.StreamName
		}
		if cfg.Results.Subject != "" {
			rcfg.Subject = cfg.Results.Subject
		}
		if cfg.Results.MaxAgeHrs > 0 {
			rcfg.MaxAge = time.Duration(cfg.Results.MaxAgeHrs) * time.Hour
		}
		publisher, err = results.NewPublisher(rcfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect results publisher")
		}
		defer publisher.Close()
		sink = publisher
	} else {
		log.Warn().Msg("NATS_URL not set, game results will not be published")
		sink = results.NoopPublisher{}
	}

	hub := gateway.NewHub(gateway.DefaultConnConfig())

	clock := clockwork.NewRealClock()
	registry := game.NewRegistry(game.Deps{
		Broadcast: hub,
		Tracks:    tracks,
		Results:   sink,
		Clock:     clock,
		Config: game.Config{
			MaxPlayers:          getEnvAsInt("MAX_PLAYERS", cfg.Game.MaxPlayers),
			Countdown:           seconds(cfg.Game.CountdownSeconds, 0),
			RevealDelay:         seconds(cfg.Game.RevealSeconds, 0),
			WrongAnswerCooldown: seconds(cfg.Game.CooldownSeconds, 0),
			BuzzerWindow:        seconds(cfg.Game.BuzzerWindowSeconds, 0),
			DisconnectGrace:     seconds(cfg.Game.DisconnectGraceSecs, 0),
			EmptyRoomGrace:      seconds(cfg.Game.EmptyRoomGraceSecs, 0),
			MatchTolerance:      cfg.Game.MatchTolerance,
		},
	})

	router := gateway.NewRouter(registry, hub, clock)
	hub.SetHandler(router)

	timesync := gateway.NewTimeSync(hub, clock, seconds(cfg.Game.TimeSyncIntervalSecs, 5*time.Second))

	server := setupServer(cfg, hub, registry)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)
	go timesync.Run(ctx)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	// Give in-flight broadcasts and timers time to drain
	time.Sleep(1 * time.Second)

	log.Info().Msg("blindtest server shutdown complete")
}
