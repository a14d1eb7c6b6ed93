package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"blindtest/internal/game"
	"blindtest/internal/gateway"
)

func setupServer(cfg *Config, hub *gateway.Hub, registry *game.Registry) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	hub.RegisterRoutes(mux)
	setupHealthCheck(mux, hub, registry)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:         fmt.Sprintf(":%s", getEnv("PORT", firstNonEmpty(cfg.Server.Port, "8080"))),
		Handler:      handler,
		ReadTimeout:  seconds(cfg.Server.ReadTimeout, 10*time.Second),
		WriteTimeout: seconds(cfg.Server.WriteTimeout, 10*time.Second),
		IdleTimeout:  seconds(cfg.Server.IdleTimeout, 120*time.Second),
	}
}

func setupHealthCheck(mux *http.ServeMux, hub *gateway.Hub, registry *game.Registry) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		conns, _ := hub.Stats()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"service":"blindtest","connections":%d,"rooms":%d}`, conns, registry.RoomCount())
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
