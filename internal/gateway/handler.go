package gateway

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// RegisterRoutes mounts the WebSocket endpoint and connection stats.
func (h *Hub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/ws/stats", h.handleStats)
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	if err := h.Upgrade(w, r); err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		http.Error(w, "upgrade failed", http.StatusBadRequest)
	}
}

func (h *Hub) handleStats(w http.ResponseWriter, r *http.Request) {
	conns, rooms := h.Stats()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"connections":%d,"rooms":%d}`, conns, rooms)
}
