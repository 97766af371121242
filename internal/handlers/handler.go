package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/workforge/relay/internal/relay"
	"github.com/workforge/relay/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db    store.DataStore
	redis *store.RedisStore
	relay *relay.Relay
}

// NewHandler creates a new Handler with the given stores and relay.
func NewHandler(db store.DataStore, redis *store.RedisStore, rel *relay.Relay) *Handler {
	return &Handler{db: db, redis: redis, relay: rel}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
