package handlers

import (
	"net/http"
)

// PresenceResponse represents the online-users response.
type PresenceResponse struct {
	Online []string `json:"online"`
	Count  int      `json:"count"`
}

// Presence returns the current online user set. This is the same set
// the relay broadcasts over websockets on every change; the REST copy
// exists for dashboard first paint.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	online := h.relay.Sessions.Online()
	h.JSON(w, http.StatusOK, PresenceResponse{Online: online, Count: len(online)})
}

// StatsResponse represents the stats endpoint response.
type StatsResponse struct {
	Connections int   `json:"connections"`
	OnlineUsers int   `json:"online_users"`
	ActiveCalls int   `json:"active_calls"`
	TotalUsers  int64 `json:"total_users"`
	TotalCalls  int64 `json:"total_calls"`
}

// Stats returns live relay counts plus durable totals.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, err := h.db.CountUsers(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	totalCalls, err := h.db.CountCalls(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count calls")
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		Connections: h.relay.Sessions.ConnectionCount(),
		OnlineUsers: len(h.relay.Sessions.Online()),
		ActiveCalls: h.relay.Rooms.ActiveRooms(),
		TotalUsers:  totalUsers,
		TotalCalls:  totalCalls,
	})
}
