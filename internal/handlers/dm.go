package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/workforge/relay/internal/api/middleware"
	"github.com/workforge/relay/internal/models"
)

// SendDMRequest represents the send DM request body.
type SendDMRequest struct {
	Content string `json:"content"`
}

// SendDMResponse represents the send DM response.
type SendDMResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
	Delivered bool   `json:"delivered"` // recipient had an open connection
}

// DMListResponse represents the DM list response.
type DMListResponse struct {
	Messages []models.DirectMessage `json:"messages"`
}

// SendDM persists a direct message and attaches best-effort live
// delivery: all of the recipient's open connections get it unread, the
// sender's own connections get a read echo. An offline recipient still
// gets the durable copy through GetDMs.
func (h *Handler) SendDM(w http.ResponseWriter, r *http.Request) {
	sender := middleware.GetUserFromContext(r.Context())
	if sender == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid recipient ID format")
		return
	}

	target, err := h.db.GetUserByID(r.Context(), targetID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if target == nil {
		h.Error(w, http.StatusNotFound, "recipient not found")
		return
	}

	var req SendDMRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		h.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > 8192 {
		h.Error(w, http.StatusUnprocessableEntity, "content too long (max 8192 bytes)")
		return
	}

	dm := &models.DirectMessage{
		FromID:  sender.ID.String(),
		ToID:    target.ID.String(),
		Content: req.Content,
	}

	if err := h.redis.StoreDM(r.Context(), dm); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	h.relay.DMs.DeliverLive(dm)

	h.JSON(w, http.StatusCreated, SendDMResponse{
		ID:        dm.ID,
		Timestamp: dm.Timestamp,
		Delivered: h.relay.Sessions.IsOnline(dm.ToID),
	})
}

// GetDMs handles fetching recent direct messages for the
// authenticated user.
func (h *Handler) GetDMs(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messages, err := h.redis.GetDMsForUser(r.Context(), user.ID.String(), 100)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	h.JSON(w, http.StatusOK, DMListResponse{Messages: messages})
}
