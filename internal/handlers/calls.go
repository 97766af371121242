package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workforge/relay/internal/models"
)

// ChatHistoryResponse represents the call transcript response.
type ChatHistoryResponse struct {
	CallID   string             `json:"call_id"`
	Messages []models.ChatEntry `json:"messages"`
}

// AttendanceResponse represents the call attendance response.
type AttendanceResponse struct {
	CallID  string              `json:"call_id"`
	Records []models.Attendance `json:"records"`
}

// GetChatHistory returns a call's durable transcript in append order.
// This reads the store; messages lost to a persistence hiccup while
// being broadcast live will not appear here.
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "id")
	if callID == "" {
		h.Error(w, http.StatusBadRequest, "call id is required")
		return
	}

	messages, err := h.relay.Chat.History(r.Context(), callID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch transcript")
		return
	}
	if messages == nil {
		messages = []models.ChatEntry{}
	}

	h.JSON(w, http.StatusOK, ChatHistoryResponse{CallID: callID, Messages: messages})
}

// GetAttendance returns the persisted join/leave records for a call.
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "id")
	if callID == "" {
		h.Error(w, http.StatusBadRequest, "call id is required")
		return
	}

	records, err := h.db.GetAttendance(r.Context(), callID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if records == nil {
		records = []models.Attendance{}
	}

	h.JSON(w, http.StatusOK, AttendanceResponse{CallID: callID, Records: records})
}
