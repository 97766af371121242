package relay

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/workforge/relay/internal/metrics"
	"github.com/workforge/relay/internal/models"
)

// TranscriptStore is the durable transcript of a call, owned by the
// external store. The durable copy is authoritative; the live broadcast
// is a delivery optimization.
type TranscriptStore interface {
	AppendChatMessage(ctx context.Context, entry *models.ChatEntry) error
	GetChatHistory(ctx context.Context, callID string) ([]models.ChatEntry, error)
}

// Chat relays in-call text messages: append to the durable transcript,
// then broadcast to everyone currently joined in the room.
type Chat struct {
	rooms     *Rooms
	store     TranscriptStore
	transport Transport
	log       zerolog.Logger
	now       func() time.Time
}

// NewChat creates the in-call chat relay.
func NewChat(rooms *Rooms, store TranscriptStore, tr Transport, log zerolog.Logger) *Chat {
	return &Chat{
		rooms:     rooms,
		store:     store,
		transport: tr,
		log:       log.With().Str("component", "chat").Logger(),
		now:       time.Now,
	}
}

// Send validates, persists and broadcasts one chat message. A failed
// transcript append is logged and counted but does not stop the live
// broadcast: participants see the message now and it may be missing
// from a later history reload, which is the accepted trade-off.
func (c *Chat) Send(ctx context.Context, callID, userID, userName, text string) (*models.ChatEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "text", Reason: "must not be empty"}
	}

	entry := &models.ChatEntry{
		ID:        ulid.Make().String(),
		CallID:    callID,
		UserID:    userID,
		UserName:  userName,
		Text:      text,
		Timestamp: c.now().UnixMilli(),
	}

	if err := c.store.AppendChatMessage(ctx, entry); err != nil {
		metrics.PersistenceFailures.WithLabelValues("append_chat").Inc()
		c.log.Error().Err(err).Str("call_id", callID).Str("message_id", entry.ID).Msg("transcript append failed, broadcasting anyway")
	}

	metrics.ChatMessages.Inc()
	for _, m := range c.rooms.MembersOf(callID) {
		c.transport.Send(m.ConnectionID, EventChatMessage, entry)
	}
	return entry, nil
}

// History returns the persisted transcript in append order. This reads
// the durable store, not live relay state.
func (c *Chat) History(ctx context.Context, callID string) ([]models.ChatEntry, error) {
	return c.store.GetChatHistory(ctx, callID)
}
