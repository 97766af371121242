package relay

import (
	"github.com/rs/zerolog"

	"github.com/workforge/relay/internal/metrics"
	"github.com/workforge/relay/internal/models"
)

// DMs attaches best-effort live delivery to direct messages that the
// CRUD layer has already persisted. Unlike signaling this is fan-out:
// every open connection of the recipient gets the message.
type DMs struct {
	sessions  *Sessions
	transport Transport
	log       zerolog.Logger
}

// NewDMs creates the direct-message delivery component.
func NewDMs(sessions *Sessions, tr Transport, log zerolog.Logger) *DMs {
	return &DMs{
		sessions:  sessions,
		transport: tr,
		log:       log.With().Str("component", "dm").Logger(),
	}
}

// DeliverLive pushes msg to all of the recipient's connections marked
// unread, and echoes it to the sender's own connections marked read so
// their UI updates without a refetch. A recipient with no open
// connections is simply skipped; the durable store remains the
// authoritative read path.
func (d *DMs) DeliverLive(msg *models.DirectMessage) {
	recipients := d.sessions.ConnectionsFor(msg.ToID)
	if len(recipients) == 0 {
		metrics.DMsSkipped.Inc()
		d.log.Debug().Str("message_id", msg.ID).Str("to", msg.ToID).Msg("recipient offline, live delivery skipped")
	} else {
		unread := *msg
		unread.Read = false
		for _, conn := range recipients {
			d.transport.Send(conn, EventDM, &unread)
		}
		metrics.DMsDelivered.Inc()
	}

	echo := *msg
	echo.Read = true
	for _, conn := range d.sessions.ConnectionsFor(msg.FromID) {
		d.transport.Send(conn, EventDM, &echo)
	}
}
