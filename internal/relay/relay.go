// Package relay implements the realtime core of Work Forge: session
// and presence bookkeeping, call rooms with persisted attendance,
// WebRTC signaling forwarding, in-call chat and live direct-message
// delivery. All state is memory-resident and owned by this process;
// the external store is write-through for audit data only.
package relay

import (
	"github.com/rs/zerolog"
)

// Store bundles the two durable collaborators the relay writes through
// to. In production this is Postgres (attendance) plus Redis
// (transcripts); tests substitute fakes.
type Store interface {
	AttendanceStore
	TranscriptStore
}

// Relay is the process root of the realtime layer. It is an explicit
// object, not a package singleton, so tests can run independent
// instances side by side.
type Relay struct {
	Sessions *Sessions
	Rooms    *Rooms
	Signals  *Signals
	Chat     *Chat
	DMs      *DMs

	log zerolog.Logger
}

// New wires the relay components onto one transport and store.
func New(tr Transport, store Store, log zerolog.Logger) *Relay {
	sessions := NewSessions(tr, log)
	rooms := NewRooms(store, tr, log)
	return &Relay{
		Sessions: sessions,
		Rooms:    rooms,
		Signals:  NewSignals(sessions, tr, log),
		Chat:     NewChat(rooms, store, tr, log),
		DMs:      NewDMs(sessions, tr, log),
		log:      log.With().Str("component", "relay").Logger(),
	}
}

// HandleDisconnect is the single cleanup path for a closed transport
// connection: leave every joined room (attendance persisted detached),
// then drop the session binding, which rebroadcasts presence.
func (r *Relay) HandleDisconnect(connectionID string) {
	r.Rooms.LeaveAll(connectionID)
	r.Sessions.Unregister(connectionID)
}
