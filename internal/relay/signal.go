package relay

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/workforge/relay/internal/metrics"
)

// SignalKind enumerates the WebRTC negotiation messages the relay
// forwards. Payloads are opaque; the relay never inspects SDP or
// candidate contents.
type SignalKind string

const (
	KindOffer        SignalKind = EventOffer
	KindAnswer       SignalKind = EventAnswer
	KindICECandidate SignalKind = EventICECandidate
)

// SignalMessage is the envelope delivered to the addressed connection.
type SignalMessage struct {
	From    string          `json:"from"`
	CallID  string          `json:"call_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// TypingEvent is forwarded to a single recipient, same contract as
// signaling: at most once, dropped when offline.
type TypingEvent struct {
	From string `json:"from"`
}

// Signals forwards offer/answer/candidate messages between exactly two
// participants. Delivery is at-most-once: an offline or unknown target
// means the message is dropped, not queued.
type Signals struct {
	sessions  *Sessions
	transport Transport
	log       zerolog.Logger
}

// NewSignals creates the signaling relay on top of the session registry.
func NewSignals(sessions *Sessions, tr Transport, log zerolog.Logger) *Signals {
	return &Signals{
		sessions:  sessions,
		transport: tr,
		log:       log.With().Str("component", "signals").Logger(),
	}
}

// Relay forwards one signaling message. `to` may be a raw connection id
// or a user id; a user id resolves through the session registry to that
// user's most recently bound connection — signaling is always
// single-connection addressed, never multi-device fan-out. Membership
// of callID is carried as a hint and deliberately not enforced.
func (s *Signals) Relay(kind SignalKind, from, to, callID string, payload json.RawMessage) error {
	if to == "" {
		return &ValidationError{Field: "to", Reason: "required"}
	}
	if len(payload) == 0 {
		return &ValidationError{Field: "payload", Reason: "required"}
	}

	target, ok := s.resolve(to)
	if !ok {
		metrics.SignalsDropped.WithLabelValues(string(kind)).Inc()
		s.log.Debug().Str("kind", string(kind)).Str("to", to).Str("call_id", callID).Msg("signal target offline, dropped")
		return nil
	}

	metrics.SignalsRelayed.WithLabelValues(string(kind)).Inc()
	s.transport.Send(target, string(kind), SignalMessage{From: from, CallID: callID, Payload: payload})
	return nil
}

// Typing forwards a typing indicator to a single recipient.
func (s *Signals) Typing(from, to string) error {
	if to == "" {
		return &ValidationError{Field: "to", Reason: "required"}
	}
	target, ok := s.resolve(to)
	if !ok {
		return nil
	}
	s.transport.Send(target, EventTyping, TypingEvent{From: from})
	return nil
}

// resolve maps an address to one live connection id. A live connection
// id wins; otherwise the address is treated as a user id and the
// newest of that user's connections is picked.
func (s *Signals) resolve(to string) (string, bool) {
	if s.sessions.HasConnection(to) {
		return to, true
	}
	conns := s.sessions.ConnectionsFor(to)
	if len(conns) == 0 {
		return "", false
	}
	return conns[len(conns)-1], true
}
