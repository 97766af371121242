package relay

// Event names pushed to clients. Inbound event names live in the
// websocket gateway; these are the ones the relay itself emits.
const (
	EventPresence     = "presence"
	EventPeerJoined   = "call:peer-joined"
	EventPeerLeft     = "call:peer-left"
	EventChatMessage  = "chat:message"
	EventTyping       = "typing"
	EventDM           = "dm:new"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
)

// Transport is the outbound half of the realtime layer. Delivery is
// fire-and-forget: implementations must not block the caller, and a
// send to a connection that has gone away is a no-op.
type Transport interface {
	// Send delivers one event to a single connection.
	Send(connectionID, event string, payload any)

	// Broadcast delivers one event to every open connection.
	Broadcast(event string, payload any)
}
