// Package ws carries the relay over websockets: one long-lived
// connection per client, JSON envelopes, a single writer goroutine per
// connection. It implements the relay's Transport contract.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/workforge/relay/internal/auth"
	"github.com/workforge/relay/internal/metrics"
	"github.com/workforge/relay/internal/relay"
)

// Envelope is the wire format: a named event plus a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Gateway upgrades HTTP requests to websockets, tracks open
// connections and fans events out to them.
type Gateway struct {
	resolver auth.Resolver
	relay    *relay.Relay
	log      zerolog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

// NewGateway creates a gateway. Attach must be called with the relay
// before serving connections.
func NewGateway(resolver auth.Resolver, log zerolog.Logger) *Gateway {
	return &Gateway{
		resolver: resolver,
		log:      log.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the dashboard origin; token
			// auth happens at announce, so the origin check stays open
			// like the rest of the API surface.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Attach binds the relay the gateway dispatches into. The relay needs
// the gateway as its transport, so the two are wired in two steps.
func (g *Gateway) Attach(r *relay.Relay) {
	g.relay = r
}

// HandleWS upgrades the request and runs the connection until it closes.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	c := newClient(uuid.Must(uuid.NewV7()).String(), sock, g)

	g.mu.Lock()
	g.clients[c.id] = c
	count := len(g.clients)
	g.mu.Unlock()
	metrics.ConnectionsActive.Set(float64(count))

	g.log.Debug().Str("connection_id", c.id).Str("remote_addr", r.RemoteAddr).Msg("connection opened")

	go c.writePump()
	c.readPump() // blocks until the connection closes

	g.drop(c)
}

// drop runs the single disconnect cleanup sequence: transport
// bookkeeping first, then the relay's room/session cleanup.
func (g *Gateway) drop(c *client) {
	g.mu.Lock()
	if _, ok := g.clients[c.id]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.clients, c.id)
	count := len(g.clients)
	g.mu.Unlock()

	metrics.ConnectionsActive.Set(float64(count))
	c.close()
	g.relay.HandleDisconnect(c.id)
	g.log.Debug().Str("connection_id", c.id).Msg("connection closed")
}

// Send implements relay.Transport. Marshal failures and unknown
// connections are dropped silently; a full send buffer drops the
// message rather than block the relay.
func (g *Gateway) Send(connectionID, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		g.log.Error().Err(err).Str("event", event).Msg("payload marshal failed")
		return
	}

	g.mu.Lock()
	c, ok := g.clients[connectionID]
	g.mu.Unlock()
	if !ok {
		return
	}
	c.enqueue(data)
}

// Broadcast implements relay.Transport.
func (g *Gateway) Broadcast(event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		g.log.Error().Err(err).Str("event", event).Msg("payload marshal failed")
		return
	}

	g.mu.Lock()
	targets := make([]*client, 0, len(g.clients))
	for _, c := range g.clients {
		targets = append(targets, c)
	}
	g.mu.Unlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

// CloseAll shuts every connection down; used on server shutdown.
func (g *Gateway) CloseAll() {
	g.mu.Lock()
	targets := make([]*client, 0, len(g.clients))
	for _, c := range g.clients {
		targets = append(targets, c)
	}
	g.mu.Unlock()

	for _, c := range targets {
		g.drop(c)
	}
}

// ConnectionCount returns the number of open websocket connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

func encode(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
