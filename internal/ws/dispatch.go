package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/workforge/relay/internal/auth"
	"github.com/workforge/relay/internal/relay"
)

// Inbound event names. Outbound ones live in the relay package.
const (
	evAnnounce   = "announce"
	evAnnounceOK = "announce:ok"
	evCallJoin   = "call:join"
	evCallLeave  = "call:leave"
	evMembers    = "call:members"
	evChatSend   = "chat:send"
	evError      = "error"
)

const storeTimeout = 5 * time.Second

type announcePayload struct {
	Token string `json:"token"`
}

type announceOKPayload struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

type callPayload struct {
	CallID string `json:"call_id"`
}

type membersPayload struct {
	CallID  string         `json:"call_id"`
	Members []relay.Member `json:"members"`
}

type signalPayload struct {
	To      string          `json:"to"`
	CallID  string          `json:"call_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type chatPayload struct {
	CallID string `json:"call_id"`
	Text   string `json:"text"`
}

type typingPayload struct {
	To string `json:"to"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// dispatch routes one inbound frame. It runs on the connection's read
// goroutine, so per-connection handling is sequential and in order.
func (g *Gateway) dispatch(c *client, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		g.sendError(c, "malformed message")
		return
	}

	if env.Event == evAnnounce {
		g.handleAnnounce(c, env.Data)
		return
	}

	// Everything else requires an announced identity.
	if c.userID == "" {
		g.sendError(c, "announce required")
		return
	}

	switch env.Event {
	case evCallJoin:
		g.handleCallJoin(c, env.Data)
	case evCallLeave:
		g.handleCallLeave(c, env.Data)
	case relay.EventOffer:
		g.handleSignal(c, relay.KindOffer, env.Data)
	case relay.EventAnswer:
		g.handleSignal(c, relay.KindAnswer, env.Data)
	case relay.EventICECandidate:
		g.handleSignal(c, relay.KindICECandidate, env.Data)
	case evChatSend:
		g.handleChat(c, env.Data)
	case relay.EventTyping:
		g.handleTyping(c, env.Data)
	default:
		g.sendError(c, "unknown event: "+env.Event)
	}
}

func (g *Gateway) handleAnnounce(c *client, data json.RawMessage) {
	var p announcePayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(c, "malformed announce payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	user, err := g.resolver.Resolve(ctx, p.Token)
	if err != nil {
		var authErr *auth.Error
		if errors.As(err, &authErr) {
			// Refused connections carry no identity and get closed.
			g.sendError(c, authErr.Error())
			c.close()
			return
		}
		// A store hiccup is not a refusal: the connection stays open so
		// the client can retry the announce.
		g.log.Error().Err(err).Str("connection_id", c.id).Msg("token resolution failed")
		g.sendError(c, "authentication unavailable")
		return
	}

	if err := g.relay.Sessions.Register(c.id, user.ID.String()); err != nil {
		g.sendError(c, err.Error())
		return
	}
	c.userID = user.ID.String()
	c.userName = user.Name

	g.Send(c.id, evAnnounceOK, announceOKPayload{UserID: c.userID, Name: c.userName})
}

func (g *Gateway) handleCallJoin(c *client, data json.RawMessage) {
	var p callPayload
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		g.sendError(c, "call_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	g.relay.Rooms.Join(ctx, p.CallID, c.userID, c.id)
	g.Send(c.id, evMembers, membersPayload{CallID: p.CallID, Members: g.relay.Rooms.MembersOf(p.CallID)})
}

func (g *Gateway) handleCallLeave(c *client, data json.RawMessage) {
	var p callPayload
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		g.sendError(c, "call_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	g.relay.Rooms.Leave(ctx, p.CallID, c.userID)
}

func (g *Gateway) handleSignal(c *client, kind relay.SignalKind, data json.RawMessage) {
	var p signalPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(c, "malformed signal payload")
		return
	}

	if err := g.relay.Signals.Relay(kind, c.userID, p.To, p.CallID, p.Payload); err != nil {
		g.sendError(c, err.Error())
	}
}

func (g *Gateway) handleChat(c *client, data json.RawMessage) {
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(c, "malformed chat payload")
		return
	}
	if p.CallID == "" {
		g.sendError(c, "call_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if _, err := g.relay.Chat.Send(ctx, p.CallID, c.userID, c.userName, p.Text); err != nil {
		g.sendError(c, err.Error())
	}
}

func (g *Gateway) handleTyping(c *client, data json.RawMessage) {
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(c, "malformed typing payload")
		return
	}

	if err := g.relay.Signals.Typing(c.userID, p.To); err != nil {
		g.sendError(c, err.Error())
	}
}

func (g *Gateway) sendError(c *client, message string) {
	data, err := encode(evError, errorPayload{Message: message})
	if err != nil {
		return
	}
	c.enqueue(data)
}
