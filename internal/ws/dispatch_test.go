package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/workforge/relay/internal/auth"
	"github.com/workforge/relay/internal/models"
	"github.com/workforge/relay/internal/relay"
)

// fakeResolver accepts one known token. A non-nil failWith is returned
// once, before any token check, to simulate a store outage.
type fakeResolver struct {
	user     *models.User
	failWith error
}

func (r *fakeResolver) Resolve(ctx context.Context, token string) (*models.User, error) {
	if r.failWith != nil {
		err := r.failWith
		r.failWith = nil
		return nil, err
	}
	if token == "good-token" {
		return r.user, nil
	}
	return nil, &auth.Error{Reason: "unknown token"}
}

// nullStore satisfies relay.Store for gateway tests.
type nullStore struct{}

func (nullStore) AppendAttendance(ctx context.Context, callID, userID string, joinedAt time.Time) error {
	return nil
}

func (nullStore) CloseAttendance(ctx context.Context, callID, userID string, leftAt time.Time, durationMinutes int) error {
	return nil
}

func (nullStore) AppendChatMessage(ctx context.Context, entry *models.ChatEntry) error {
	return nil
}

func (nullStore) GetChatHistory(ctx context.Context, callID string) ([]models.ChatEntry, error) {
	return nil, nil
}

func newTestGateway(t *testing.T) (*Gateway, *client) {
	t.Helper()
	user := &models.User{ID: uuid.New(), Name: "Alice"}
	gw := NewGateway(&fakeResolver{user: user}, zerolog.Nop())
	rel := relay.New(gw, nullStore{}, zerolog.Nop())
	gw.Attach(rel)

	c := newClient("conn-1", nil, gw)
	gw.clients[c.id] = c
	return gw, c
}

// nextFrame pops one queued outbound frame for the client.
func nextFrame(t *testing.T, c *client) Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
		return Envelope{}
	}
}

func frame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestDispatchRequiresAnnounce(t *testing.T) {
	gw, c := newTestGateway(t)

	gw.dispatch(c, frame(t, evCallJoin, callPayload{CallID: "call-1"}))

	env := nextFrame(t, c)
	if env.Event != evError {
		t.Fatalf("expected error event, got %q", env.Event)
	}
}

func TestDispatchAnnounceSuccess(t *testing.T) {
	gw, c := newTestGateway(t)

	gw.dispatch(c, frame(t, evAnnounce, announcePayload{Token: "good-token"}))

	// The presence broadcast and the announce:ok both land in the
	// client's queue; order is broadcast first (registry side effect),
	// then the ack.
	first := nextFrame(t, c)
	if first.Event != relay.EventPresence {
		t.Fatalf("expected presence broadcast, got %q", first.Event)
	}
	second := nextFrame(t, c)
	if second.Event != evAnnounceOK {
		t.Fatalf("expected announce:ok, got %q", second.Event)
	}

	if c.userID == "" {
		t.Error("client should carry its announced identity")
	}
	if !gw.relay.Sessions.IsOnline(c.userID) {
		t.Error("announced user should be online")
	}
}

func TestDispatchAnnounceBadToken(t *testing.T) {
	gw, c := newTestGateway(t)

	gw.dispatch(c, frame(t, evAnnounce, announcePayload{Token: "wrong"}))

	env := nextFrame(t, c)
	if env.Event != evError {
		t.Fatalf("expected error event, got %q", env.Event)
	}
	if c.userID != "" {
		t.Error("failed announce must not bind an identity")
	}

	// The connection is being refused: done is signalled.
	select {
	case <-c.done:
	default:
		t.Error("connection should be shut down after auth failure")
	}
}

func TestDispatchAfterRefusedAnnounce(t *testing.T) {
	gw, c := newTestGateway(t)

	gw.dispatch(c, frame(t, evAnnounce, announcePayload{Token: "wrong"}))
	nextFrame(t, c) // refusal reason

	// Frames already buffered by the transport can still be dispatched
	// after the refusal; they must be dropped, never panic.
	gw.dispatch(c, frame(t, evCallJoin, callPayload{CallID: "call-1"}))

	select {
	case data := <-c.send:
		t.Errorf("refused connection should not queue frames, got %s", data)
	default:
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	_, c := newTestGateway(t)

	c.close()
	c.close() // idempotent

	c.enqueue([]byte(`{"event":"presence"}`))

	select {
	case data := <-c.send:
		t.Errorf("closed client should drop frames, got %s", data)
	default:
	}
}

func TestDispatchAnnounceRetryAfterResolverError(t *testing.T) {
	gw, c := newTestGateway(t)
	gw.resolver.(*fakeResolver).failWith = errors.New("store down")

	gw.dispatch(c, frame(t, evAnnounce, announcePayload{Token: "good-token"}))

	env := nextFrame(t, c)
	if env.Event != evError {
		t.Fatalf("expected error event, got %q", env.Event)
	}
	select {
	case <-c.done:
		t.Fatal("resolver outage must not shut the connection down")
	default:
	}

	// The same connection retries and authenticates.
	gw.dispatch(c, frame(t, evAnnounce, announcePayload{Token: "good-token"}))

	if env := nextFrame(t, c); env.Event != relay.EventPresence {
		t.Fatalf("expected presence broadcast, got %q", env.Event)
	}
	if env := nextFrame(t, c); env.Event != evAnnounceOK {
		t.Fatalf("expected announce:ok, got %q", env.Event)
	}
	if c.userID == "" {
		t.Error("retried announce should bind an identity")
	}
}

func TestDispatchJoinSendsMembers(t *testing.T) {
	gw, c := newTestGateway(t)
	gw.dispatch(c, frame(t, evAnnounce, announcePayload{Token: "good-token"}))
	nextFrame(t, c) // presence
	nextFrame(t, c) // announce:ok

	gw.dispatch(c, frame(t, evCallJoin, callPayload{CallID: "call-1"}))

	env := nextFrame(t, c)
	if env.Event != evMembers {
		t.Fatalf("expected members snapshot, got %q", env.Event)
	}
	var p membersPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.CallID != "call-1" || len(p.Members) != 1 {
		t.Errorf("unexpected members payload: %+v", p)
	}
}

func TestDispatchSignalValidation(t *testing.T) {
	gw, c := newTestGateway(t)
	gw.dispatch(c, frame(t, evAnnounce, announcePayload{Token: "good-token"}))
	nextFrame(t, c)
	nextFrame(t, c)

	// Missing `to` is rejected back to the sender.
	gw.dispatch(c, frame(t, relay.EventOffer, signalPayload{Payload: json.RawMessage(`{"sdp":"x"}`)}))

	env := nextFrame(t, c)
	if env.Event != evError {
		t.Fatalf("expected error event, got %q", env.Event)
	}
}

func TestDispatchUnknownEvent(t *testing.T) {
	gw, c := newTestGateway(t)
	gw.dispatch(c, frame(t, evAnnounce, announcePayload{Token: "good-token"}))
	nextFrame(t, c)
	nextFrame(t, c)

	gw.dispatch(c, frame(t, "bogus", struct{}{}))

	if env := nextFrame(t, c); env.Event != evError {
		t.Fatalf("expected error event, got %q", env.Event)
	}
}

func TestDispatchMalformedJSON(t *testing.T) {
	gw, c := newTestGateway(t)

	gw.dispatch(c, []byte("{not json"))

	if env := nextFrame(t, c); env.Event != evError {
		t.Fatalf("expected error event, got %q", env.Event)
	}
}
