package relay

import (
	"testing"

	"github.com/workforge/relay/internal/models"
)

func dmEventsTo(t *testing.T, tr *fakeTransport, conn string) []*models.DirectMessage {
	t.Helper()
	var out []*models.DirectMessage
	for _, m := range tr.sentTo(conn) {
		if m.Event == EventDM {
			out = append(out, m.Payload.(*models.DirectMessage))
		}
	}
	return out
}

func TestDeliverLiveFansOutToAllRecipientConnections(t *testing.T) {
	rel, tr, _ := newTestRelay(t)
	for _, conn := range []string{"bob-phone", "bob-laptop"} {
		if err := rel.Sessions.Register(conn, "bob"); err != nil {
			t.Fatal(err)
		}
	}
	if err := rel.Sessions.Register("alice-tab", "alice"); err != nil {
		t.Fatal(err)
	}

	rel.DMs.DeliverLive(&models.DirectMessage{
		ID: "m1", FromID: "alice", ToID: "bob", Content: "hey",
	})

	for _, conn := range []string{"bob-phone", "bob-laptop"} {
		msgs := dmEventsTo(t, tr, conn)
		if len(msgs) != 1 {
			t.Fatalf("%s received %d DMs, want 1", conn, len(msgs))
		}
		if msgs[0].Read {
			t.Errorf("%s copy should arrive unread", conn)
		}
	}

	// Sender echo arrives marked read.
	echoes := dmEventsTo(t, tr, "alice-tab")
	if len(echoes) != 1 {
		t.Fatalf("sender received %d echoes, want 1", len(echoes))
	}
	if !echoes[0].Read {
		t.Error("sender echo should be marked read")
	}
}

func TestDeliverLiveOfflineRecipientStillEchoesSender(t *testing.T) {
	rel, tr, _ := newTestRelay(t)
	if err := rel.Sessions.Register("alice-tab", "alice"); err != nil {
		t.Fatal(err)
	}

	// Must not panic or error with zero recipient connections.
	rel.DMs.DeliverLive(&models.DirectMessage{
		ID: "m2", FromID: "alice", ToID: "bob", Content: "you there?",
	})

	if len(dmEventsTo(t, tr, "alice-tab")) != 1 {
		t.Error("sender echo should be delivered even when recipient is offline")
	}
}

func TestDeliverLiveBothPartiesOffline(t *testing.T) {
	rel, tr, _ := newTestRelay(t)

	rel.DMs.DeliverLive(&models.DirectMessage{
		ID: "m3", FromID: "alice", ToID: "bob", Content: "void",
	})

	if len(tr.sent) != 0 {
		t.Error("nothing should be delivered with no open connections")
	}
}
