package relay

import (
	"errors"
	"testing"
)

func TestRegisterAndOnline(t *testing.T) {
	rel, tr, _ := newTestRelay(t)

	if rel.Sessions.IsOnline("alice") {
		t.Fatal("alice should start offline")
	}

	if err := rel.Sessions.Register("c1", "alice"); err != nil {
		t.Fatal(err)
	}
	if !rel.Sessions.IsOnline("alice") {
		t.Error("alice should be online after register")
	}

	online := onlineSet(t, tr.lastBroadcast(t))
	if len(online) != 1 || online[0] != "alice" {
		t.Errorf("expected presence {alice}, got %v", online)
	}

	rel.Sessions.Unregister("c1")
	if rel.Sessions.IsOnline("alice") {
		t.Error("alice should be offline after unregister")
	}
	if got := onlineSet(t, tr.lastBroadcast(t)); len(got) != 0 {
		t.Errorf("expected empty presence set, got %v", got)
	}
}

func TestRegisterIdempotentReannounce(t *testing.T) {
	rel, tr, _ := newTestRelay(t)

	if err := rel.Sessions.Register("c1", "alice"); err != nil {
		t.Fatal(err)
	}
	before := tr.broadcastCount()

	// Same user on the same connection: allowed, no extra broadcast.
	if err := rel.Sessions.Register("c1", "alice"); err != nil {
		t.Fatal(err)
	}
	if tr.broadcastCount() != before {
		t.Error("re-announcement should not trigger a presence broadcast")
	}
}

func TestRegisterRejectsSecondIdentity(t *testing.T) {
	rel, _, _ := newTestRelay(t)

	if err := rel.Sessions.Register("c1", "alice"); err != nil {
		t.Fatal(err)
	}
	err := rel.Sessions.Register("c1", "bob")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	// The original binding survives.
	if user, _ := rel.Sessions.UserFor("c1"); user != "alice" {
		t.Errorf("binding changed to %q", user)
	}
}

func TestPresenceSetCollapsesMultipleConnections(t *testing.T) {
	rel, tr, _ := newTestRelay(t)

	for _, conn := range []string{"tab1", "tab2", "tab3"} {
		if err := rel.Sessions.Register(conn, "alice"); err != nil {
			t.Fatal(err)
		}
	}
	if err := rel.Sessions.Register("c4", "bob"); err != nil {
		t.Fatal(err)
	}

	online := onlineSet(t, tr.lastBroadcast(t))
	if len(online) != 2 {
		t.Fatalf("expected 2 distinct users, got %v", online)
	}

	// Dropping one tab keeps alice online.
	rel.Sessions.Unregister("tab2")
	if !rel.Sessions.IsOnline("alice") {
		t.Error("alice should stay online with two tabs left")
	}

	rel.Sessions.Unregister("tab1")
	rel.Sessions.Unregister("tab3")
	if rel.Sessions.IsOnline("alice") {
		t.Error("alice should be offline with all tabs closed")
	}
}

func TestConnectionsForReturnsBindOrder(t *testing.T) {
	rel, _, _ := newTestRelay(t)

	if err := rel.Sessions.Register("old", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := rel.Sessions.Register("new", "alice"); err != nil {
		t.Fatal(err)
	}

	conns := rel.Sessions.ConnectionsFor("alice")
	if len(conns) != 2 || conns[0] != "old" || conns[1] != "new" {
		t.Errorf("expected [old new], got %v", conns)
	}
}

func TestUnregisterUnknownConnectionIsNoop(t *testing.T) {
	rel, tr, _ := newTestRelay(t)

	rel.Sessions.Unregister("ghost")

	if tr.broadcastCount() != 0 {
		t.Error("unknown unregister should not broadcast")
	}
}
