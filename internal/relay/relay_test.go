package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/workforge/relay/internal/models"
)

// fakeTransport records every send and broadcast.
type fakeTransport struct {
	mu         sync.Mutex
	sent       []sentMessage
	broadcasts []sentMessage
}

type sentMessage struct {
	Conn    string
	Event   string
	Payload any
}

func (t *fakeTransport) Send(connectionID, event string, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentMessage{Conn: connectionID, Event: event, Payload: payload})
}

func (t *fakeTransport) Broadcast(event string, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcasts = append(t.broadcasts, sentMessage{Event: event, Payload: payload})
}

func (t *fakeTransport) sentTo(connectionID string) []sentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []sentMessage
	for _, m := range t.sent {
		if m.Conn == connectionID {
			out = append(out, m)
		}
	}
	return out
}

func (t *fakeTransport) lastBroadcast(tb testing.TB) sentMessage {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.broadcasts) == 0 {
		tb.Fatal("no broadcasts recorded")
	}
	return t.broadcasts[len(t.broadcasts)-1]
}

func (t *fakeTransport) broadcastCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.broadcasts)
}

// fakeStore implements the relay's Store with in-memory slices and
// optional injected failures.
type fakeStore struct {
	mu       sync.Mutex
	appended []models.Attendance
	closed   []models.Attendance
	chat     map[string][]models.ChatEntry

	failAttendance bool
	failChat       bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{chat: make(map[string][]models.ChatEntry)}
}

func (s *fakeStore) AppendAttendance(ctx context.Context, callID, userID string, joinedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAttendance {
		return errors.New("store unreachable")
	}
	s.appended = append(s.appended, models.Attendance{CallID: callID, UserID: userID, JoinedAt: joinedAt})
	return nil
}

func (s *fakeStore) CloseAttendance(ctx context.Context, callID, userID string, leftAt time.Time, durationMinutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAttendance {
		return errors.New("store unreachable")
	}
	s.closed = append(s.closed, models.Attendance{
		CallID:          callID,
		UserID:          userID,
		LeftAt:          &leftAt,
		DurationMinutes: &durationMinutes,
	})
	return nil
}

func (s *fakeStore) AppendChatMessage(ctx context.Context, entry *models.ChatEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failChat {
		return errors.New("store unreachable")
	}
	s.chat[entry.CallID] = append(s.chat[entry.CallID], *entry)
	return nil
}

func (s *fakeStore) GetChatHistory(ctx context.Context, callID string) ([]models.ChatEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatEntry(nil), s.chat[callID]...), nil
}

func (s *fakeStore) closedRecords() []models.Attendance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Attendance(nil), s.closed...)
}

func (s *fakeStore) appendedRecords() []models.Attendance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Attendance(nil), s.appended...)
}

func newTestRelay(t *testing.T) (*Relay, *fakeTransport, *fakeStore) {
	t.Helper()
	tr := &fakeTransport{}
	st := newFakeStore()
	return New(tr, st, zerolog.Nop()), tr, st
}

// waitFor polls until cond is true or the deadline passes; detached
// persistence writes land on their own goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func onlineSet(t *testing.T, m sentMessage) []string {
	t.Helper()
	p, ok := m.Payload.(PresencePayload)
	if !ok {
		t.Fatalf("expected PresencePayload, got %T", m.Payload)
	}
	return p.Online
}

func TestHandleDisconnectCleansUpEverything(t *testing.T) {
	rel, tr, st := newTestRelay(t)
	ctx := context.Background()

	if err := rel.Sessions.Register("c1", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := rel.Sessions.Register("c2", "bob"); err != nil {
		t.Fatal(err)
	}
	rel.Rooms.Join(ctx, "call-1", "alice", "c1")
	rel.Rooms.Join(ctx, "call-1", "bob", "c2")

	rel.HandleDisconnect("c1")

	if rel.Sessions.IsOnline("alice") {
		t.Error("alice should be offline after disconnect")
	}
	members := rel.Rooms.MembersOf("call-1")
	if len(members) != 1 || members[0].UserID != "bob" {
		t.Errorf("expected only bob in room, got %v", members)
	}

	// Presence rebroadcast reflects the removal.
	online := onlineSet(t, tr.lastBroadcast(t))
	if len(online) != 1 || online[0] != "bob" {
		t.Errorf("expected presence {bob}, got %v", online)
	}

	// The attendance close is detached from the cleanup path.
	waitFor(t, func() bool { return len(st.closedRecords()) == 1 })
	rec := st.closedRecords()[0]
	if rec.CallID != "call-1" || rec.UserID != "alice" {
		t.Errorf("unexpected closed attendance: %+v", rec)
	}

	// Bob was told alice left.
	var sawLeft bool
	for _, m := range tr.sentTo("c2") {
		if m.Event == EventPeerLeft {
			sawLeft = true
		}
	}
	if !sawLeft {
		t.Error("remaining member did not receive peer-left event")
	}
}


func TestHandleDisconnectUnknownConnection(t *testing.T) {
	rel, tr, _ := newTestRelay(t)

	rel.HandleDisconnect("never-seen")

	if tr.broadcastCount() != 0 {
		t.Error("unknown connection should not trigger a presence broadcast")
	}
}
