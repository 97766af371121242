package relay

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/workforge/relay/internal/metrics"
)

// AttendanceStore is the durable side of call membership, owned by the
// external store. Both writes are best-effort from the relay's point of
// view: a failure is logged and counted but never rolls back the
// in-memory transition.
type AttendanceStore interface {
	AppendAttendance(ctx context.Context, callID, userID string, joinedAt time.Time) error
	CloseAttendance(ctx context.Context, callID, userID string, leftAt time.Time, durationMinutes int) error
}

// Member is one currently joined participant of a call room.
type Member struct {
	UserID       string `json:"user_id"`
	ConnectionID string `json:"connection_id"`
}

// PeerEvent is the body of call:peer-joined and call:peer-left
// notifications sent to the other members of a room.
type PeerEvent struct {
	CallID    string `json:"call_id"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"ts"` // Unix ms
}

type attendance struct {
	connectionID string
	joinedAt     time.Time
}

// Rooms tracks live call membership. State is memory-resident and lost
// on restart; join/leave timestamps are additionally written through to
// the attendance store because they feed time reports.
type Rooms struct {
	mu    sync.Mutex
	calls map[string]map[string]*attendance // callID -> userID -> record

	store     AttendanceStore
	transport Transport
	log       zerolog.Logger
	now       func() time.Time
}

// NewRooms creates an empty room manager.
func NewRooms(store AttendanceStore, tr Transport, log zerolog.Logger) *Rooms {
	return &Rooms{
		calls:     make(map[string]map[string]*attendance),
		store:     store,
		transport: tr,
		log:       log.With().Str("component", "rooms").Logger(),
		now:       time.Now,
	}
}

// Join adds userID to the call room. Rejoining while already a member
// is idempotent: the join timestamp is kept and nothing is persisted or
// announced again, though the attendance is re-pointed at the new
// connection so a fresh tab takes over room delivery.
func (r *Rooms) Join(ctx context.Context, callID, userID, connectionID string) {
	r.mu.Lock()
	room := r.calls[callID]
	if room == nil {
		room = make(map[string]*attendance)
		r.calls[callID] = room
	}
	if rec, ok := room[userID]; ok {
		rec.connectionID = connectionID
		r.mu.Unlock()
		return
	}

	joinedAt := r.now()
	room[userID] = &attendance{connectionID: connectionID, joinedAt: joinedAt}
	peers := r.membersLocked(callID, userID)
	rooms := len(r.calls)
	r.mu.Unlock()

	metrics.CallRoomsActive.Set(float64(rooms))
	r.notify(peers, EventPeerJoined, PeerEvent{CallID: callID, UserID: userID, Timestamp: joinedAt.UnixMilli()})

	if err := r.store.AppendAttendance(ctx, callID, userID, joinedAt); err != nil {
		metrics.PersistenceFailures.WithLabelValues("append_attendance").Inc()
		r.log.Error().Err(err).Str("call_id", callID).Str("user_id", userID).Msg("attendance append failed")
	}
}

// Leave removes userID from the call room, computes the session
// duration and writes it through. Leaving a room the user never joined
// is a no-op.
func (r *Rooms) Leave(ctx context.Context, callID, userID string) {
	rec, peers, rooms := r.remove(callID, userID)
	if rec == nil {
		return
	}

	leftAt := r.now()
	minutes := durationMinutes(rec.joinedAt, leftAt)

	metrics.CallRoomsActive.Set(float64(rooms))
	r.notify(peers, EventPeerLeft, PeerEvent{CallID: callID, UserID: userID, Timestamp: leftAt.UnixMilli()})

	if err := r.store.CloseAttendance(ctx, callID, userID, leftAt, minutes); err != nil {
		metrics.PersistenceFailures.WithLabelValues("close_attendance").Inc()
		r.log.Error().Err(err).Str("call_id", callID).Str("user_id", userID).Msg("attendance close failed")
	}
}

// LeaveAll marks the user behind connectionID as having left every room
// that connection was joined in. It is the disconnect path: the
// in-memory transitions and peer notifications happen synchronously,
// the attendance writes are detached so transport cleanup never waits
// on the store.
func (r *Rooms) LeaveAll(connectionID string) {
	type departure struct {
		callID, userID string
		joinedAt       time.Time
		peers          []Member
	}

	r.mu.Lock()
	var gone []departure
	for callID, room := range r.calls {
		for userID, rec := range room {
			if rec.connectionID != connectionID {
				continue
			}
			delete(room, userID)
			gone = append(gone, departure{callID: callID, userID: userID, joinedAt: rec.joinedAt, peers: r.membersLocked(callID, userID)})
		}
		if len(room) == 0 {
			delete(r.calls, callID)
		}
	}
	rooms := len(r.calls)
	r.mu.Unlock()

	if len(gone) == 0 {
		return
	}
	metrics.CallRoomsActive.Set(float64(rooms))

	leftAt := r.now()
	for _, d := range gone {
		r.notify(d.peers, EventPeerLeft, PeerEvent{CallID: d.callID, UserID: d.userID, Timestamp: leftAt.UnixMilli()})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, d := range gone {
			if err := r.store.CloseAttendance(ctx, d.callID, d.userID, leftAt, durationMinutes(d.joinedAt, leftAt)); err != nil {
				metrics.PersistenceFailures.WithLabelValues("close_attendance").Inc()
				r.log.Error().Err(err).Str("call_id", d.callID).Str("user_id", d.userID).Msg("attendance close failed on disconnect")
			}
		}
	}()
}

// MembersOf returns the currently joined members of a call room.
func (r *Rooms) MembersOf(callID string) []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked(callID, "")
}

// ActiveRooms returns the number of rooms with at least one member.
func (r *Rooms) ActiveRooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// remove deletes the attendance record under the lock and returns it
// together with the remaining members and room count.
func (r *Rooms) remove(callID, userID string) (*attendance, []Member, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.calls[callID]
	rec, ok := room[userID]
	if !ok {
		return nil, nil, len(r.calls)
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(r.calls, callID)
	}
	return rec, r.membersLocked(callID, userID), len(r.calls)
}

// membersLocked lists members of callID, skipping exceptUser. Caller
// holds the lock.
func (r *Rooms) membersLocked(callID, exceptUser string) []Member {
	room := r.calls[callID]
	members := make([]Member, 0, len(room))
	for userID, rec := range room {
		if userID == exceptUser {
			continue
		}
		members = append(members, Member{UserID: userID, ConnectionID: rec.connectionID})
	}
	return members
}

func (r *Rooms) notify(members []Member, event string, payload any) {
	for _, m := range members {
		r.transport.Send(m.ConnectionID, event, payload)
	}
}

func durationMinutes(joinedAt, leftAt time.Time) int {
	return int(math.Round(leftAt.Sub(joinedAt).Minutes()))
}
