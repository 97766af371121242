package relay

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/workforge/relay/internal/metrics"
)

// PresencePayload is the body of every presence broadcast. The set is
// complete, not a diff; clients reconcile against it.
type PresencePayload struct {
	Online []string `json:"online"`
}

type session struct {
	userID   string
	boundAt  time.Time
	lastSeen time.Time
}

// Sessions maps connection ids to announced user ids and derives the
// online set from that mapping. A user may hold several simultaneous
// connections (tabs, devices); they collapse to one presence entry.
type Sessions struct {
	mu     sync.Mutex
	byConn map[string]*session
	byUser map[string][]string // userID -> connection ids in bind order

	transport Transport
	log       zerolog.Logger
	now       func() time.Time
}

// NewSessions creates an empty registry publishing presence through tr.
func NewSessions(tr Transport, log zerolog.Logger) *Sessions {
	return &Sessions{
		byConn:    make(map[string]*session),
		byUser:    make(map[string][]string),
		transport: tr,
		log:       log.With().Str("component", "sessions").Logger(),
		now:       time.Now,
	}
}

// Register binds a connection to a user id. Re-announcing the same user
// on the same connection is idempotent and only refreshes lastSeen.
// Announcing a different user on a bound connection returns
// ErrInvalidState. Every effective mutation triggers a synchronous
// presence broadcast.
func (s *Sessions) Register(connectionID, userID string) error {
	s.mu.Lock()
	if existing, ok := s.byConn[connectionID]; ok {
		if existing.userID != userID {
			s.mu.Unlock()
			return ErrInvalidState
		}
		existing.lastSeen = s.now()
		s.mu.Unlock()
		return nil
	}

	now := s.now()
	s.byConn[connectionID] = &session{userID: userID, boundAt: now, lastSeen: now}
	s.byUser[userID] = append(s.byUser[userID], connectionID)
	online := s.onlineLocked()
	s.mu.Unlock()

	metrics.OnlineUsers.Set(float64(len(online)))
	s.log.Debug().Str("connection_id", connectionID).Str("user_id", userID).Msg("connection registered")
	s.publish(online)
	return nil
}

// Unregister removes the binding for a connection. Unknown connections
// are a no-op; known ones trigger a presence broadcast.
func (s *Sessions) Unregister(connectionID string) {
	s.mu.Lock()
	sess, ok := s.byConn[connectionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.byConn, connectionID)

	conns := s.byUser[sess.userID]
	for i, id := range conns {
		if id == connectionID {
			s.byUser[sess.userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(s.byUser[sess.userID]) == 0 {
		delete(s.byUser, sess.userID)
	}
	online := s.onlineLocked()
	s.mu.Unlock()

	metrics.OnlineUsers.Set(float64(len(online)))
	s.log.Debug().Str("connection_id", connectionID).Str("user_id", sess.userID).Msg("connection unregistered")
	s.publish(online)
}

// ConnectionsFor returns the connection ids currently bound to userID,
// oldest first. The slice is a copy.
func (s *Sessions) ConnectionsFor(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := s.byUser[userID]
	out := make([]string, len(conns))
	copy(out, conns)
	return out
}

// UserFor returns the user id bound to a connection, if any.
func (s *Sessions) UserFor(connectionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byConn[connectionID]
	if !ok {
		return "", false
	}
	return sess.userID, true
}

// HasConnection reports whether connectionID is currently registered.
func (s *Sessions) HasConnection(connectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byConn[connectionID]
	return ok
}

// IsOnline reports whether at least one connection is bound to userID.
func (s *Sessions) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser[userID]) > 0
}

// Online returns the distinct set of online user ids, sorted for
// stable output.
func (s *Sessions) Online() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onlineLocked()
}

// ConnectionCount returns the number of registered connections.
func (s *Sessions) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byConn)
}

func (s *Sessions) onlineLocked() []string {
	online := make([]string, 0, len(s.byUser))
	for userID := range s.byUser {
		online = append(online, userID)
	}
	sort.Strings(online)
	return online
}

func (s *Sessions) publish(online []string) {
	metrics.PresenceBroadcasts.Inc()
	s.transport.Broadcast(EventPresence, PresencePayload{Online: online})
}
