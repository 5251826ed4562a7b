// Package gateway implements the Edge Node's Session Manager (spec.md
// §4.1): the per-node WebSocket connection table, the connect/
// disconnect protocols, heartbeat supervision, and dispatch of inbound
// frames to handlers.
package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Session is one registered client connection. SendCh is the
// per-session outbound write queue; only the write pump goroutine
// reads from it, so ordering within a session is FIFO by
// construction (spec.md §5, property O1).
type Session struct {
	SnowID        string
	UserID        int64
	Conn          *websocket.Conn
	SendCh        chan []byte
	CreatedAt     time.Time
	lastHeartbeat time.Time
	done          chan struct{}
	closed        bool
	mu            sync.Mutex
}

func newSession(snowID string, userID int64, conn *websocket.Conn) *Session {
	now := time.Now()
	return &Session{
		SnowID:        snowID,
		UserID:        userID,
		Conn:          conn,
		SendCh:        make(chan []byte, 256),
		CreatedAt:     now,
		lastHeartbeat: now,
		done:          make(chan struct{}),
	}
}

func (s *Session) touchHeartbeat() {
	s.mu.Lock()
	s.lastHeartbeat = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastHeartbeat)
}

// enqueue attempts a non-blocking send; a session whose queue is full
// is treated as unresponsive rather than stalling the caller (the
// sweeper will close it once the heartbeat deadline passes). SendCh
// itself is never closed (see teardown), so a closed flag guarded by
// mu is what makes a send arriving after teardown a no-op instead of
// racing the write pump's shutdown.
func (s *Session) enqueue(frameBytes []byte) bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	select {
	case s.SendCh <- frameBytes:
		return true
	default:
		return false
	}
}

// markClosed flags the session as torn down. Called exactly once, by
// teardown.
func (s *Session) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// ConnManager is the mutex-protected local session table (spec.md
// §5's "Local session table" shared-resource policy: holders must not
// perform I/O while holding the lock — Register/Deregister only ever
// touch maps and channels, writes happen on the session's own write
// pump goroutine).
//
// bySnow/byUser mirrors the teacher's own connection-manager indexing
// scheme, trimmed to what this spec needs: no unauthorized-connection
// staging phase, no per-user connection cap, since neither is named
// here.
type ConnManager struct {
	mu     sync.RWMutex
	bySnow map[string]*Session
	byUser map[int64]map[string]*Session
}

func NewConnManager() *ConnManager {
	return &ConnManager{
		bySnow: make(map[string]*Session),
		byUser: make(map[int64]map[string]*Session),
	}
}

// Register adds sess to the table, keyed by its snowID. Every accepted
// connection gets its own snowID, so Register does not displace or
// close an earlier session of the same user on this node: several
// sessions of one user can be registered here at once, and
// DeliverLocal pushes to all of them.
func (m *ConnManager) Register(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySnow[sess.SnowID] = sess
	if m.byUser[sess.UserID] == nil {
		m.byUser[sess.UserID] = make(map[string]*Session)
	}
	m.byUser[sess.UserID][sess.SnowID] = sess
}

// Deregister removes sess and reports whether it was the last local
// session for its user (the caller uses this to decide whether to
// clear the directory entry and call Presence.Logout — spec.md §4.1
// disconnect protocol step 2).
func (m *ConnManager) Deregister(sess *Session) (lastForUser bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bySnow, sess.SnowID)
	if mm, ok := m.byUser[sess.UserID]; ok {
		delete(mm, sess.SnowID)
		if len(mm) == 0 {
			delete(m.byUser, sess.UserID)
			return true
		}
	}
	return false
}

// DeliverLocal implements routing.LocalDelivery: enqueue frameBytes on
// every local session of userID.
func (m *ConnManager) DeliverLocal(userID int64, frameBytes []byte) bool {
	m.mu.RLock()
	mm := m.byUser[userID]
	sessions := make([]*Session, 0, len(mm))
	for _, s := range mm {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	delivered := false
	for _, s := range sessions {
		if s.enqueue(frameBytes) {
			delivered = true
		}
	}
	return delivered
}

// sessionsSnapshot is used by the heartbeat sweeper; it copies
// references out from under the lock so closing a dead connection
// never happens while the lock is held (spec.md §5: no I/O under
// lock).
func (m *ConnManager) sessionsSnapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.bySnow))
	for _, s := range m.bySnow {
		out = append(out, s)
	}
	return out
}
