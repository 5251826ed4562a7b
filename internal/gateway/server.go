package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/ppchat/edgecore/internal/chat"
	"github.com/ppchat/edgecore/internal/ids"
	"github.com/ppchat/edgecore/internal/routing"
)

// AuthVerifier is the slice of Auth the gateway needs during the
// connect handshake (spec.md §4.1 step 2).
type AuthVerifier interface {
	VerifyToken(ctx context.Context, token string) (userID int64, valid bool, err error)
}

// PresenceLifecycle is the slice of Presence the gateway drives on
// connect/disconnect (spec.md §4.1 steps 5 and disconnect step 3).
type PresenceLifecycle interface {
	Login(ctx context.Context, userID int64) (onlineFriendIDs []int64, err error)
	Logout(ctx context.Context, userID int64) (onlineFriendIDs []int64, err error)
}

// OfflineDrainer is the slice of Chat Persistence the gateway uses to
// drain a reconnecting user's missed messages (spec.md §4.1 step 6).
type OfflineDrainer interface {
	GetOfflineMessages(ctx context.Context, userID int64) ([]chat.Message, error)
}

// Directory is the slice of the routing directory the gateway owns
// the write side of: registering and clearing its own entries
// (spec.md §4.1 disconnect step 2, invariant I1).
type Directory interface {
	Set(ctx context.Context, userID, edgeID string) error
	RemoveIfSelf(ctx context.Context, userID, edgeID string) (removed bool, err error)
}

// Config bundles the tunables spec.md §6.7/§4.1 names for the Edge
// Node: heartbeat timeouts and this node's identity in the directory
// and bus topic naming.
type Config struct {
	EdgeID        string
	HeartbeatIdle time.Duration
	HeartbeatDead time.Duration
	SweepEvery    time.Duration
}

func (c *Config) norm() {
	if c.HeartbeatIdle <= 0 {
		c.HeartbeatIdle = 60 * time.Second
	}
	if c.HeartbeatDead <= 0 {
		c.HeartbeatDead = 120 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
}

// Server is the Edge Node: it owns the local session table, the
// connect/disconnect protocols, the heartbeat sweeper, and dispatch of
// steady-state frames onto a bounded worker pool so collaborator RPCs
// never block the connection's read loop (spec.md §5's "Suspension
// points" rule).
type Server struct {
	cfg Config

	conn       *ConnManager
	router     *routing.Router
	directory  Directory
	auth       AuthVerifier
	presence   PresenceLifecycle
	offline    OfflineDrainer
	dispatcher *Dispatcher
	ids        *ids.Generator
	pool       *ants.Pool
	log        *zap.Logger

	upgrader websocket.Upgrader
}

func NewServer(
	cfg Config,
	conn *ConnManager,
	router *routing.Router,
	directory Directory,
	auth AuthVerifier,
	presence PresenceLifecycle,
	offline OfflineDrainer,
	dispatcher *Dispatcher,
	idGen *ids.Generator,
	poolSize int,
	log *zap.Logger,
) (*Server, error) {
	cfg.norm()
	if poolSize <= 0 {
		poolSize = 256
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:        cfg,
		conn:       conn,
		router:     router,
		directory:  directory,
		auth:       auth,
		presence:   presence,
		offline:    offline,
		dispatcher: dispatcher,
		ids:        idGen,
		pool:       pool,
		log:        log,
		upgrader:   websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(r *http.Request) bool { return true }},
	}, nil
}

// RegisterRoutes wires the WebSocket upgrade endpoint onto a gin
// engine, matching the teacher's own gin-based HTTP surface.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", s.handleUpgrade)
}

// StartHeartbeatSweeper runs until ctx is cancelled, closing any
// session whose last heartbeat is older than HeartbeatDead and
// pinging any session idle past HeartbeatIdle (spec.md §4.1
// heartbeat rule).
func (s *Server) StartHeartbeatSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Server) sweepOnce() {
	for _, sess := range s.conn.sessionsSnapshot() {
		idle := sess.idleSince()
		switch {
		case idle >= s.cfg.HeartbeatDead:
			_ = sess.Conn.Close()
		case idle >= s.cfg.HeartbeatIdle:
			_ = sess.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
	}
}

// Close releases the worker pool. Call once on process shutdown.
func (s *Server) Close() {
	s.pool.Release()
}
