package gateway

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ppchat/edgecore/internal/errs"
	"github.com/ppchat/edgecore/internal/frame"
)

// handleUpgrade implements the connect protocol (spec.md §4.1): upgrade
// the HTTP request, authenticate the token query parameter, register the
// session, flip presence online, drain offline messages, and enter the
// steady-state read loop. Any failure before registration closes the
// socket without a session ever existing; any failure after registration
// runs the full disconnect protocol.
func (s *Server) handleUpgrade(c *gin.Context) {
	token := c.Query("token")

	userID, valid, err := s.auth.VerifyToken(c.Request.Context(), token)
	if err != nil || !valid {
		conn, upErr := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if upErr == nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, errs.ErrTokenExpired.Msg),
				time.Now().Add(writeWait))
			_ = conn.Close()
		}
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sess := newSession(s.ids.NextString(), userID, conn)
	s.conn.Register(sess)

	go runWritePump(sess)

	ctx := context.Background()
	if err := s.directory.Set(ctx, strconv.FormatInt(userID, 10), s.cfg.EdgeID); err != nil {
		s.logErr("directory set failed", err)
	}
	if _, err := s.presence.Login(ctx, userID); err != nil {
		s.logErr("presence login failed", err)
	}

	s.drainOffline(ctx, sess)

	s.readLoop(sess)
	s.teardown(sess)
}

// drainOffline delivers a reconnecting user's missed messages, in
// ascending (timestamp, msg_id) order, to this session only (spec.md
// §4.1 step 6, invariant I5). It does not reset unread counters: only
// an explicit ACK does (see the chat package's AckMessages).
func (s *Server) drainOffline(ctx context.Context, sess *Session) {
	msgs, err := s.offline.GetOfflineMessages(ctx, sess.UserID)
	if err != nil {
		s.logErr("offline drain failed", err)
		return
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].MsgID < msgs[j].MsgID
	})
	for _, m := range msgs {
		push, err := frame.ChatPush(m.MsgID, m.FromUserID, m.ToUserID, m.Content, m.Timestamp).Marshal()
		if err != nil {
			continue
		}
		sess.enqueue(push)
	}
}

// readLoop reads inbound frames until the connection closes, submitting
// each dispatch onto the worker pool so a slow collaborator call (a
// persistence write, a cross-edge publish) never blocks this goroutine
// from reading the next frame (spec.md §4.1 steady-state note).
func (s *Server) readLoop(sess *Session) {
	for {
		_, raw, err := sess.Conn.ReadMessage()
		if err != nil {
			return
		}
		f, err := frame.Unmarshal(raw)
		if err != nil {
			continue
		}
		sess.touchHeartbeat()

		frm, ss := f, sess
		err = s.pool.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					s.logErr("dispatch panic", errs.Recover(r))
				}
			}()
			ctx := context.Background()
			if !s.dispatcher.Dispatch(ctx, ss, frm) {
				payload, merr := frame.ErrorFrame(frm.RequestID, "unknown frame type").Marshal()
				if merr == nil {
					ss.enqueue(payload)
				}
			}
		})
		if err != nil {
			s.logErr("worker pool submit failed", err)
		}
	}
}

// teardown runs the disconnect protocol (spec.md §4.1): deregister the
// local session, and only if it was the user's last session on this
// node, clear the directory entry (if it still names this edge) and
// flip presence offline.
func (s *Server) teardown(sess *Session) {
	// SendCh is never closed: DeliverLocal/enqueue can run concurrently
	// from another session's CHAT_SEND, a presence broadcast, or the
	// cross-edge NATS callback, and a send on a closed channel panics
	// uncontained on that goroutine. markClosed makes a post-teardown
	// enqueue a no-op instead; closing done unblocks the write pump
	// even if it is idle, and closing the conn fails any write already
	// in flight, matching the teacher's closeQuiet (service/chat/
	// conn_manager.go), which never closes SendChan either.
	sess.markClosed()
	close(sess.done)
	_ = sess.Conn.Close()

	lastForUser := s.conn.Deregister(sess)
	if !lastForUser {
		return
	}

	ctx := context.Background()
	if _, err := s.directory.RemoveIfSelf(ctx, strconv.FormatInt(sess.UserID, 10), s.cfg.EdgeID); err != nil {
		s.logErr("directory cleanup failed", err)
	}
	if _, err := s.presence.Logout(ctx, sess.UserID); err != nil {
		s.logErr("presence logout failed", err)
	}
}

func (s *Server) logErr(msg string, err error) {
	if s.log == nil {
		return
	}
	s.log.Sugar().Errorw(msg, "error", err)
}
