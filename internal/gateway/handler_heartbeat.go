package gateway

import (
	"context"

	"github.com/ppchat/edgecore/internal/frame"
)

// HeartbeatHandler replies HEARTBEAT_PONG and refreshes the session's
// last-heartbeat timestamp (spec.md §4.1).
type HeartbeatHandler struct{}

func NewHeartbeatHandler() *HeartbeatHandler { return &HeartbeatHandler{} }

func (h *HeartbeatHandler) Type() frame.Type { return frame.TypeHeartbeatPing }

func (h *HeartbeatHandler) Handle(ctx context.Context, sess *Session, f *frame.Frame) {
	sess.touchHeartbeat()
	payload, err := frame.HeartbeatPong().Marshal()
	if err != nil {
		return
	}
	sess.enqueue(payload)
}
