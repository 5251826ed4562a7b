package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/ppchat/edgecore/internal/frame"
)

func TestHeartbeatHandlerRepliesPongAndTouchesHeartbeat(t *testing.T) {
	sess := &Session{SendCh: make(chan []byte, 1), lastHeartbeat: time.Now().Add(-time.Hour)}
	h := NewHeartbeatHandler()

	h.Handle(context.Background(), sess, &frame.Frame{Type: frame.TypeHeartbeatPing})

	if sess.idleSince() > time.Second {
		t.Fatal("expected heartbeat handler to refresh lastHeartbeat")
	}

	select {
	case payload := <-sess.SendCh:
		f, err := frame.Unmarshal(payload)
		if err != nil {
			t.Fatalf("unmarshal pong: %v", err)
		}
		if f.Type != frame.TypeHeartbeatPong {
			t.Fatalf("expected HEARTBEAT_PONG, got %v", f.Type)
		}
	default:
		t.Fatal("expected a pong frame to be enqueued")
	}
}
