package gateway

import (
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// runWritePump drains sess.SendCh in order and writes each frame with
// a write deadline, matching the teacher's writeBinary-with-deadline
// convention. SendCh is never closed (see teardown's comment), so this
// also selects on sess.done: without it, a pump with an empty queue
// would block forever after teardown instead of returning. It returns
// when done is closed or a write fails; the caller (teardown) is
// responsible for tearing the session down.
func runWritePump(sess *Session) {
	for {
		select {
		case payload := <-sess.SendCh:
			_ = sess.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.Conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				return
			}
		case <-sess.done:
			return
		}
	}
}
