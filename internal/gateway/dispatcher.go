package gateway

import (
	"context"

	"github.com/ppchat/edgecore/internal/frame"
)

// Handler processes one inbound frame of a specific type for a given
// session. Handlers run on the blocking-collaborator worker pool, not
// on the connection's read goroutine (spec.md §4.1 steady-state note:
// "CHAT_SEND handling is not blocked on the reader").
type Handler interface {
	Type() frame.Type
	Handle(ctx context.Context, sess *Session, f *frame.Frame)
}

// Dispatcher routes an inbound frame to its registered Handler, the
// same by-tagged-type lookup the teacher's own dispatcher uses.
type Dispatcher struct {
	handlers map[frame.Type]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[frame.Type]Handler)}
}

func (d *Dispatcher) Register(h Handler) {
	d.handlers[h.Type()] = h
}

func (d *Dispatcher) Dispatch(ctx context.Context, sess *Session, f *frame.Frame) (found bool) {
	h, ok := d.handlers[f.Type]
	if !ok {
		return false
	}
	h.Handle(ctx, sess, f)
	return true
}
