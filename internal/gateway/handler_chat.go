package gateway

import (
	"context"
	"time"

	"github.com/ppchat/edgecore/internal/frame"
)

// messageSaver is the slice of Chat Persistence a CHAT_SEND needs,
// kept narrow so this handler is testable without a live database.
type messageSaver interface {
	SaveMessage(ctx context.Context, from, to int64, content []byte, ts time.Time) (msgID int64, err error)
}

// userSender is the slice of the Routing Plane a CHAT_SEND needs to
// hand a message to its recipient, matching routing.Router's shape.
type userSender interface {
	SendToUser(ctx context.Context, userID int64, frameBytes []byte) error
}

// ChatSendHandler persists an inbound CHAT_SEND, ACKs the sender, and
// delivers a CHAT_PUSH to the recipient (spec.md §4.1's incoming-frame
// table). The ACK is enqueued only after persistence succeeds, so a
// session's ACKs are observed in the same relative order as its
// CHAT_SENDs (spec.md §5, property O2).
type ChatSendHandler struct {
	store  messageSaver
	router userSender
}

func NewChatSendHandler(store messageSaver, router userSender) *ChatSendHandler {
	return &ChatSendHandler{store: store, router: router}
}

func (h *ChatSendHandler) Type() frame.Type { return frame.TypeChatSend }

func (h *ChatSendHandler) Handle(ctx context.Context, sess *Session, f *frame.Frame) {
	if f.ChatData == nil {
		h.reply(sess, frame.ErrorFrame(f.RequestID, "missing chat_data"))
		return
	}

	to := f.ChatData.ToUserID
	content := f.ChatData.Content
	now := time.Now()

	msgID, err := h.store.SaveMessage(ctx, sess.UserID, to, content, now)
	if err != nil {
		// Store write failure: no ACK: the client will retry with the
		// same request_id (spec.md §7's "Store write failure" policy).
		return
	}

	h.reply(sess, frame.ChatAck(f.RequestID, msgID))

	push, err := frame.ChatPush(msgID, sess.UserID, to, content, now.UnixMilli()).Marshal()
	if err != nil {
		return
	}
	_ = h.router.SendToUser(ctx, to, push)
}

func (h *ChatSendHandler) reply(sess *Session, f *frame.Frame) {
	payload, err := f.Marshal()
	if err != nil {
		return
	}
	sess.enqueue(payload)
}
