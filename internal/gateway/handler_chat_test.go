package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/ppchat/edgecore/internal/frame"
)

type fakeSaver struct {
	nextID  int64
	failErr error
}

func (f *fakeSaver) SaveMessage(ctx context.Context, from, to int64, content []byte, ts time.Time) (int64, error) {
	if f.failErr != nil {
		return 0, f.failErr
	}
	f.nextID++
	return f.nextID, nil
}

type fakeSender struct {
	sentTo    int64
	sentFrame []byte
	calls     int
}

func (f *fakeSender) SendToUser(ctx context.Context, userID int64, frameBytes []byte) error {
	f.sentTo = userID
	f.sentFrame = frameBytes
	f.calls++
	return nil
}

func TestChatSendHandlerAcksThenPushes(t *testing.T) {
	saver := &fakeSaver{}
	sender := &fakeSender{}
	h := NewChatSendHandler(saver, sender)

	sess := &Session{UserID: 1, SendCh: make(chan []byte, 2)}
	in := &frame.Frame{
		Type:      frame.TypeChatSend,
		RequestID: "req-1",
		ChatData:  &frame.ChatData{ToUserID: 2, Content: []byte("hi")},
	}

	h.Handle(context.Background(), sess, in)

	ack, err := frame.Unmarshal(<-sess.SendCh)
	if err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Type != frame.TypeChatAck || ack.RequestID != "req-1" {
		t.Fatalf("expected CHAT_ACK for req-1, got %+v", ack)
	}
	if sender.calls != 1 || sender.sentTo != 2 {
		t.Fatalf("expected exactly one push to user 2, got calls=%d to=%d", sender.calls, sender.sentTo)
	}
}

func TestChatSendHandlerSkipsAckOnStoreFailure(t *testing.T) {
	saver := &fakeSaver{failErr: errBoom}
	sender := &fakeSender{}
	h := NewChatSendHandler(saver, sender)

	sess := &Session{UserID: 1, SendCh: make(chan []byte, 2)}
	in := &frame.Frame{Type: frame.TypeChatSend, RequestID: "req-2", ChatData: &frame.ChatData{ToUserID: 2}}

	h.Handle(context.Background(), sess, in)

	if len(sess.SendCh) != 0 {
		t.Fatal("expected no ACK to be enqueued when persistence fails")
	}
	if sender.calls != 0 {
		t.Fatal("expected no push when persistence fails")
	}
}

func TestChatSendHandlerRepliesErrorOnMissingChatData(t *testing.T) {
	h := NewChatSendHandler(&fakeSaver{}, &fakeSender{})
	sess := &Session{UserID: 1, SendCh: make(chan []byte, 1)}

	h.Handle(context.Background(), sess, &frame.Frame{Type: frame.TypeChatSend, RequestID: "req-3"})

	f, err := frame.Unmarshal(<-sess.SendCh)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Type != frame.TypeUnknown || f.Error == "" {
		t.Fatalf("expected an error frame, got %+v", f)
	}
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}
