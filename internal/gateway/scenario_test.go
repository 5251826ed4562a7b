package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ppchat/edgecore/internal/chat"
	"github.com/ppchat/edgecore/internal/frame"
	"github.com/ppchat/edgecore/internal/presence"
	"github.com/ppchat/edgecore/internal/routing"
)

// inMemoryChat is a fake Chat Persistence collaborator: it implements
// just enough of internal/chat.Store's contract (append + unread
// bookkeeping + offline drain + ack) to drive the scenarios below
// without a live Postgres, the same role miniredis plays for the
// redis-backed collaborators.
type inMemoryChat struct {
	mu      sync.Mutex
	nextID  int64
	byOwner map[int64][]chat.Message
	unread  map[[2]int64]int64
}

func newInMemoryChat() *inMemoryChat {
	return &inMemoryChat{
		byOwner: make(map[int64][]chat.Message),
		unread:  make(map[[2]int64]int64),
	}
}

func (c *inMemoryChat) SaveMessage(ctx context.Context, from, to int64, content []byte, ts time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	msg := chat.Message{MsgID: c.nextID, FromUserID: from, ToUserID: to, Content: content, Timestamp: ts.UnixMilli()}
	c.byOwner[to] = append(c.byOwner[to], msg)
	c.unread[[2]int64{to, from}]++
	return msg.MsgID, nil
}

func (c *inMemoryChat) GetOfflineMessages(ctx context.Context, user int64) ([]chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]chat.Message(nil), c.byOwner[user]...)
	return out, nil
}

func (c *inMemoryChat) AckMessages(ctx context.Context, user, peer int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unread[[2]int64{user, peer}] = 0
	return nil
}

func (c *inMemoryChat) unreadCount(user, peer int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread[[2]int64{user, peer}]
}

// fakePublisher stands in for routing.Bus in scenarios that need to
// observe a cross-edge publish without a live NATS connection.
type fakePublisher struct {
	calls  int
	edgeID string
	userID int64
	frame  []byte
}

func (p *fakePublisher) Publish(edgeID string, userID int64, frameBytes []byte) error {
	p.calls++
	p.edgeID = edgeID
	p.userID = userID
	p.frame = frameBytes
	return nil
}

func newScenarioRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// Scenario 1 (spec.md §8): two users on the same edge; a CHAT_SEND is
// persisted, ACKed to the sender, and pushed live to the recipient's
// local session.
func TestScenarioSameEdgeDeliveryIsImmediate(t *testing.T) {
	store := newInMemoryChat()
	conn := NewConnManager()
	router := routing.NewRouter("edge-a", nil, nil, conn)

	sender := &Session{SnowID: "s1", UserID: 1, SendCh: make(chan []byte, 4)}
	recipient := &Session{SnowID: "s2", UserID: 2, SendCh: make(chan []byte, 4)}
	conn.Register(sender)
	conn.Register(recipient)

	h := NewChatSendHandler(store, router)
	h.Handle(context.Background(), sender, &frame.Frame{
		Type: frame.TypeChatSend, RequestID: "r1",
		ChatData: &frame.ChatData{ToUserID: 2, Content: []byte("hi")},
	})

	ack, _ := frame.Unmarshal(<-sender.SendCh)
	if ack.Type != frame.TypeChatAck {
		t.Fatalf("expected sender to get CHAT_ACK, got %v", ack.Type)
	}
	push, _ := frame.Unmarshal(<-recipient.SendCh)
	if push.Type != frame.TypeChatPush || push.ChatData.ToUserID != 2 {
		t.Fatalf("expected recipient to get a live CHAT_PUSH, got %+v", push)
	}
}

// Scenario 2 (spec.md §8): recipient is on a different edge; the
// message crosses the bus to the owning edge instead of being
// delivered locally.
func TestScenarioCrossEdgeDeliveryPublishesToOwningEdge(t *testing.T) {
	rdb := newScenarioRedis(t)
	dir := routing.NewDirectory(rdb)
	if err := dir.Set(context.Background(), "2", "edge-b"); err != nil {
		t.Fatalf("seed directory: %v", err)
	}

	conn := NewConnManager() // recipient has no local session on this edge
	pub := &fakePublisher{}
	router := routing.NewRouter("edge-a", dir, pub, conn)
	store := newInMemoryChat()

	sender := &Session{SnowID: "s1", UserID: 1, SendCh: make(chan []byte, 4)}
	conn.Register(sender)

	h := NewChatSendHandler(store, router)
	h.Handle(context.Background(), sender, &frame.Frame{
		Type: frame.TypeChatSend, RequestID: "r2",
		ChatData: &frame.ChatData{ToUserID: 2, Content: []byte("hi")},
	})

	if pub.calls != 1 || pub.edgeID != "edge-b" || pub.userID != 2 {
		t.Fatalf("expected exactly one publish to edge-b for user 2, got %+v", pub)
	}
}

// Scenario 4 (spec.md §8): recipient is fully offline; the message is
// only persisted. On reconnect, drainOffline delivers it in
// chronological order without resetting unread until an explicit ack.
func TestScenarioOfflineDrainDeliversAndAckResetsUnread(t *testing.T) {
	store := newInMemoryChat()
	conn := NewConnManager()
	dir := routing.NewDirectory(newScenarioRedis(t)) // no entry for user 2: fully offline
	router := routing.NewRouter("edge-a", dir, &fakePublisher{}, conn)

	h := NewChatSendHandler(store, router)
	sender := &Session{SnowID: "s1", UserID: 1, SendCh: make(chan []byte, 4)}
	conn.Register(sender)
	h.Handle(context.Background(), sender, &frame.Frame{
		Type: frame.TypeChatSend, RequestID: "r3",
		ChatData: &frame.ChatData{ToUserID: 2, Content: []byte("offline")},
	})
	<-sender.SendCh // drain the ack

	if got := store.unreadCount(2, 1); got != 1 {
		t.Fatalf("expected unread count 1 before drain, got %d", got)
	}

	s := &Server{offline: store, log: nil}
	recipient := &Session{SnowID: "s2", UserID: 2, SendCh: make(chan []byte, 4)}
	s.drainOffline(context.Background(), recipient)

	push, err := frame.Unmarshal(<-recipient.SendCh)
	if err != nil || push.Type != frame.TypeChatPush {
		t.Fatalf("expected a drained CHAT_PUSH, got %+v err=%v", push, err)
	}
	if got := store.unreadCount(2, 1); got != 1 {
		t.Fatal("drain must not reset unread count on its own")
	}

	if err := store.AckMessages(context.Background(), 2, 1); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if got := store.unreadCount(2, 1); got != 0 {
		t.Fatal("explicit ack must reset unread count")
	}
}

// Scenario 5 (spec.md §8): presence login broadcasts only to
// already-online friends.
func TestScenarioPresenceBroadcastsOnlyToOnlineFriends(t *testing.T) {
	rdb := newScenarioRedis(t)
	store := presence.NewStore(rdb)

	friends := &fakeFriendGraph{friends: map[int64][]int64{1: {2, 3}}}
	bus := &recordingBroadcaster{}
	svc := presence.NewService(store, friends, bus, 0)

	if _, err := svc.Login(context.Background(), 3); err != nil {
		t.Fatalf("friend 3 login: %v", err)
	}
	bus.reset()

	if _, err := svc.Login(context.Background(), 1); err != nil {
		t.Fatalf("login: %v", err)
	}

	if len(bus.sent) != 1 || bus.sent[0] != 3 {
		t.Fatalf("expected broadcast to online friend 3 only, got %+v", bus.sent)
	}
}

type fakeFriendGraph struct{ friends map[int64][]int64 }

func (f *fakeFriendGraph) FriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	return f.friends[userID], nil
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []int64
}

func (b *recordingBroadcaster) SendToUser(ctx context.Context, userID int64, frameBytes []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, userID)
	return nil
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = nil
}

// Invariant I1: a directory entry is removed only by the edge it still
// names, so a stale edge's teardown leaves it in place. This is not a
// friend-graph test; bidirectional friend delete (scenario 6) is
// covered in internal/auth/client_test.go.
func TestScenarioDirectoryRemoveIfSelfIsOrderStable(t *testing.T) {
	rdb := newScenarioRedis(t)
	dir := routing.NewDirectory(rdb)
	ctx := context.Background()

	if err := dir.Set(ctx, "9", "edge-a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	removed, err := dir.RemoveIfSelf(ctx, "9", "edge-b")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed {
		t.Fatal("a stale edge must not remove another edge's directory entry")
	}
	removed, err = dir.RemoveIfSelf(ctx, "9", "edge-a")
	if err != nil || !removed {
		t.Fatalf("the owning edge must remove its own entry, removed=%v err=%v", removed, err)
	}
}

