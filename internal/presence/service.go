package presence

import (
	"context"
	"sync"
	"time"

	"github.com/ppchat/edgecore/internal/frame"
)

// FriendGraph is the narrow slice of Auth that Presence depends on: it
// never needs the rest of the Auth contract, only each user's friend
// ids (spec.md §4.3 step (b): "read friends(user_id) from Auth").
type FriendGraph interface {
	FriendIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Broadcaster is the Routing Plane's fan-out entry point.
type Broadcaster interface {
	SendToUser(ctx context.Context, userID int64, frameBytes []byte) error
}

// Service implements the three Presence RPCs. DebounceGrace, when
// positive, holds the online=0 write for that long on Logout and
// cancels it if a Login for the same user arrives first — a
// quality-of-service smoothing for rapid reconnects and multi-device
// flapping (spec.md §4.3's "MAY debounce" note), never an invariant.
type Service struct {
	store         *Store
	friends       FriendGraph
	bus           Broadcaster
	debounceGrace time.Duration
	now           func() time.Time

	mu      sync.Mutex
	pending map[int64]*time.Timer
}

func NewService(store *Store, friends FriendGraph, bus Broadcaster, debounceGrace time.Duration) *Service {
	return &Service{
		store:         store,
		friends:       friends,
		bus:           bus,
		debounceGrace: debounceGrace,
		now:           time.Now,
		pending:       make(map[int64]*time.Timer),
	}
}

// Login sets userID online unconditionally, cancels any pending
// debounced logout, and broadcasts STATUS_UPDATE to every friend who
// is currently online (spec.md §4.3).
func (s *Service) Login(ctx context.Context, userID int64) (onlineFriendIDs []int64, err error) {
	s.cancelPendingLogout(userID)

	if err := s.store.SetOnline(ctx, userID, true); err != nil {
		return nil, err
	}

	friendIDs, err := s.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses, err := s.store.BatchStatus(ctx, friendIDs)
	if err != nil {
		return nil, err
	}

	ts := s.now().UnixMilli()
	payload, err := frame.StatusUpdate(userID, true, ts).Marshal()
	if err != nil {
		return nil, err
	}

	for _, friendID := range friendIDs {
		if !statuses[friendID] {
			continue
		}
		onlineFriendIDs = append(onlineFriendIDs, friendID)
		_ = s.bus.SendToUser(ctx, friendID, payload)
	}
	return onlineFriendIDs, nil
}

// Logout sets userID offline (after the debounce grace period, if
// configured) and broadcasts STATUS_UPDATE to every currently-online
// friend. Re-issuing Logout is safe: friends only ever receive a
// duplicate, idempotent STATUS_UPDATE (spec.md §4.3).
func (s *Service) Logout(ctx context.Context, userID int64) (onlineFriendIDs []int64, err error) {
	friendIDs, err := s.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.store.BatchStatus(ctx, friendIDs)
	if err != nil {
		return nil, err
	}
	for _, friendID := range friendIDs {
		if statuses[friendID] {
			onlineFriendIDs = append(onlineFriendIDs, friendID)
		}
	}

	if s.debounceGrace <= 0 {
		if err := s.commitLogout(ctx, userID, onlineFriendIDs); err != nil {
			return nil, err
		}
		return onlineFriendIDs, nil
	}

	s.scheduleDebouncedLogout(userID, onlineFriendIDs)
	return onlineFriendIDs, nil
}

func (s *Service) GetStatus(ctx context.Context, userIDs []int64) (map[int64]bool, error) {
	return s.store.BatchStatus(ctx, userIDs)
}

func (s *Service) commitLogout(ctx context.Context, userID int64, onlineFriendIDs []int64) error {
	if err := s.store.SetOnline(ctx, userID, false); err != nil {
		return err
	}
	ts := s.now().UnixMilli()
	payload, err := frame.StatusUpdate(userID, false, ts).Marshal()
	if err != nil {
		return err
	}
	for _, friendID := range onlineFriendIDs {
		_ = s.bus.SendToUser(ctx, friendID, payload)
	}
	return nil
}

func (s *Service) scheduleDebouncedLogout(userID int64, onlineFriendIDs []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.pending[userID]; ok {
		t.Stop()
	}
	s.pending[userID] = time.AfterFunc(s.debounceGrace, func() {
		s.mu.Lock()
		delete(s.pending, userID)
		s.mu.Unlock()
		_ = s.commitLogout(context.Background(), userID, onlineFriendIDs)
	})
}

func (s *Service) cancelPendingLogout(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pending[userID]; ok {
		t.Stop()
		delete(s.pending, userID)
	}
}
