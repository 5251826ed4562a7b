// Package presence implements the Presence Service (spec.md §4.3):
// the single source of truth for per-user online/offline state, with
// Login/Logout/GetStatus RPCs that broadcast transitions to friends
// through the Routing Plane.
package presence

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// statusKeyPrefix implements the presence store layout from spec.md
// §6.4: key "user:status:<user_id>", value "0" or "1".
const statusKeyPrefix = "user:status:"

// Store is the redis-backed online flag, simpler than a full
// session-liveness index on purpose: Presence only needs one bit per
// user, not per-connection bookkeeping (that lives in the Edge Node's
// own session table).
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) SetOnline(ctx context.Context, userID int64, online bool) error {
	v := "0"
	if online {
		v = "1"
	}
	return s.rdb.Set(ctx, statusKey(userID), v, 0).Err()
}

func (s *Store) IsOnline(ctx context.Context, userID int64) (bool, error) {
	v, err := s.rdb.Get(ctx, statusKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// BatchStatus returns the online flag for every id in userIDs, using
// one pipelined round trip. Missing keys (never seen by Presence) are
// reported offline.
func (s *Store) BatchStatus(ctx context.Context, userIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.Get(ctx, statusKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	for i, id := range userIDs {
		v, err := cmds[i].Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		out[id] = v == "1"
	}
	return out, nil
}

func statusKey(userID int64) string {
	return statusKeyPrefix + strconv.FormatInt(userID, 10)
}
