// Package routing implements the Cross-Node Routing Plane (spec.md
// §4.2): the user_id -> edge_id directory and the per-edge topic bus
// used to fan a message out to whichever node currently owns a user's
// session.
package routing

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// directoryKey is the hash holding the whole user_gateway map
// (spec.md §6.3).
const directoryKey = "user_gateway"

// Directory is the redis-backed user_id -> edge_id map. It is owned
// collectively: each edge writes only its own entries and removes an
// entry only if it still names itself (spec.md invariant I1).
type Directory struct {
	rdb *redis.Client
}

func NewDirectory(rdb *redis.Client) *Directory {
	return &Directory{rdb: rdb}
}

// Set registers userID as owned by edgeID (HSet on session join).
func (d *Directory) Set(ctx context.Context, userID, edgeID string) error {
	return d.rdb.HSet(ctx, directoryKey, userID, edgeID).Err()
}

// Get looks up the owning edge for userID. ok=false means the user has
// no directory entry (offline, or the entry was already removed).
func (d *Directory) Get(ctx context.Context, userID string) (edgeID string, ok bool, err error) {
	v, err := d.rdb.HGet(ctx, directoryKey, userID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// luaRemoveIfSelf only deletes the field if its current value still
// names the calling edge, implementing the "HDel only if value == self"
// half of invariant I1: a stale teardown must never clobber a newer
// registration written by another edge after a racing displacement.
const luaRemoveIfSelf = `
local cur = redis.call("HGET", KEYS[1], ARGV[1])
if cur == ARGV[2] then
  redis.call("HDEL", KEYS[1], ARGV[1])
  return 1
end
return 0
`

var scriptRemoveIfSelf = redis.NewScript(luaRemoveIfSelf)

// RemoveIfSelf removes the directory entry for userID only if it still
// points at edgeID. Returns removed=true if the entry was deleted.
func (d *Directory) RemoveIfSelf(ctx context.Context, userID, edgeID string) (removed bool, err error) {
	rc, err := scriptRemoveIfSelf.Run(ctx, d.rdb, []string{directoryKey}, userID, edgeID).Int64()
	if err != nil {
		return false, err
	}
	return rc == 1, nil
}
