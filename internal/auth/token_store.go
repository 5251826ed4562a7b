package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenKeyPrefix implements the token store layout from spec.md §6.5:
// key "token:<token>", value decimal user_id, TTL 86400s by default.
const tokenKeyPrefix = "token:"

// TokenStore binds opaque bearer tokens to user_id with a TTL. It is
// the only place a token's validity is checked against persisted
// state; the JWT itself is just the vessel used to opaquely hand the
// token to the client (see Client.issueToken).
type TokenStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTokenStore(rdb *redis.Client, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenStore{rdb: rdb, ttl: ttl}
}

func (t *TokenStore) Bind(ctx context.Context, token string, userID int64) error {
	return t.rdb.Set(ctx, tokenKeyPrefix+token, userID, t.ttl).Err()
}

// Lookup returns the bound user_id, or ok=false if the token is
// unknown or has expired.
func (t *TokenStore) Lookup(ctx context.Context, token string) (userID int64, ok bool, err error) {
	v, err := t.rdb.Get(ctx, tokenKeyPrefix+token).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
