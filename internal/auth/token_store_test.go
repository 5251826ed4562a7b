package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestTokenStore(t *testing.T) *TokenStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewTokenStore(rdb, time.Hour)
}

func TestTokenStoreBindAndLookup(t *testing.T) {
	ctx := context.Background()
	ts := newTestTokenStore(t)

	if _, ok, err := ts.Lookup(ctx, "unknown"); err != nil || ok {
		t.Fatalf("expected unknown token to be absent, ok=%v err=%v", ok, err)
	}

	if err := ts.Bind(ctx, "tok-1", 42); err != nil {
		t.Fatalf("bind: %v", err)
	}
	userID, ok, err := ts.Lookup(ctx, "tok-1")
	if err != nil || !ok || userID != 42 {
		t.Fatalf("expected userID=42, got %d ok=%v err=%v", userID, ok, err)
	}
}
