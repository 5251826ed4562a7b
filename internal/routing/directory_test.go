package routing

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewDirectory(rdb)
}

func TestDirectorySetGet(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	if _, ok, err := d.Get(ctx, "100"); err != nil || ok {
		t.Fatalf("expected absent entry, got ok=%v err=%v", ok, err)
	}

	if err := d.Set(ctx, "100", "edge-a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	edge, ok, err := d.Get(ctx, "100")
	if err != nil || !ok || edge != "edge-a" {
		t.Fatalf("expected edge-a, got edge=%q ok=%v err=%v", edge, ok, err)
	}
}

// TestRemoveIfSelfProtectsNewerRegistration covers invariant I1: a
// stale edge's teardown must not clobber a newer registration written
// by a different edge after a racing displacement.
func TestRemoveIfSelfProtectsNewerRegistration(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	if err := d.Set(ctx, "100", "edge-a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	// A newer session registers on edge-b before edge-a's teardown runs.
	if err := d.Set(ctx, "100", "edge-b"); err != nil {
		t.Fatalf("set: %v", err)
	}

	removed, err := d.RemoveIfSelf(ctx, "100", "edge-a")
	if err != nil {
		t.Fatalf("removeIfSelf: %v", err)
	}
	if removed {
		t.Fatalf("edge-a should not have removed edge-b's entry")
	}

	edge, ok, err := d.Get(ctx, "100")
	if err != nil || !ok || edge != "edge-b" {
		t.Fatalf("expected edge-b to remain, got edge=%q ok=%v err=%v", edge, ok, err)
	}

	removed, err = d.RemoveIfSelf(ctx, "100", "edge-b")
	if err != nil || !removed {
		t.Fatalf("expected edge-b to remove its own entry, removed=%v err=%v", removed, err)
	}
	if _, ok, _ := d.Get(ctx, "100"); ok {
		t.Fatalf("expected entry gone after self-removal")
	}
}
