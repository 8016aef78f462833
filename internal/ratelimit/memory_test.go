package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemory_AllowsUpToLimit(t *testing.T) {
	g := NewMemory(time.Minute, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := g.Allow(ctx, "fp-a")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !ok {
			t.Fatalf("request %d within limit was rejected", i+1)
		}
	}

	ok, _ := g.Allow(ctx, "fp-a")
	if ok {
		t.Error("request over the limit was allowed")
	}
}

func TestMemory_WindowReset(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewMemory(time.Minute, 1).WithClock(func() time.Time { return now })
	ctx := context.Background()

	if ok, _ := g.Allow(ctx, "fp-a"); !ok {
		t.Fatal("first request rejected")
	}
	if ok, _ := g.Allow(ctx, "fp-a"); ok {
		t.Fatal("second request in window allowed")
	}

	now = now.Add(time.Minute)
	if ok, _ := g.Allow(ctx, "fp-a"); !ok {
		t.Error("request in fresh window rejected")
	}
}

func TestMemory_PerIdentityWindows(t *testing.T) {
	g := NewMemory(time.Minute, 1)
	ctx := context.Background()

	if ok, _ := g.Allow(ctx, "fp-a"); !ok {
		t.Fatal("fp-a first request rejected")
	}
	if ok, _ := g.Allow(ctx, "fp-b"); !ok {
		t.Error("fp-b must have its own window")
	}
	if ok, _ := g.Allow(ctx, "fp-a"); ok {
		t.Error("fp-a second request allowed")
	}
}
