package ctxutil

import (
	"context"
	"testing"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := ActorFromContext(ctx); got != "" {
		t.Errorf("expected empty actor, got %q", got)
	}

	ctx = WithActorID(ctx, "alice")
	if got := ActorFromContext(ctx); got != "alice" {
		t.Errorf("expected alice, got %q", got)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithActorID(context.Background(), "alice")
	ctx = WithRequestID(ctx, "req-1")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("expected req-1, got %q", got)
	}
	if got := ActorFromContext(ctx); got != "alice" {
		t.Errorf("expected actor to survive, got %q", got)
	}
}
