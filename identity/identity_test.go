package identity

import (
	"context"
	"testing"
)

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory()
	d.Put(Profile{ID: "player-1", Name: "Alice"})

	p, err := d.Resolve(ctx, "player-1")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if p.Name != "Alice" {
		t.Errorf("Expected Alice, got %s", p.Name)
	}

	if _, err := d.Resolve(ctx, "player-2"); err != ErrUnknownPlayer {
		t.Errorf("Expected ErrUnknownPlayer, got %v", err)
	}

	d.Put(Profile{ID: "player-1", Name: "Alicia"})
	p, _ = d.Resolve(ctx, "player-1")
	if p.Name != "Alicia" {
		t.Errorf("Put did not replace the profile, got %s", p.Name)
	}
}

func TestSynthesized(t *testing.T) {
	ctx := context.Background()
	p, err := Synthesized{}.Resolve(ctx, "player-1")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if p.Name != "Player player-1" {
		t.Errorf("Unexpected synthesized name: %s", p.Name)
	}
	if _, err := (Synthesized{}).Resolve(ctx, ""); err != ErrUnknownPlayer {
		t.Errorf("Expected ErrUnknownPlayer for empty id, got %v", err)
	}
}
