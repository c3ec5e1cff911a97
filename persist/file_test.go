package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/playdate-app/playdate-server/game/session"
)

func TestFileRecorder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	rec, err := NewFileRecorder(filepath.Join(dir, "outcomes"))
	if err != nil {
		t.Fatalf("Failed to create recorder: %v", err)
	}

	snap := &session.Snapshot{
		ID:       "session-deadbeef",
		GameType: "PuzzleConnect",
		Status:   session.StatusCompleted,
		Players: []session.Player{
			{ID: "player-1", Name: "Alice"},
			{ID: "player-2", Name: "Bob"},
		},
		GameData:  []byte(`{"winner":"player-1"}`),
		CreatedAt: time.Now().Add(-time.Minute),
		EndedAt:   time.Now(),
	}

	if err := rec.RecordOutcome(ctx, snap); err != nil {
		t.Fatalf("Failed to record: %v", err)
	}

	loaded, err := rec.Load("session-deadbeef")
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if loaded.ID != snap.ID || loaded.Status != session.StatusCompleted {
		t.Errorf("Unexpected outcome: %+v", loaded)
	}
	if len(loaded.Players) != 2 {
		t.Errorf("Expected 2 players, got %d", len(loaded.Players))
	}
	if string(loaded.GameData) != `{"winner":"player-1"}` {
		t.Errorf("Game data not preserved: %s", loaded.GameData)
	}

	t.Run("nil snapshot rejected", func(t *testing.T) {
		if err := rec.RecordOutcome(ctx, nil); err == nil {
			t.Error("Expected error for nil snapshot")
		}
	})

	t.Run("path separators are neutralized", func(t *testing.T) {
		evil := &session.Snapshot{ID: "../escape", Status: session.StatusAbandoned}
		if err := rec.RecordOutcome(ctx, evil); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "escape.json")); err == nil {
			t.Error("Outcome escaped the recorder directory")
		}
	})
}

func TestNoop(t *testing.T) {
	if err := (Noop{}).RecordOutcome(context.Background(), &session.Snapshot{ID: "session-x"}); err != nil {
		t.Errorf("Noop must never fail: %v", err)
	}
}
