package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/playdate-app/playdate-server/game/session"
)

// FileRecorder writes one JSON file per finished session.
type FileRecorder struct {
	dir string
}

// NewFileRecorder creates the outcome directory if needed.
func NewFileRecorder(dir string) (*FileRecorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create outcomes directory: %w", err)
	}
	return &FileRecorder{dir: dir}, nil
}

// RecordOutcome implements Recorder. An existing file for the same session
// is overwritten; outcomes are recorded once per session, so this only
// matters for out-of-band retries.
func (fr *FileRecorder) RecordOutcome(ctx context.Context, snap *session.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session outcome: %w", err)
	}

	if err := os.WriteFile(fr.filePath(snap.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write outcome file: %w", err)
	}
	return nil
}

// Load reads a recorded outcome back, mainly for tests and tooling.
func (fr *FileRecorder) Load(id string) (*session.Snapshot, error) {
	data, err := os.ReadFile(fr.filePath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read outcome file: %w", err)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outcome: %w", err)
	}
	return &snap, nil
}

func (fr *FileRecorder) filePath(id string) string {
	// Session ids are URL-safe, but keep path traversal out regardless.
	safe := strings.ReplaceAll(id, string(filepath.Separator), "_")
	return filepath.Join(fr.dir, safe+".json")
}
