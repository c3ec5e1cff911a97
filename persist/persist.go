// Package persist records session outcomes. Recording is fire-and-forget:
// it happens after a session reaches a terminal status, outside any session
// lock, and a failure never rolls back state already delivered to clients.
package persist

import (
	"context"

	"github.com/playdate-app/playdate-server/game/session"
)

// Recorder durably stores the final snapshot of a finished session.
type Recorder interface {
	RecordOutcome(ctx context.Context, snap *session.Snapshot) error
}

// Noop discards outcomes. The default when no backend is configured.
type Noop struct{}

// RecordOutcome implements Recorder.
func (Noop) RecordOutcome(ctx context.Context, snap *session.Snapshot) error {
	return nil
}
