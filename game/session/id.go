package session

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a short URL-safe session identifier, e.g. "session-1a2b3c4d".
// Eight hex characters keeps ids easy to paste around while the uuid source
// keeps collisions out of reach for the size of an in-memory store.
func NewID() string {
	id := uuid.New()
	return "session-" + hex.EncodeToString(id[:4])
}
