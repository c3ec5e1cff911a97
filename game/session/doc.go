// Package session holds the in-memory model of active game sessions for the
// PlayDate realtime server.
//
// The session package implements:
//   - Tagged record types for sessions and player memberships
//   - Thread-safe session storage with per-session mutual exclusion
//   - Unique session ID generation
//   - Session lifecycle (pending, waiting, active, completed, abandoned)
//   - Presence sweeping for missed heartbeats and finished sessions
//
// Core Types:
//
// Session is the central aggregate: up to two players engaged in (or waiting
// to start) a single game round. Player is one membership record; membership
// is logical and distinct from connectivity, so an accepted challenge can
// pre-seat both participants before either has a live connection. Store is
// the table of live sessions and the only mutation path.
//
// Concurrency:
//
// Store.Mutate serializes writers per session id. Different sessions never
// block each other; a global lock guards only table membership. Reads return
// deep snapshots, never live pointers, so callers can broadcast or persist
// after releasing the session lock. A session whose membership drops to zero
// is removed inside the same Mutate call that emptied it.
//
// Usage:
//
//	store := session.NewStore()
//
//	snap, err := store.Create(session.New(session.NewID(), "PuzzleConnect"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	snap, err = store.Mutate(snap.ID, func(s *session.Session) error {
//		_, err := s.Join("player-1", "Alice", true)
//		return err
//	})
//
// Cleanup:
//
// The Sweeper evicts connected members whose heartbeats went stale and
// expires terminal sessions after a grace period. Eviction is routed back
// through the caller-provided leave path so it is indistinguishable from a
// disconnect.
package session
