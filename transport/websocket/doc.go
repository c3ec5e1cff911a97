// Package websocket provides the realtime transport and protocol engine for
// the PlayDate server.
//
// The websocket package implements:
//   - Connection registry: one authoritative connection per player, with a
//     reverse index so disconnects (keyed by connection) resolve in O(1)
//   - Room broadcasting: best-effort fan-out per session, with optional
//     sender exclusion and at-most-once delivery
//   - The session protocol engine: create/join/leave/ready/update/
//     communicate/heartbeat handlers and the implicit disconnect path
//
// Architecture:
//
// The Hub owns only transport facts (who is connected, who is in which
// room); all session state lives in the session store. Each connection runs
// a read pump and a write pump; the read pump feeds the Engine, which
// mutates the store through its per-session serialization and asks the Hub
// to fan events back out.
//
// Message Protocol:
//
// Every frame is a JSON envelope {event, data}. Inbound events carry
// untrusted payloads validated before any mutation; a validation or lookup
// failure emits an error event to the sender and leaves all state untouched.
// Outbound events mirror the inbound vocabulary plus connected,
// session_created, session_state, player_join, player_leave, pong and error.
//
// Consistency:
//
// Registry and room updates happen inside the same per-session critical
// section as the membership change they reflect, so the transport view and
// the session view cannot drift. Broadcasts and unicasts happen after the
// lock is released and never block: a client that stops draining its send
// buffer is dropped.
//
// Usage:
//
//	hub := websocket.NewHub()
//	engine := websocket.NewEngine(hub, store)
//	http.HandleFunc("/ws", engine.ServeWS)
package websocket
