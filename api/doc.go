// Package api provides the HTTP REST surface for the PlayDate server.
//
// The api package implements:
//   - Session endpoints mirroring a subset of the realtime protocol for
//     non-realtime clients
//   - Challenge endpoints (send, respond, pending listings)
//   - WebSocket upgrade handling
//   - Health and index endpoints
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session (creator pre-seated, disconnected)
//   - GET /api/sessions/active - List open sessions (lightweight summaries)
//   - GET /api/sessions/{id} - Get one session
//   - POST /api/sessions/{id}/join - Join as a disconnected member
//   - POST /api/sessions/{id}/leave - Leave (same path as the realtime leave)
//   - PUT /api/sessions/{id}/state - Update game data and optionally status
//
// Challenges:
//   - POST /api/challenges - Send a challenge
//   - POST /api/challenges/{id}/respond - Accept or decline
//   - GET /api/challenges/pending?playerId= - Pending challenges for a player
//
// Realtime:
//   - GET /ws - WebSocket upgrade
//
// Consistency:
//
// Every session endpoint reads and writes the same in-memory session store
// the websocket protocol uses; there is no second store to drift from. State
// updates made over HTTP are broadcast to the session's realtime room.
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message"
//	}
//
// Missing fields map to 400, unknown sessions and players to 404, capacity
// and already-responded conflicts to 409, membership violations to 403.
// Internal failures return a generic message; detail stays in server logs.
package api
