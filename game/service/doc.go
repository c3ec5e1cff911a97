// Package service provides the non-realtime game operations for the
// PlayDate server.
//
// The service package implements:
//   - HTTP-facing session management (create, get, join, state update,
//     open-session listing) over the shared session store
//   - The challenge flow: send, respond, and pending listings
//   - Outcome recording when a session reaches a terminal status
//
// The service and the realtime protocol engine read and write the same
// session store, so a player joining over HTTP and a player joining over a
// websocket always observe the same membership. HTTP-created memberships
// start disconnected; the realtime protocol flips them to connected when the
// player's live connection joins.
//
// Challenges:
//
// A challenge is a session born in the pending status, carrying the
// challenger/challenged pair but no memberships. Accepting it moves the
// session to waiting with both participants pre-seated but disconnected;
// declining evicts it. Display names come from the identity resolver.
package service
