package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/playdate-app/playdate-server/game/session"
)

// Engine is the realtime protocol state machine. It dispatches inbound
// connection events, mutates the session store through its serialized
// mutation path, keeps the hub's registry and rooms in lockstep with session
// membership, and fans resulting events back out to the affected room.
//
// No handler error is fatal to the connection: validation and lookup
// failures produce an error event to the sender and nothing else.
type Engine struct {
	hub   *Hub
	store *session.Store
}

// errPlayerActive aborts an eviction whose target heartbeated after the
// staleness decision was made.
var errPlayerActive = errors.New("player recently active")

// NewEngine creates a protocol engine over the given hub and store.
func NewEngine(hub *Hub, store *session.Store) *Engine {
	return &Engine{hub: hub, store: store}
}

// Hub exposes the transport hub, for wiring broadcasts from the HTTP surface.
func (e *Engine) Hub() *Hub {
	return e.hub
}

// Handle dispatches one inbound message from a connection.
func (e *Engine) Handle(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		e.sendError(c, "Invalid message")
		return
	}

	switch env.Event {
	case EventCreateSession:
		e.handleCreateSession(c, env.Data)
	case EventJoinSession:
		e.handleJoinSession(c, env.Data)
	case EventLeaveSession:
		e.handleLeaveSession(c, env.Data)
	case EventPlayerReady:
		e.handlePlayerReady(c, env.Data)
	case EventGameUpdate:
		e.handleGameUpdate(c, env.Data)
	case EventCommunication:
		e.handleCommunication(c, env.Data)
	case EventHeartbeat:
		e.handleHeartbeat(c, env.Data)
	default:
		e.sendError(c, "Unknown event: "+env.Event)
	}
}

func (e *Engine) handleCreateSession(c *Client, data json.RawMessage) {
	var p CreateSessionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		e.sendError(c, "Invalid payload")
		return
	}
	if p.GameType == "" || p.PlayerID == "" {
		e.sendError(c, "Missing gameType or playerId")
		return
	}
	name := p.PlayerName
	if name == "" {
		name = "Player"
	}

	// A player plays one session at a time; starting a new one leaves the
	// old through the full leave path.
	e.leaveCurrent(p.PlayerID, "")

	s := session.New(session.NewID(), p.GameType)
	s.Join(p.PlayerID, name, true)

	snap, err := e.store.Create(s)
	if err != nil {
		log.Printf("Failed to create session: %v", err)
		e.sendError(c, "Failed to create session")
		return
	}

	e.hub.Register(p.PlayerID, c)
	e.hub.JoinRoom(snap.ID, c)

	e.hub.SendTo(c, EventSessionCreated, SessionCreatedPayload{
		SessionID: snap.ID,
		GameType:  snap.GameType,
		Players:   snap.Players,
	})
	log.Printf("Session %s created by player %s", snap.ID, p.PlayerID)
}

func (e *Engine) handleJoinSession(c *Client, data json.RawMessage) {
	var p JoinSessionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		e.sendError(c, "Invalid payload")
		return
	}
	if p.SessionID == "" || p.PlayerID == "" {
		e.sendError(c, "Missing sessionId or playerId")
		return
	}
	name := p.PlayerName
	if name == "" {
		name = "Player"
	}

	// Switching sessions leaves the old one first; a repeat join of the
	// same session is left alone so it stays idempotent.
	e.leaveCurrent(p.PlayerID, p.SessionID)

	var joined session.Player
	snap, err := e.store.Mutate(p.SessionID, func(s *session.Session) error {
		if s.Status.Terminal() && s.Player(p.PlayerID) == nil {
			return session.ErrSessionOver
		}
		member, err := s.Join(p.PlayerID, name, true)
		if err != nil {
			return err
		}
		// Registry and room move in the same critical section as
		// membership so the two can never drift.
		e.hub.Register(p.PlayerID, c)
		e.hub.JoinRoom(p.SessionID, c)
		joined = *member
		return nil
	})
	if err != nil {
		e.sendError(c, joinErrorMessage(err))
		return
	}

	e.hub.Broadcast(snap.ID, EventPlayerJoin, joined, nil)
	e.hub.SendTo(c, EventSessionState, SessionStatePayload{
		SessionID: snap.ID,
		Players:   snap.Players,
		GameData:  snap.GameData,
		Status:    snap.Status,
	})
	log.Printf("Player %s joined session %s", p.PlayerID, snap.ID)
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, session.ErrSessionFull):
		return "Session is full"
	case errors.Is(err, session.ErrSessionOver):
		return "Session already finished"
	}
	return "Failed to join session"
}

func (e *Engine) handleLeaveSession(c *Client, data json.RawMessage) {
	var p LeaveSessionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		e.sendError(c, "Invalid payload")
		return
	}
	if p.SessionID == "" || p.PlayerID == "" {
		e.sendError(c, "Missing sessionId or playerId")
		return
	}

	if err := e.removePlayer(p.SessionID, p.PlayerID, ReasonLeave, c, nil); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			e.sendError(c, "Session not found")
			return
		}
		e.sendError(c, "Failed to leave session")
		return
	}
	log.Printf("Player %s left session %s", p.PlayerID, p.SessionID)
}

func (e *Engine) handlePlayerReady(c *Client, data json.RawMessage) {
	var p PlayerReadyPayload
	if err := json.Unmarshal(data, &p); err != nil {
		e.sendError(c, "Invalid payload")
		return
	}
	if p.SessionID == "" || p.PlayerID == "" {
		e.sendError(c, "Missing sessionId or playerId")
		return
	}

	_, err := e.store.Mutate(p.SessionID, func(s *session.Session) error {
		if !s.SetReady(p.PlayerID, p.IsReady) {
			return session.ErrNotMember
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			e.sendError(c, "Session not found")
		case errors.Is(err, session.ErrNotMember):
			e.sendError(c, "You are not part of this session")
		default:
			e.sendError(c, "Failed to update ready status")
		}
		return
	}

	e.hub.Broadcast(p.SessionID, EventPlayerReady, ReadyBroadcast{
		PlayerID: p.PlayerID,
		IsReady:  p.IsReady,
	}, nil)
}

func (e *Engine) handleGameUpdate(c *Client, data json.RawMessage) {
	var p GameUpdatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		e.sendError(c, "Invalid payload")
		return
	}
	if p.SessionID == "" || p.PlayerID == "" || len(p.GameData) == 0 {
		e.sendError(c, "Missing required data")
		return
	}

	_, err := e.store.Mutate(p.SessionID, func(s *session.Session) error {
		if s.Player(p.PlayerID) == nil {
			return session.ErrNotMember
		}
		if s.Status.Terminal() {
			return session.ErrSessionOver
		}
		s.GameData = append(json.RawMessage(nil), p.GameData...)
		s.Status = session.StatusActive
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			e.sendError(c, "Session not found")
		case errors.Is(err, session.ErrNotMember):
			e.sendError(c, "You are not part of this session")
		case errors.Is(err, session.ErrSessionOver):
			e.sendError(c, "Session already finished")
		default:
			e.sendError(c, "Failed to update game")
		}
		return
	}

	// The sender already has this state; echoing it back would only race
	// with its next local update.
	e.hub.Broadcast(p.SessionID, EventGameUpdate, GameUpdateBroadcast{
		GameData:     p.GameData,
		PlayerAction: p.PlayerAction,
		Timestamp:    time.Now(),
	}, c)
}

func (e *Engine) handleCommunication(c *Client, data json.RawMessage) {
	var p CommunicationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		e.sendError(c, "Invalid payload")
		return
	}
	if p.SessionID == "" || p.PlayerID == "" || p.Message == "" {
		e.sendError(c, "Missing required data")
		return
	}
	if _, err := e.store.Get(p.SessionID); err != nil {
		e.sendError(c, "Session not found")
		return
	}

	messageType := p.MessageType
	if messageType == "" {
		messageType = "instruction"
	}

	// Ephemeral relay: nothing is stored. toPlayer is a client-side filtering
	// hint; the engine does not enforce unicast.
	e.hub.Broadcast(p.SessionID, EventCommunication, CommunicationBroadcast{
		Message:     p.Message,
		FromPlayer:  p.PlayerID,
		ToPlayer:    p.ToPlayer,
		MessageType: messageType,
		Timestamp:   time.Now(),
	}, nil)
}

func (e *Engine) handleHeartbeat(c *Client, data json.RawMessage) {
	var p HeartbeatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		e.sendError(c, "Invalid payload")
		return
	}
	if p.PlayerID == "" {
		e.sendError(c, "Missing playerId")
		return
	}

	if sid, ok := e.store.FindByPlayer(p.PlayerID); ok {
		e.store.Mutate(sid, func(s *session.Session) error {
			s.Touch(p.PlayerID, time.Now())
			return nil
		})
	}

	e.hub.SendTo(c, EventPong, PongPayload{Timestamp: time.Now()})
}

// Disconnect handles a closed connection: resolve the owning player through
// the reverse index and run the same leave path as an explicit leave, with
// reason "disconnect". Superseded connections only get scrubbed from their
// room; the player's newer connection is untouched.
func (e *Engine) Disconnect(c *Client) {
	if playerID, ok := e.hub.Unregister(c); ok {
		if sid, found := e.store.FindByPlayer(playerID); found {
			e.removePlayer(sid, playerID, ReasonDisconnect, c, nil)
			log.Printf("Player %s disconnected from session %s", playerID, sid)
		}
	}
	e.hub.DropFromRoom(c)
}

// leaveCurrent runs the leave path against whatever other session currently
// lists the player. A session that kept listing a member whose connection
// moved to another room would claim a member its broadcasts never reach, and
// hold a seat nobody can take.
func (e *Engine) leaveCurrent(playerID, except string) {
	if sid, ok := e.store.FindByPlayer(playerID); ok && sid != except {
		e.removePlayer(sid, playerID, ReasonLeave, nil, nil)
	}
}

// EvictStale removes a player whose heartbeats went stale. Driven by the
// presence sweeper; indistinguishable from a disconnect for everyone else in
// the room. The sweeper decided on a snapshot, so staleness is re-checked
// under the session lock; a heartbeat that landed in between cancels the
// eviction.
func (e *Engine) EvictStale(sessionID, playerID string, cutoff time.Time) {
	err := e.removePlayer(sessionID, playerID, ReasonDisconnect, nil, func(p *session.Player) bool {
		return p.IsConnected && !p.LastSeenAt.After(cutoff)
	})
	if err == nil {
		log.Printf("Evicted stale player %s from session %s", playerID, sessionID)
	}
}

// RemovePlayer runs the leave path on behalf of the HTTP surface, so an
// HTTP leave and a websocket leave are the same operation.
func (e *Engine) RemovePlayer(sessionID, playerID string) error {
	return e.removePlayer(sessionID, playerID, ReasonLeave, nil, nil)
}

// NotifyStateChanged fans the current session state out to the room after a
// change made outside the realtime protocol.
func (e *Engine) NotifyStateChanged(snap *session.Snapshot) {
	if snap == nil {
		return
	}
	e.hub.Broadcast(snap.ID, EventSessionState, SessionStatePayload{
		SessionID: snap.ID,
		Players:   snap.Players,
		GameData:  snap.GameData,
		Status:    snap.Status,
	}, nil)
}

// ExpireSession disposes of a finished session once its grace period is
// over.
func (e *Engine) ExpireSession(sessionID string) {
	e.store.Delete(sessionID)
	e.hub.CloseRoom(sessionID)
}

// removePlayer runs the shared leave path: membership, registry and room are
// all updated under the session's lock, then remaining room members hear
// about it. The store drops the session if this removal emptied it. A
// non-nil guard sees the live membership record under the lock and can call
// the removal off.
func (e *Engine) removePlayer(sessionID, playerID, reason string, c *Client, guard func(*session.Player) bool) error {
	_, err := e.store.Mutate(sessionID, func(s *session.Session) error {
		if guard != nil {
			p := s.Player(playerID)
			if p == nil {
				return session.ErrNotMember
			}
			if !guard(p) {
				return errPlayerActive
			}
		}
		if !s.Leave(playerID) {
			return session.ErrNotMember
		}
		if c == nil {
			c = e.hub.Resolve(playerID)
		}
		e.hub.UnregisterPlayer(playerID)
		if c != nil {
			e.hub.LeaveRoom(sessionID, c)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.hub.Broadcast(sessionID, EventPlayerLeave, PlayerLeavePayload{
		PlayerID: playerID,
		Reason:   reason,
	}, nil)
	return nil
}

func (e *Engine) sendError(c *Client, message string) {
	e.hub.SendTo(c, EventError, ErrorPayload{Message: message})
}
