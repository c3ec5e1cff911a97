package websocket

import (
	"encoding/json"
	"time"

	"github.com/playdate-app/playdate-server/game/session"
)

// Inbound event names (client to engine). player_ready, game_update and
// communication are echoed back out under the same names.
const (
	EventCreateSession = "create_session"
	EventJoinSession   = "join_session"
	EventLeaveSession  = "leave_session"
	EventPlayerReady   = "player_ready"
	EventGameUpdate    = "game_update"
	EventCommunication = "communication"
	EventHeartbeat     = "heartbeat"
)

// Outbound-only event names (engine to client).
const (
	EventConnected      = "connected"
	EventSessionCreated = "session_created"
	EventPlayerJoin     = "player_join"
	EventSessionState   = "session_state"
	EventPlayerLeave    = "player_leave"
	EventPong           = "pong"
	EventError          = "error"
)

// Leave reasons carried by player_leave events.
const (
	ReasonLeave      = "leave"
	ReasonDisconnect = "disconnect"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads. Every field is untrusted until the handler validates it.

type CreateSessionPayload struct {
	GameType   string `json:"gameType"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type JoinSessionPayload struct {
	SessionID  string `json:"sessionId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type LeaveSessionPayload struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
}

type PlayerReadyPayload struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
	IsReady   bool   `json:"isReady"`
}

type GameUpdatePayload struct {
	SessionID    string          `json:"sessionId"`
	PlayerID     string          `json:"playerId"`
	GameData     json.RawMessage `json:"gameData"`
	PlayerAction json.RawMessage `json:"playerAction,omitempty"`
}

type CommunicationPayload struct {
	SessionID   string `json:"sessionId"`
	PlayerID    string `json:"playerId"`
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
	ToPlayer    string `json:"toPlayer,omitempty"`
}

type HeartbeatPayload struct {
	PlayerID  string          `json:"playerId"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// Outbound payloads.

type ConnectedPayload struct {
	Message string `json:"message"`
}

type SessionCreatedPayload struct {
	SessionID string           `json:"sessionId"`
	GameType  string           `json:"gameType"`
	Players   []session.Player `json:"players"`
}

type SessionStatePayload struct {
	SessionID string           `json:"sessionId"`
	Players   []session.Player `json:"players"`
	GameData  json.RawMessage  `json:"gameData"`
	Status    session.Status   `json:"status"`
}

type PlayerLeavePayload struct {
	PlayerID string `json:"playerId"`
	Reason   string `json:"reason"`
}

type ReadyBroadcast struct {
	PlayerID string `json:"playerId"`
	IsReady  bool   `json:"isReady"`
}

type GameUpdateBroadcast struct {
	GameData     json.RawMessage `json:"gameData"`
	PlayerAction json.RawMessage `json:"playerAction,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

type CommunicationBroadcast struct {
	Message     string    `json:"message"`
	FromPlayer  string    `json:"fromPlayer"`
	ToPlayer    string    `json:"toPlayer,omitempty"`
	MessageType string    `json:"messageType"`
	Timestamp   time.Time `json:"timestamp"`
}

type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// marshalEvent frames an event and its payload for the wire.
func marshalEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
