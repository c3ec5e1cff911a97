package session

import (
	"encoding/json"
	"errors"
	"time"
)

// MaxPlayers is the membership cap for every session. The realtime protocol
// is written for two-player games; the cap is a constant, not configuration.
const MaxPlayers = 2

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionFull     = errors.New("session is full")
	ErrSessionOver     = errors.New("session already finished")
	ErrNotMember       = errors.New("player is not part of this session")
	// ErrChallengeExists rejects a second pending challenge between the
	// same ordered pair of players.
	ErrChallengeExists = errors.New("challenge already pending")
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusPending marks a challenge offer that has not been answered yet.
	// Spontaneously created sessions never pass through this state.
	StatusPending Status = "pending"
	// StatusWaiting marks a session waiting for players to connect or ready up.
	StatusWaiting Status = "waiting"
	// StatusActive marks a session with game updates flowing.
	StatusActive Status = "active"
	// StatusCompleted and StatusAbandoned are terminal; state is frozen.
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether the status freezes the session.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusWaiting, StatusActive, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// Player is one membership record inside a session. Membership is logical:
// a player can be a member while disconnected (IsConnected=false), which is
// how accepted challenges pre-seat both participants.
type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsReady     bool      `json:"isReady"`
	IsConnected bool      `json:"isConnected"`
	JoinedAt    time.Time `json:"joined_at"`
	LastSeenAt  time.Time `json:"last_seen"`
}

// Session is the central aggregate: one instance of up to two players engaged
// in (or waiting to start) a single game round. All mutation goes through
// Store.Mutate; Session methods assume the caller holds that serialization.
type Session struct {
	ID       string          `json:"id"`
	GameType string          `json:"gameType"`
	Status   Status          `json:"status"`
	Players  []*Player       `json:"players"`
	GameData json.RawMessage `json:"gameData"`

	// Challenge bookkeeping, set only for sessions born from a challenge.
	ChallengerID string `json:"challengerId,omitempty"`
	ChallengedID string `json:"challengedId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
}

// New creates a spontaneous session that starts in the waiting state.
func New(id, gameType string) *Session {
	return &Session{
		ID:        id,
		GameType:  gameType,
		Status:    StatusWaiting,
		Players:   []*Player{},
		CreatedAt: time.Now(),
	}
}

// NewPending creates a challenge offer awaiting a response. No memberships
// exist until the challenge is accepted.
func NewPending(id, gameType, challengerID, challengedID string) *Session {
	s := New(id, gameType)
	s.Status = StatusPending
	s.ChallengerID = challengerID
	s.ChallengedID = challengedID
	return s
}

// Player returns the membership record for the given player id, or nil.
func (s *Session) Player(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Join upserts a membership. Re-joining is idempotent: the existing record is
// marked connected and its join time refreshed. A new player id is rejected
// with ErrSessionFull once the cap is reached.
func (s *Session) Join(id, name string, connected bool) (*Player, error) {
	now := time.Now()
	if p := s.Player(id); p != nil {
		p.IsConnected = connected
		p.JoinedAt = now
		p.LastSeenAt = now
		if name != "" {
			p.Name = name
		}
		return p, nil
	}
	if len(s.Players) >= MaxPlayers {
		return nil, ErrSessionFull
	}
	p := &Player{
		ID:          id,
		Name:        name,
		IsConnected: connected,
		JoinedAt:    now,
		LastSeenAt:  now,
	}
	s.Players = append(s.Players, p)
	return p, nil
}

// Leave removes a membership and reports whether the player was a member.
func (s *Session) Leave(id string) bool {
	for i, p := range s.Players {
		if p.ID == id {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			return true
		}
	}
	return false
}

// SetReady flips the ready flag for a member.
func (s *Session) SetReady(id string, ready bool) bool {
	p := s.Player(id)
	if p == nil {
		return false
	}
	p.IsReady = ready
	return true
}

// Touch refreshes a member's heartbeat time.
func (s *Session) Touch(id string, now time.Time) bool {
	p := s.Player(id)
	if p == nil {
		return false
	}
	p.LastSeenAt = now
	return true
}

// Finish moves the session to a terminal status and stamps the end time.
func (s *Session) Finish(status Status) error {
	if !status.Terminal() {
		return errors.New("status is not terminal: " + string(status))
	}
	if s.Status.Terminal() {
		return ErrSessionOver
	}
	s.Status = status
	s.EndedAt = time.Now()
	return nil
}

// Empty reports whether the session has no members left.
func (s *Session) Empty() bool {
	return len(s.Players) == 0
}

// Snapshot is a deep, immutable copy of a session, safe to hand to
// broadcasters and recorders after the session lock is released.
type Snapshot struct {
	ID           string          `json:"id"`
	GameType     string          `json:"gameType"`
	Status       Status          `json:"status"`
	Players      []Player        `json:"players"`
	GameData     json.RawMessage `json:"gameData"`
	ChallengerID string          `json:"challengerId,omitempty"`
	ChallengedID string          `json:"challengedId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	EndedAt      time.Time       `json:"endedAt,omitempty"`
}

// Player returns the membership record in the snapshot, or nil.
func (sn *Snapshot) Player(id string) *Player {
	for i := range sn.Players {
		if sn.Players[i].ID == id {
			return &sn.Players[i]
		}
	}
	return nil
}

func (s *Session) snapshot() *Snapshot {
	players := make([]Player, len(s.Players))
	for i, p := range s.Players {
		players[i] = *p
	}
	var data json.RawMessage
	if s.GameData != nil {
		data = append(json.RawMessage(nil), s.GameData...)
	}
	return &Snapshot{
		ID:           s.ID,
		GameType:     s.GameType,
		Status:       s.Status,
		Players:      players,
		GameData:     data,
		ChallengerID: s.ChallengerID,
		ChallengedID: s.ChallengedID,
		CreatedAt:    s.CreatedAt,
		EndedAt:      s.EndedAt,
	}
}

// Summary is the lightweight listing shape used for session discovery. It
// deliberately omits game data and member identities.
type Summary struct {
	ID          string    `json:"sessionId"`
	GameType    string    `json:"gameType"`
	PlayerCount int       `json:"players"`
	MaxPlayers  int       `json:"maxPlayers"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *Session) summary() Summary {
	return Summary{
		ID:          s.ID,
		GameType:    s.GameType,
		PlayerCount: len(s.Players),
		MaxPlayers:  MaxPlayers,
		Status:      s.Status,
		CreatedAt:   s.CreatedAt,
	}
}
