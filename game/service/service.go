package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/playdate-app/playdate-server/game/session"
	"github.com/playdate-app/playdate-server/identity"
	"github.com/playdate-app/playdate-server/persist"
)

// GameService is the non-realtime surface over the session store. It serves
// the HTTP endpoints and the challenge flow, reading and writing the same
// store the realtime protocol uses, so both surfaces always agree.
type GameService interface {
	// Session management
	CreateSession(ctx context.Context, gameType, playerID, playerName string) (*session.Snapshot, error)
	GetSession(ctx context.Context, sessionID string) (*session.Snapshot, error)
	JoinSession(ctx context.Context, sessionID, playerID, playerName string) (*session.Snapshot, error)
	UpdateState(ctx context.Context, sessionID, playerID string, gameData json.RawMessage, status session.Status) (*session.Snapshot, error)
	ListOpenSessions(ctx context.Context) []session.Summary

	// Challenges
	SendChallenge(ctx context.Context, challengerID, challengedID, gameType string) (*Challenge, error)
	RespondToChallenge(ctx context.Context, sessionID, playerID string, accept bool) (*session.Snapshot, error)
	PendingChallenges(ctx context.Context, playerID string) (*ChallengeList, error)
}

type gameService struct {
	store    *session.Store
	identity identity.Resolver
	recorder persist.Recorder
}

// New creates a game service over the shared session store. recorder may be
// nil; outcomes are then discarded.
func New(store *session.Store, resolver identity.Resolver, recorder persist.Recorder) GameService {
	if recorder == nil {
		recorder = persist.Noop{}
	}
	return &gameService{
		store:    store,
		identity: resolver,
		recorder: recorder,
	}
}

// CreateSession creates a waiting session with the creator pre-seated as a
// disconnected member. The member flips to connected when a live connection
// later joins through the realtime protocol.
func (g *gameService) CreateSession(ctx context.Context, gameType, playerID, playerName string) (*session.Snapshot, error) {
	if gameType == "" || playerID == "" {
		return nil, fmt.Errorf("gameType and playerId are required: %w", ErrMissingField)
	}
	if playerName == "" {
		playerName = g.displayName(ctx, playerID)
	}

	s := session.New(session.NewID(), gameType)
	s.Join(playerID, playerName, false)

	snap, err := g.store.Create(s)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return snap, nil
}

// GetSession returns a snapshot of one session.
func (g *gameService) GetSession(ctx context.Context, sessionID string) (*session.Snapshot, error) {
	return g.store.Get(sessionID)
}

// JoinSession upserts a disconnected membership through the HTTP surface.
func (g *gameService) JoinSession(ctx context.Context, sessionID, playerID, playerName string) (*session.Snapshot, error) {
	if playerName == "" {
		playerName = g.displayName(ctx, playerID)
	}
	return g.store.Mutate(sessionID, func(s *session.Session) error {
		if s.Status.Terminal() && s.Player(playerID) == nil {
			return session.ErrSessionOver
		}
		if p := s.Player(playerID); p != nil {
			// Already a member; HTTP join must not clobber the realtime
			// connection flag.
			return nil
		}
		_, err := s.Join(playerID, playerName, false)
		return err
	})
}

// UpdateState replaces game data and optionally moves the session's status.
// A terminal transition snapshots the session and hands it to the outcome
// recorder asynchronously, after the session lock is released.
func (g *gameService) UpdateState(ctx context.Context, sessionID, playerID string, gameData json.RawMessage, status session.Status) (*session.Snapshot, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}

	finished := false
	snap, err := g.store.Mutate(sessionID, func(s *session.Session) error {
		if s.Player(playerID) == nil {
			return session.ErrNotMember
		}
		if s.Status.Terminal() {
			return session.ErrSessionOver
		}
		if status != "" && status != s.Status {
			switch {
			case status.Terminal():
				if err := s.Finish(status); err != nil {
					return err
				}
				finished = true
			case status == session.StatusActive && s.Status == session.StatusWaiting:
				s.Status = session.StatusActive
			default:
				return ErrInvalidTransition
			}
		}
		if len(gameData) > 0 {
			s.GameData = append(json.RawMessage(nil), gameData...)
			if !s.Status.Terminal() {
				s.Status = session.StatusActive
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if finished {
		go g.recordOutcome(snap)
	}
	return snap, nil
}

// ListOpenSessions returns summaries of sessions waiting for players.
func (g *gameService) ListOpenSessions(ctx context.Context) []session.Summary {
	return g.store.ListByStatus(session.StatusWaiting)
}

// SendChallenge creates a pending challenge offer from one user to another.
func (g *gameService) SendChallenge(ctx context.Context, challengerID, challengedID, gameType string) (*Challenge, error) {
	if challengerID == challengedID {
		return nil, ErrSelfChallenge
	}

	challenged, err := g.identity.Resolve(ctx, challengedID)
	if err != nil {
		return nil, err
	}
	challenger, err := g.identity.Resolve(ctx, challengerID)
	if err != nil {
		return nil, err
	}

	// Duplicate detection is the store's: the pair index check and the
	// create share one lock, so racing offers cannot both land.
	snap, err := g.store.Create(session.NewPending(session.NewID(), gameType, challengerID, challengedID))
	if err != nil {
		if errors.Is(err, session.ErrChallengeExists) {
			return nil, ErrChallengePending
		}
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	return &Challenge{
		SessionID:  snap.ID,
		GameType:   snap.GameType,
		IsSent:     true,
		Challenger: &challenger,
		Challenged: &challenged,
		CreatedAt:  snap.CreatedAt,
	}, nil
}

// RespondToChallenge accepts or declines a pending challenge. Accepting
// moves the session to waiting with both participants pre-seated but
// disconnected; each player's live connection joins later with the session
// id. Declining evicts the offer.
func (g *gameService) RespondToChallenge(ctx context.Context, sessionID, playerID string, accept bool) (*session.Snapshot, error) {
	declined := false
	snap, err := g.store.Mutate(sessionID, func(s *session.Session) error {
		if s.Status != session.StatusPending {
			return ErrAlreadyResponded
		}
		if s.ChallengedID != playerID {
			return ErrNotChallenged
		}
		if !accept {
			// Leaving pending status with no members makes the store drop
			// the session inside this same mutation, so a racing accept
			// can only ever see pending or nothing.
			declined = true
			s.Status = session.StatusAbandoned
			return nil
		}
		s.Status = session.StatusWaiting
		if _, err := s.Join(s.ChallengerID, g.displayName(ctx, s.ChallengerID), false); err != nil {
			return err
		}
		if _, err := s.Join(s.ChallengedID, g.displayName(ctx, s.ChallengedID), false); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if declined {
		return nil, nil
	}
	return snap, nil
}

// PendingChallenges lists a player's unanswered challenges, sent and
// received, with display names resolved through the identity service.
func (g *gameService) PendingChallenges(ctx context.Context, playerID string) (*ChallengeList, error) {
	sent, received := g.store.ChallengesFor(playerID)

	list := &ChallengeList{
		Sent:     make([]Challenge, 0, len(sent)),
		Received: make([]Challenge, 0, len(received)),
	}
	for _, snap := range sent {
		list.Sent = append(list.Sent, g.formatChallenge(ctx, snap, true))
	}
	for _, snap := range received {
		list.Received = append(list.Received, g.formatChallenge(ctx, snap, false))
	}
	return list, nil
}

func (g *gameService) formatChallenge(ctx context.Context, snap *session.Snapshot, isSent bool) Challenge {
	c := Challenge{
		SessionID: snap.ID,
		GameType:  snap.GameType,
		IsSent:    isSent,
		CreatedAt: snap.CreatedAt,
	}
	if p, err := g.identity.Resolve(ctx, snap.ChallengerID); err == nil {
		c.Challenger = &p
	}
	if p, err := g.identity.Resolve(ctx, snap.ChallengedID); err == nil {
		c.Challenged = &p
	}
	return c
}

func (g *gameService) displayName(ctx context.Context, playerID string) string {
	if p, err := g.identity.Resolve(ctx, playerID); err == nil && p.Name != "" {
		return p.Name
	}
	return "Player"
}

// recordOutcome hands a terminal snapshot to the persistence service.
// Best-effort: failures are logged for out-of-band retry and never surface
// to clients.
func (g *gameService) recordOutcome(snap *session.Snapshot) {
	if err := g.recorder.RecordOutcome(context.Background(), snap); err != nil {
		log.Printf("Warning: Failed to record outcome for session %s: %v", snap.ID, err)
	}
}
