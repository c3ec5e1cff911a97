package service

import (
	"errors"
	"time"

	"github.com/playdate-app/playdate-server/identity"
)

var (
	ErrMissingField      = errors.New("missing required field")
	ErrChallengePending  = errors.New("challenge already sent")
	ErrAlreadyResponded  = errors.New("challenge already responded to")
	ErrNotChallenged     = errors.New("player is not the challenged user")
	ErrSelfChallenge     = errors.New("cannot challenge yourself")
	ErrInvalidStatus     = errors.New("invalid session status")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// Challenge is the API shape of an asynchronous game invitation.
type Challenge struct {
	SessionID  string            `json:"sessionId"`
	GameType   string            `json:"gameType"`
	IsSent     bool              `json:"isSent"`
	Challenger *identity.Profile `json:"challenger"`
	Challenged *identity.Profile `json:"challenged"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// ChallengeList groups a player's pending challenges by direction.
type ChallengeList struct {
	Sent     []Challenge `json:"sentChallenges"`
	Received []Challenge `json:"receivedChallenges"`
}
