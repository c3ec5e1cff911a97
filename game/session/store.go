package session

import (
	"sync"
)

// Store is the in-memory table of live sessions. It is safe for concurrent
// use by many handler goroutines. Mutation happens only through Mutate, which
// serializes writers per session; unrelated sessions never block each other.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	// challenges indexes pending challenges by ordered player pair, so
	// duplicate-offer detection happens atomically with creation.
	challenges map[string]string
}

type entry struct {
	mu sync.Mutex
	s  *Session
	// gone marks an entry that was removed from the table while another
	// goroutine already held a reference to it.
	gone bool
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions:   make(map[string]*entry),
		challenges: make(map[string]string),
	}
}

func challengeKey(challengerID, challengedID string) string {
	return challengerID + "\x00" + challengedID
}

// Create adds a new session to the store. The id must be unique; collisions
// cannot happen with generated ids but are still checked. A pending
// challenge is also checked against the challenge index in the same lock,
// so two racing offers between the same pair cannot both land.
func (st *Store) Create(s *Session) (*Snapshot, error) {
	if s == nil || s.ID == "" {
		return nil, ErrSessionNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.sessions[s.ID]; exists {
		return nil, ErrSessionExists
	}
	if s.Status == StatusPending {
		key := challengeKey(s.ChallengerID, s.ChallengedID)
		if _, exists := st.challenges[key]; exists {
			return nil, ErrChallengeExists
		}
		st.challenges[key] = s.ID
	}
	st.sessions[s.ID] = &entry{s: s}
	return s.snapshot(), nil
}

// Get returns a deep copy of the session. Callers never see live state; all
// writes go through Mutate.
func (st *Store) Get(id string) (*Snapshot, error) {
	e, err := st.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return nil, ErrSessionNotFound
	}
	return e.s.snapshot(), nil
}

// Mutate runs fn with exclusive access to one session and returns a snapshot
// of the result. If fn returns an error the session is assumed untouched and
// no snapshot is produced. A session left with zero members is removed from
// the store before Mutate returns, so an emptied session is unreachable the
// moment the emptying event completes.
func (st *Store) Mutate(id string, fn func(*Session) error) (*Snapshot, error) {
	e, err := st.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return nil, ErrSessionNotFound
	}
	if err := fn(e.s); err != nil {
		return nil, err
	}
	snap := e.s.snapshot()
	emptied := e.s.Empty() && e.s.Status != StatusPending
	resolved := e.s.ChallengerID != "" && e.s.Status != StatusPending
	if emptied || resolved {
		st.mu.Lock()
		if resolved {
			st.unindexChallenge(e.s)
		}
		if emptied {
			e.gone = true
			delete(st.sessions, id)
		}
		st.mu.Unlock()
	}
	return snap, nil
}

// Delete removes a session outright, regardless of membership.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	e, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
		// Challenger ids and the session id never change after creation,
		// so they are safe to read without the entry lock.
		if e.s.ChallengerID != "" {
			st.unindexChallenge(e.s)
		}
	}
	st.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	e.mu.Lock()
	e.gone = true
	e.mu.Unlock()
	return nil
}

// ListByStatus returns lightweight summaries of every session in the given
// status, for discovery of open sessions.
func (st *Store) ListByStatus(status Status) []Summary {
	result := make([]Summary, 0)
	for _, e := range st.entries() {
		e.mu.Lock()
		if !e.gone && e.s.Status == status {
			result = append(result, e.s.summary())
		}
		e.mu.Unlock()
	}
	return result
}

// FindByPlayer returns the id of the session that currently lists the player
// as a member. Disconnect and heartbeat events arrive keyed by player, not
// session, so this scan is the bridge between the two.
func (st *Store) FindByPlayer(playerID string) (string, bool) {
	for _, e := range st.entries() {
		e.mu.Lock()
		found := !e.gone && e.s.Player(playerID) != nil
		id := ""
		if found {
			id = e.s.ID
		}
		e.mu.Unlock()
		if found {
			return id, true
		}
	}
	return "", false
}

// FindPendingChallenge returns the id of a pending challenge between the two
// players, if one exists.
func (st *Store) FindPendingChallenge(challengerID, challengedID string) (string, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	id, ok := st.challenges[challengeKey(challengerID, challengedID)]
	return id, ok
}

// ChallengesFor returns snapshots of every pending challenge that the player
// sent or received.
func (st *Store) ChallengesFor(playerID string) (sent, received []*Snapshot) {
	for _, e := range st.entries() {
		e.mu.Lock()
		if !e.gone && e.s.Status == StatusPending {
			switch playerID {
			case e.s.ChallengerID:
				sent = append(sent, e.s.snapshot())
			case e.s.ChallengedID:
				received = append(received, e.s.snapshot())
			}
		}
		e.mu.Unlock()
	}
	return sent, received
}

// Snapshots returns deep copies of every session, for the presence sweep.
func (st *Store) Snapshots() []*Snapshot {
	result := make([]*Snapshot, 0)
	for _, e := range st.entries() {
		e.mu.Lock()
		if !e.gone {
			result = append(result, e.s.snapshot())
		}
		e.mu.Unlock()
	}
	return result
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// unindexChallenge drops the pair index entry once a challenge is resolved
// or its session removed. Callers must hold st.mu.
func (st *Store) unindexChallenge(s *Session) {
	key := challengeKey(s.ChallengerID, s.ChallengedID)
	if st.challenges[key] == s.ID {
		delete(st.challenges, key)
	}
}

func (st *Store) lookup(id string) (*entry, error) {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// entries copies the entry pointers out of the table so that per-entry locks
// are never taken while the table lock is held.
func (st *Store) entries() []*entry {
	st.mu.RLock()
	defer st.mu.RUnlock()
	result := make([]*entry, 0, len(st.sessions))
	for _, e := range st.sessions {
		result = append(result, e)
	}
	return result
}
