package session

import (
	"context"
	"log"
	"time"
)

// EvictFunc removes a player from a session through the full leave path
// (membership, connection registry, room, broadcasts). The sweeper never
// bypasses that path; eviction must look exactly like a disconnect. cutoff
// is the staleness threshold: implementations must re-check the member's
// LastSeenAt against it under the session lock and abort if a heartbeat
// arrived in the meantime.
type EvictFunc func(sessionID, playerID string, cutoff time.Time)

// ExpireFunc disposes of a terminal session once its grace period is over.
type ExpireFunc func(sessionID string)

// Sweeper reconciles session membership with reality: connected members who
// stopped sending heartbeats are evicted, and terminal sessions are dropped
// after a short grace period that allows late reconnects to fetch final
// state.
type Sweeper struct {
	store    *Store
	timeout  time.Duration
	grace    time.Duration
	interval time.Duration
	evict    EvictFunc
	expire   ExpireFunc
}

// NewSweeper creates a sweeper over the given store. evict is required;
// expire may be nil, in which case terminal sessions are deleted directly.
func NewSweeper(store *Store, timeout, grace, interval time.Duration, evict EvictFunc, expire ExpireFunc) *Sweeper {
	sw := &Sweeper{
		store:    store,
		timeout:  timeout,
		grace:    grace,
		interval: interval,
		evict:    evict,
		expire:   expire,
	}
	if sw.expire == nil {
		sw.expire = func(id string) { store.Delete(id) }
	}
	return sw
}

// Run sweeps on a ticker until the context is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stale, expired := sw.Sweep(time.Now())
			if stale > 0 || expired > 0 {
				log.Printf("Presence sweep: evicted %d stale players, expired %d finished sessions", stale, expired)
			}
		}
	}
}

// Sweep performs one pass and reports how many players were flagged for
// eviction and how many terminal sessions were expired. Candidates are
// picked on snapshots; the cutoff travels with the eviction so the evictor
// can re-validate staleness under the session lock, and a heartbeat that
// raced the sweep wins.
func (sw *Sweeper) Sweep(now time.Time) (stale, expired int) {
	cutoff := now.Add(-sw.timeout)
	for _, snap := range sw.store.Snapshots() {
		if snap.Status.Terminal() {
			if now.Sub(snap.EndedAt) > sw.grace {
				sw.expire(snap.ID)
				expired++
			}
			continue
		}
		for i := range snap.Players {
			p := &snap.Players[i]
			if p.IsConnected && p.LastSeenAt.Before(cutoff) {
				sw.evict(snap.ID, p.ID, cutoff)
				stale++
			}
		}
	}
	return stale, expired
}
