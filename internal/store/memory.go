// internal/store/memory.go
//
// In-memory session store for games in progress.
// Sessions are ephemeral by definition: only the result of a completed match
// is persisted (see the players package), so a process restart simply ends
// every open game.
//
// Characteristics:
//   - Stores *game.Session objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex; Update runs its callback under the
//     write lock so a session is never mutated by two requests at once.
//   - ErrNotFound is returned for unknown session IDs.
//   - Save and Update stamp the session; Expire (or the Janitor loop) drops
//     sessions that have not been stamped within the idle TTL.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/cardgame/internal/game"
)

// ErrNotFound is returned when no session has the requested ID.
var ErrNotFound = errors.New("session not found")

// Store defines the persistence interface for game sessions.
type Store interface {
	// Save persists or replaces a session.
	Save(ctx context.Context, s *game.Session) error

	// Get returns a snapshot copy of the session.
	Get(ctx context.Context, id string) (game.Session, error)

	// Update runs fn against the stored session while holding exclusive
	// access and returns fn's error.
	Update(ctx context.Context, id string, fn func(*game.Session) error) error

	// Delete discards a session. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error
}

type entry struct {
	sess    *game.Session
	touched time.Time
}

// Memory is an in-memory map-based Store implementation.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() *Memory {
	return &Memory{sessions: make(map[string]*entry), now: time.Now}
}

func (m *Memory) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &entry{sess: s, touched: m.now()}
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.sessions[id]; ok {
		return *e.sess, nil
	}
	return game.Session{}, ErrNotFound
}

func (m *Memory) Update(ctx context.Context, id string, fn func(*game.Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.touched = m.now()
	return fn(e.sess)
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports the number of stored sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expire removes sessions not saved or updated within ttl and returns how
// many were dropped.
func (m *Memory) Expire(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for id, e := range m.sessions {
		if e.touched.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Janitor calls Expire every interval until ctx is done.
func (m *Memory) Janitor(ctx context.Context, ttl, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Expire(ttl); n > 0 {
				log.Debug().Int("expired", n).Int("open", m.Len()).Msg("idle sessions dropped")
			}
		}
	}
}
