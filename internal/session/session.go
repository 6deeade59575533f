// Package session tracks the query a client's clicks and ratings refer to.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker holds one client session: its id and the most recent query.
// It is safe for concurrent use.
type Tracker struct {
	id string

	mu        sync.RWMutex
	query     string
	updatedAt time.Time
}

// New starts a session with a random id.
func New() *Tracker {
	return &Tracker{id: uuid.NewString()}
}

// ID returns the session id.
func (t *Tracker) ID() string {
	return t.id
}

// SetQuery records query as the session's current query.
func (t *Tracker) SetQuery(query string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.query = strings.ToLower(strings.TrimSpace(query))
	t.updatedAt = time.Now()
}

// CurrentQuery returns the most recent query, or "" if none was issued.
func (t *Tracker) CurrentQuery() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.query
}

// Reset forgets the current query.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.query = ""
	t.updatedAt = time.Time{}
}

// Info is a point-in-time view of a session.
type Info struct {
	ID           string    `json:"id"`
	CurrentQuery string    `json:"current_query"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Info returns the session's current state.
func (t *Tracker) Info() Info {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Info{ID: t.id, CurrentQuery: t.query, UpdatedAt: t.updatedAt}
}
