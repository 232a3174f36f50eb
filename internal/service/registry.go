package service

import (
	"sort"
	"sync"
)

// SessionEntry is a live session with the outbox it renders to.
type SessionEntry struct {
	Session *MapSession
	Outbox  *Outbox
}

// Registry owns the live map sessions, keyed by session ID.
type Registry struct {
	fetch   Fetcher
	cfg     SessionConfig
	entries map[string]SessionEntry
	mu      sync.RWMutex
}

// NewRegistry creates a registry whose sessions use fetch and cfg.
func NewRegistry(fetch Fetcher, cfg SessionConfig) *Registry {
	return &Registry{
		fetch:   fetch,
		cfg:     cfg,
		entries: make(map[string]SessionEntry),
	}
}

// Create starts a new session rendering into a fresh outbox.
func (r *Registry) Create() SessionEntry {
	out := NewOutbox()
	e := SessionEntry{Session: NewSession(r.fetch, out, r.cfg), Outbox: out}

	r.mu.Lock()
	r.entries[e.Session.ID()] = e
	r.mu.Unlock()
	return e
}

// Get returns a session by ID.
func (r *Registry) Get(id string) (SessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	return e, ok
}

// Delete removes a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// List returns all sessions, oldest first.
func (r *Registry) List() []*MapSession {
	r.mu.RLock()
	result := make([]*MapSession, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e.Session)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].created.Equal(result[j].created) {
			return result[i].id < result[j].id
		}
		return result[i].created.Before(result[j].created)
	})
	return result
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
