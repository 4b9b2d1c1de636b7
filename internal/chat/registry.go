package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/healthdesk/internal/notify"
)

// ErrSessionNotFound is returned for unknown handles and for handles owned
// by someone else.
var ErrSessionNotFound = errors.New("chat session not found")

type entry struct {
	owner    string
	session  *Session
	lastUsed time.Time
}

// Registry tracks the sessions of open workspace views. Sessions live only
// in memory and vanish when closed or, with Run, after sitting idle.
type Registry struct {
	service  Service
	notifier notify.Notifier
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]entry
}

func NewRegistry(service Service, notifier notify.Notifier) *Registry {
	return &Registry{
		service:  service,
		notifier: notifier,
		now:      time.Now,
		sessions: make(map[string]entry),
	}
}

// Open starts a fresh session for owner in workspaceID and returns its handle.
func (r *Registry) Open(owner, workspaceID string) (string, *Session) {
	s := NewSession(workspaceID, owner, r.service, r.notifier)
	id := uuid.New().String()

	r.mu.Lock()
	r.sessions[id] = entry{owner: owner, session: s, lastUsed: r.now()}
	r.mu.Unlock()
	return id, s
}

func (r *Registry) Get(owner, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.owner != owner {
		return nil, ErrSessionNotFound
	}
	e.lastUsed = r.now()
	r.sessions[id] = e
	return e.session, nil
}

// Close discards the session and its transcript.
func (r *Registry) Close(owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.owner != owner {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// CloseWorkspace discards every session open on workspaceID, e.g. after the
// workspace was deleted. It returns how many were closed.
func (r *Registry) CloseWorkspace(owner, workspaceID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if e.owner == owner && e.session.WorkspaceID() == workspaceID {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Len reports the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions nobody has touched for longer than maxIdle. A
// session with a request in flight is kept. It returns how many were closed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) && !e.session.Pending() {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done. A non-positive maxIdle
// disables eviction.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(maxIdle); n > 0 {
				slog.Debug("evicted idle chat sessions", "count", n, "open", r.Len())
			}
		}
	}
}
