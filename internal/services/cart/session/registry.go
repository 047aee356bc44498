package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/sharedcart/internal/platform/id"
	"github.com/louisbranch/sharedcart/internal/platform/telemetry/metrics"
	"github.com/louisbranch/sharedcart/internal/services/cart/domain"
)

const maxCodeAttempts = 16

// ErrCodeSpaceExhausted is returned when no unused join code could be found.
var ErrCodeSpaceExhausted = errors.New("no unused session code available")

// cartSession pairs a session record with its serialization lock.
//
// closed is set, under mu, when the last participant leaves and the entry has
// been removed from the registry. Callers that lock a closed entry must look
// the id up again.
type cartSession struct {
	mu     sync.Mutex
	state  *domain.Session
	closed bool
}

// Registry owns the live sessions keyed by normalized id.
//
// The registry lock guards only map insert, delete and lookup. It is always
// acquired after a session lock, never before one.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*cartSession
	metrics  *metrics.Recorder
}

// NewRegistry builds an empty registry.
func NewRegistry(recorder *metrics.Recorder) *Registry {
	return &Registry{
		sessions: make(map[string]*cartSession),
		metrics:  recorder,
	}
}

func (r *Registry) getOrCreate(sessionID string, creatorName string, now time.Time) (*cartSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[sessionID]; ok {
		return existing, false
	}
	created := &cartSession{state: domain.NewSession(sessionID, creatorName, now)}
	r.sessions[sessionID] = created
	r.metrics.SessionCreated()
	return created, true
}

func (r *Registry) get(sessionID string) (*cartSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// remove deletes sessionID only while it still maps to s.
func (r *Registry) remove(sessionID string, s *cartSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[sessionID]; ok && current == s {
		delete(r.sessions, sessionID)
		r.metrics.SessionRemoved()
	}
}

func (r *Registry) all() []*cartSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*cartSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of resident sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns a directory row for every live session ordered by creation
// time, then id. Each row is read under its session's lock.
func (r *Registry) List() []domain.Summary {
	sessions := r.all()
	out := make([]domain.Summary, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		if !s.closed {
			out = append(out, s.state.Summary())
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Summary returns the directory row for one session.
func (r *Registry) Summary(sessionID string) (domain.Summary, bool) {
	var summary domain.Summary
	found := r.read(sessionID, func(state *domain.Session) {
		summary = state.Summary()
	})
	return summary, found
}

// Snapshot returns the full state of one session.
func (r *Registry) Snapshot(sessionID string) (domain.Snapshot, bool) {
	var snapshot domain.Snapshot
	found := r.read(sessionID, func(state *domain.Session) {
		snapshot = state.Snapshot()
	})
	return snapshot, found
}

func (r *Registry) read(sessionID string, fn func(*domain.Session)) bool {
	normalized, err := domain.NormalizeSessionID(sessionID)
	if err != nil {
		return false
	}
	s, ok := r.get(normalized)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fn(s.state)
	return true
}

// NewCode returns a join code that no live session currently uses.
func (r *Registry) NewCode() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := id.NewCode(id.DefaultCodeLength)
		if err != nil {
			return "", err
		}
		if _, taken := r.get(code); !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
