package session

import (
	"log/slog"
	"strings"
	"time"

	"github.com/louisbranch/sharedcart/internal/platform/telemetry/metrics"
	"github.com/louisbranch/sharedcart/internal/services/cart/domain"
)

const defaultDisplayName = "Guest"

// Publisher routes session events to connections. Implementations are called
// with the session lock held and must only enqueue.
type Publisher interface {
	Join(sessionID string, connectionID string)
	Leave(sessionID string, connectionID string)
	Publish(sessionID string, event string, payload any, exclude string) (int, error)
	Send(connectionID string, event string, payload any) (bool, error)
}

// Options configures an Actor.
type Options struct {
	Metrics *metrics.Recorder
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Actor applies participant operations to sessions in the registry.
type Actor struct {
	registry  *Registry
	publisher Publisher
	metrics   *metrics.Recorder
	logger    *slog.Logger
	clock     func() time.Time
}

// NewActor builds an Actor over registry that emits through publisher.
func NewActor(registry *Registry, publisher Publisher, opts Options) *Actor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Actor{
		registry:  registry,
		publisher: publisher,
		metrics:   opts.Metrics,
		logger:    logger,
		clock:     clock,
	}
}

// Join attaches connectionID to sessionID, creating the session when it does
// not exist. The joiner receives sessionJoined with the full snapshot; every
// other participant receives userJoined. A connection that joins a session it
// already belongs to gets a fresh snapshot and its display name is updated,
// but nothing is broadcast.
func (a *Actor) Join(sessionID string, connectionID string, displayName string) (domain.Snapshot, error) {
	normalized, err := domain.NormalizeSessionID(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = defaultDisplayName
	}

	for {
		s, created := a.registry.getOrCreate(normalized, displayName, a.clock())
		s.mu.Lock()
		if s.closed {
			// Lost a race with the last participant leaving; the id is free again.
			s.mu.Unlock()
			continue
		}
		if created {
			a.logger.Info("session created", "session_id", normalized, "creator", displayName)
		}

		added := s.state.AddParticipant(domain.Participant{ConnectionID: connectionID, DisplayName: displayName})
		a.publisher.Join(normalized, connectionID)
		snapshot := s.state.Snapshot()
		a.send(connectionID, EventSessionJoined, snapshot)
		if added {
			a.publish(normalized, EventUserJoined, UserJoined{ConnectionID: connectionID, DisplayName: displayName}, connectionID)
		}
		s.mu.Unlock()

		a.logger.Debug("participant joined",
			"session_id", normalized,
			"connection_id", connectionID,
			"rejoin", !added,
		)
		return snapshot, nil
	}
}

// AddItem appends a validated item. ok is false when the session is absent.
func (a *Actor) AddItem(sessionID string, connectionID string, fields domain.ItemFields) (item domain.Item, ok bool, err error) {
	ok, err = a.mutate(sessionID, func(id string, state *domain.Session) error {
		added, err := state.AddItem(fields, connectionID, a.clock())
		if err != nil {
			return err
		}
		item = added
		a.reconcile(id, state)
		a.publish(id, EventItemAdded, ItemAdded{Item: added, TotalAmount: state.Total()}, "")
		return nil
	})
	return item, ok, err
}

// UpdateItem merges patch into an existing item. ok is false when the
// session or the item is absent.
func (a *Actor) UpdateItem(sessionID string, itemID string, patch domain.ItemPatch) (item domain.Item, ok bool, err error) {
	itemID, err = domain.NormalizeItemID(itemID)
	if err != nil {
		return domain.Item{}, false, err
	}
	found := false
	_, err = a.mutate(sessionID, func(id string, state *domain.Session) error {
		updated, applied, exists, err := state.UpdateItem(itemID, patch)
		if err != nil || !exists {
			return err
		}
		item, found = updated, true
		a.reconcile(id, state)
		a.publish(id, EventItemUpdated, ItemUpdated{ItemID: itemID, Updates: applied, TotalAmount: state.Total()}, "")
		return nil
	})
	return item, found, err
}

// RemoveItem deletes an item. ok is false when the session or the item is
// absent.
func (a *Actor) RemoveItem(sessionID string, itemID string) (ok bool, err error) {
	itemID, err = domain.NormalizeItemID(itemID)
	if err != nil {
		return false, err
	}
	_, err = a.mutate(sessionID, func(id string, state *domain.Session) error {
		if _, ok = state.RemoveItem(itemID); !ok {
			return nil
		}
		a.reconcile(id, state)
		a.publish(id, EventItemRemoved, ItemRemoved{ItemID: itemID, TotalAmount: state.Total()}, "")
		return nil
	})
	return ok, err
}

// SetBudget stores the session budget, treating negative amounts as zero.
func (a *Actor) SetBudget(sessionID string, budget domain.Amount) (stored domain.Amount, ok bool, err error) {
	ok, err = a.mutate(sessionID, func(id string, state *domain.Session) error {
		stored = state.SetBudget(budget)
		a.publish(id, EventBudgetSet, BudgetSet{Budget: stored}, "")
		return nil
	})
	return stored, ok, err
}

// Leave detaches connectionID from sessionID. The last participant to leave
// deletes the session; otherwise the rest receive userLeft. ok is false when
// the connection was not a participant.
func (a *Actor) Leave(sessionID string, connectionID string) (ok bool, err error) {
	normalized, err := domain.NormalizeSessionID(sessionID)
	if err != nil {
		return false, err
	}
	s, exists := a.registry.get(normalized)
	if !exists {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, nil
	}
	participant, removed := s.state.RemoveParticipant(connectionID)
	if !removed {
		return false, nil
	}
	a.publisher.Leave(normalized, connectionID)

	if s.state.ParticipantCount() == 0 {
		s.closed = true
		a.registry.remove(normalized, s)
		a.logger.Info("session closed", "session_id", normalized)
		return true, nil
	}
	a.publish(normalized, EventUserLeft, UserLeft{ConnectionID: participant.ConnectionID, DisplayName: participant.DisplayName}, "")
	a.logger.Debug("participant left", "session_id", normalized, "connection_id", connectionID)
	return true, nil
}

// LeaveAll runs Leave for every session in sessionIDs. It is the disconnect
// path and never fails.
func (a *Actor) LeaveAll(connectionID string, sessionIDs []string) {
	for _, sessionID := range sessionIDs {
		if _, err := a.Leave(sessionID, connectionID); err != nil {
			a.logger.Debug("leave on disconnect", "session_id", sessionID, "connection_id", connectionID, "error", err)
		}
	}
}

// mutate runs fn on a live session under its lock. ok is false, with no
// error, when the session is absent.
func (a *Actor) mutate(sessionID string, fn func(id string, state *domain.Session) error) (ok bool, err error) {
	normalized, err := domain.NormalizeSessionID(sessionID)
	if err != nil {
		return false, err
	}
	s, exists := a.registry.get(normalized)
	if !exists {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, nil
	}
	if err := fn(normalized, s.state); err != nil {
		return true, err
	}
	return true, nil
}

func (a *Actor) reconcile(sessionID string, state *domain.Session) {
	drift, corrected := state.Reconcile()
	if !corrected {
		return
	}
	a.metrics.TotalReconciled()
	a.logger.Warn("session total reconciled",
		"session_id", sessionID,
		"incremental", drift.Incremental.String(),
		"recomputed", drift.Recomputed.String(),
	)
}

func (a *Actor) publish(sessionID string, event string, payload any, exclude string) {
	if _, err := a.publisher.Publish(sessionID, event, payload, exclude); err != nil {
		a.logger.Warn("publish event", "session_id", sessionID, "event", event, "error", err)
	}
}

func (a *Actor) send(connectionID string, event string, payload any) {
	if _, err := a.publisher.Send(connectionID, event, payload); err != nil {
		a.logger.Warn("send event", "connection_id", connectionID, "event", event, "error", err)
	}
}
