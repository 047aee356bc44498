// Package broadcast fans session events out to attached connections.
//
// Each connection owns a bounded outbox drained by its transport writer.
// Publishing never blocks: a connection whose outbox is full is evicted and
// its transport is expected to close and run the normal leave path.
package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/louisbranch/sharedcart/internal/platform/telemetry/metrics"
)

// DefaultOutboxSize bounds each connection's pending outbound messages.
const DefaultOutboxSize = 256

// ErrDuplicateConnection is returned when a connection id is registered twice.
var ErrDuplicateConnection = errors.New("connection already registered")

// Message is one outbound event addressed to a connection.
type Message struct {
	Event     string
	RequestID string
	Payload   json.RawMessage
}

// Outbox is the receive side of a connection's delivery queue.
type Outbox struct {
	connectionID string
	messages     chan Message
	evicted      chan struct{}
	evictOnce    sync.Once
	dead         atomic.Bool
}

// ConnectionID returns the owning connection id.
func (o *Outbox) ConnectionID() string { return o.connectionID }

// Messages yields queued messages in publish order. It is closed on
// Unregister.
func (o *Outbox) Messages() <-chan Message { return o.messages }

// Evicted is closed when the router gave up on this connection.
func (o *Outbox) Evicted() <-chan struct{} { return o.evicted }

func (o *Outbox) evict() bool {
	first := false
	o.evictOnce.Do(func() {
		o.dead.Store(true)
		close(o.evicted)
		first = true
	})
	return first
}

// Options configures a Router.
type Options struct {
	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// Router maps sessions to member connections and delivers events to them.
//
// Outbox channels are closed only under the write lock and written only
// under the read lock.
type Router struct {
	mu      sync.RWMutex
	outbox  map[string]*Outbox
	rooms   map[string]map[string]struct{}
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// NewRouter builds an empty router.
func NewRouter(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		outbox:  make(map[string]*Outbox),
		rooms:   make(map[string]map[string]struct{}),
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// Register creates the outbox for connectionID.
func (r *Router) Register(connectionID string, size int) (*Outbox, error) {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outbox[connectionID]; ok {
		return nil, fmt.Errorf("register %q: %w", connectionID, ErrDuplicateConnection)
	}
	box := &Outbox{
		connectionID: connectionID,
		messages:     make(chan Message, size),
		evicted:      make(chan struct{}),
	}
	r.outbox[connectionID] = box
	return box, nil
}

// Unregister closes the connection's outbox and drops it from every room.
func (r *Router) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	box, ok := r.outbox[connectionID]
	if !ok {
		return
	}
	delete(r.outbox, connectionID)
	box.dead.Store(true)
	close(box.messages)
	for sessionID, members := range r.rooms {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.rooms, sessionID)
		}
	}
}

// Join adds connectionID to the recipients of sessionID.
func (r *Router) Join(sessionID string, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[sessionID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[sessionID] = members
	}
	members[connectionID] = struct{}{}
}

// Leave removes connectionID from the recipients of sessionID.
func (r *Router) Leave(sessionID string, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[sessionID]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.rooms, sessionID)
	}
}

// Members returns the number of connections routed for sessionID.
func (r *Router) Members(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[sessionID])
}

// Publish delivers event to every member of sessionID except exclude and
// returns the number of outboxes that accepted it.
func (r *Router) Publish(sessionID string, event string, payload any, exclude string) (int, error) {
	msg, err := newMessage(event, payload)
	if err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for connectionID := range r.rooms[sessionID] {
		if connectionID == exclude {
			continue
		}
		if r.deliverLocked(r.outbox[connectionID], msg) {
			delivered++
		}
	}
	r.metrics.EventPublished(event)
	return delivered, nil
}

// Send delivers event to a single connection.
func (r *Router) Send(connectionID string, event string, payload any) (bool, error) {
	return r.Reply(connectionID, "", event, payload)
}

// Reply delivers event to a single connection tagged with the request it
// answers.
func (r *Router) Reply(connectionID string, requestID string, event string, payload any) (bool, error) {
	msg, err := newMessage(event, payload)
	if err != nil {
		return false, err
	}
	msg.RequestID = requestID
	r.mu.RLock()
	defer r.mu.RUnlock()
	ok := r.deliverLocked(r.outbox[connectionID], msg)
	if ok {
		r.metrics.EventPublished(event)
	}
	return ok, nil
}

func (r *Router) deliverLocked(box *Outbox, msg Message) bool {
	if box == nil || box.dead.Load() {
		r.metrics.DeliveryDropped(metrics.DropDisconnected)
		return false
	}
	select {
	case box.messages <- msg:
		return true
	default:
	}
	r.metrics.DeliveryDropped(metrics.DropOverflow)
	if box.evict() {
		r.logger.Warn("evicting slow connection",
			"connection_id", box.connectionID,
			"event", msg.Event,
			"pending", len(box.messages),
		)
	}
	return false
}

func newMessage(event string, payload any) (Message, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return Message{Event: event, Payload: raw}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Message{Event: event, Payload: data}, nil
}
