package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/websocket"

	apperrors "github.com/louisbranch/sharedcart/internal/platform/errors"
	"github.com/louisbranch/sharedcart/internal/platform/id"
	"github.com/louisbranch/sharedcart/internal/platform/telemetry/metrics"
	"github.com/louisbranch/sharedcart/internal/services/cart/broadcast"
	"github.com/louisbranch/sharedcart/internal/services/cart/domain"
	"github.com/louisbranch/sharedcart/internal/services/cart/session"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFrameBytes          = 4 * maxFramePayloadBytes
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	eventError = "error"
)

// Inbound frame types.
const (
	frameJoinSession  = "joinSession"
	frameAddItem      = "addItem"
	frameUpdateItem   = "updateItem"
	frameRemoveItem   = "removeItem"
	frameSetBudget    = "setBudget"
	frameLeaveSession = "leaveSession"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type joinPayload struct {
	SessionID   string `json:"sessionId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

func (p joinPayload) name() string {
	if p.Username != "" {
		return p.Username
	}
	return p.DisplayName
}

type addItemPayload struct {
	SessionID string            `json:"sessionId"`
	Item      domain.ItemFields `json:"item"`
}

type updateItemPayload struct {
	SessionID string           `json:"sessionId"`
	ItemID    string           `json:"itemId"`
	Updates   domain.ItemPatch `json:"updates"`
}

type removeItemPayload struct {
	SessionID string `json:"sessionId"`
	ItemID    string `json:"itemId"`
}

type setBudgetPayload struct {
	SessionID string         `json:"sessionId"`
	Budget    *domain.Amount `json:"budget"`
}

type leavePayload struct {
	SessionID string `json:"sessionId"`
}

// gateway adapts WebSocket connections to the session actor.
type gateway struct {
	actor        *session.Actor
	router       *broadcast.Router
	metrics      *metrics.Recorder
	logger       *slog.Logger
	tracer       trace.Tracer
	cors         *cors.Cors
	outboxSize   int
	writeTimeout time.Duration

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func newGateway(deps handlerDeps, corsPolicy *cors.Cors) *gateway {
	return &gateway{
		actor:        deps.actor,
		router:       deps.router,
		metrics:      deps.metrics,
		logger:       deps.logger,
		tracer:       otel.Tracer(tracerName),
		cors:         corsPolicy,
		outboxSize:   deps.outboxSize,
		writeTimeout: deps.writeTimeout,
		conns:        make(map[string]*websocket.Conn),
	}
}

func (g *gateway) handler() http.Handler {
	ws := websocket.Server{
		Handshake: g.handshake,
		Handler:   g.serveConn,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ws.ServeHTTP(w, r)
	})
}

func (g *gateway) handshake(_ *websocket.Config, r *http.Request) error {
	if r.Header.Get("Origin") == "" || g.cors == nil {
		return nil
	}
	if !g.cors.OriginAllowed(r) {
		return fmt.Errorf("origin %q not allowed", r.Header.Get("Origin"))
	}
	return nil
}

// connState is owned by the connection's reader goroutine.
type connState struct {
	id     string
	joined []string
}

func (c *connState) join(sessionID string) {
	for _, existing := range c.joined {
		if existing == sessionID {
			return
		}
	}
	c.joined = append(c.joined, sessionID)
}

func (c *connState) leave(sessionID string) {
	for i, existing := range c.joined {
		if existing == sessionID {
			c.joined = append(c.joined[:i], c.joined[i+1:]...)
			return
		}
	}
}

func (g *gateway) serveConn(conn *websocket.Conn) {
	conn.MaxPayloadBytes = maxFrameBytes
	connectionID, err := id.NewID()
	if err != nil {
		g.logger.Error("allocate connection id", "error", err)
		_ = conn.Close()
		return
	}
	box, err := g.router.Register(connectionID, g.outboxSize)
	if err != nil {
		g.logger.Error("register connection", "connection_id", connectionID, "error", err)
		_ = conn.Close()
		return
	}
	g.track(connectionID, conn)
	g.metrics.ConnectionOpened()
	logger := g.logger.With("connection_id", connectionID)
	logger.Debug("connection opened", "remote", conn.Request().RemoteAddr)

	state := &connState{id: connectionID}
	writerDone := make(chan struct{})
	go g.writeLoop(conn, box, logger, writerDone)

	defer func() {
		g.actor.LeaveAll(connectionID, state.joined)
		g.router.Unregister(connectionID)
		<-writerDone
		_ = conn.Close()
		g.untrack(connectionID)
		g.metrics.ConnectionClosed()
		logger.Debug("connection closed")
	}()

	ctx := conn.Request().Context()
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				g.reject(state, "", apperrors.New(apperrors.CodeInvalidArgument, "payload too large"))
				continue
			}
			return
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			g.reject(state, "", apperrors.New(apperrors.CodeResourceExhausted, "rate limit exceeded"))
			logger.Warn("closing connection over frame rate limit")
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			decodeErrors++
			g.reject(state, "", apperrors.New(apperrors.CodeInvalidArgument, "invalid frame payload"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				logger.Warn("closing connection after repeated decode errors")
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			g.reject(state, frame.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "payload too large"))
			continue
		}
		g.dispatch(ctx, state, frame)
	}
}

func (g *gateway) writeLoop(conn *websocket.Conn, box *broadcast.Outbox, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)
	encoder := json.NewEncoder(conn)
	for {
		select {
		case msg, ok := <-box.Messages():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(g.writeTimeout))
			err := encoder.Encode(wsFrame{Type: msg.Event, RequestID: msg.RequestID, Payload: msg.Payload})
			if err != nil {
				logger.Debug("write frame", "event", msg.Event, "error", err)
				_ = conn.Close()
				return
			}
		case <-box.Evicted():
			_ = conn.Close()
			return
		}
	}
}

func (g *gateway) dispatch(ctx context.Context, state *connState, frame wsFrame) {
	ctx, span := g.tracer.Start(ctx, "cart.ws."+frame.Type,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("cart.connection_id", state.id)),
	)
	defer span.End()

	sessionID, err := g.handleFrame(ctx, state, frame)
	if sessionID != "" {
		span.SetAttributes(attribute.String("cart.session_id", sessionID))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		g.reject(state, frame.RequestID, err)
	}
}

// handleFrame applies one inbound frame and returns the session it targeted.
func (g *gateway) handleFrame(_ context.Context, state *connState, frame wsFrame) (string, error) {
	switch frame.Type {
	case frameJoinSession:
		var p joinPayload
		if err := decodePayload(frame, &p, apperrors.CodeInvalidArgument); err != nil {
			return "", err
		}
		snapshot, err := g.actor.Join(p.SessionID, state.id, p.name())
		if err != nil {
			return p.SessionID, err
		}
		state.join(snapshot.ID)
		return snapshot.ID, nil

	case frameAddItem:
		var p addItemPayload
		if err := decodePayload(frame, &p, apperrors.CodeCartInvalidPrice); err != nil {
			return "", err
		}
		_, _, err := g.actor.AddItem(p.SessionID, state.id, p.Item)
		return p.SessionID, err

	case frameUpdateItem:
		var p updateItemPayload
		if err := decodePayload(frame, &p, apperrors.CodeCartInvalidPrice); err != nil {
			return "", err
		}
		_, _, err := g.actor.UpdateItem(p.SessionID, p.ItemID, p.Updates)
		return p.SessionID, err

	case frameRemoveItem:
		var p removeItemPayload
		if err := decodePayload(frame, &p, apperrors.CodeInvalidArgument); err != nil {
			return "", err
		}
		_, err := g.actor.RemoveItem(p.SessionID, p.ItemID)
		return p.SessionID, err

	case frameSetBudget:
		var p setBudgetPayload
		if err := decodePayload(frame, &p, apperrors.CodeCartInvalidBudget); err != nil {
			return "", err
		}
		if p.Budget == nil {
			return p.SessionID, apperrors.New(apperrors.CodeCartInvalidBudget, "budget must be a number")
		}
		_, _, err := g.actor.SetBudget(p.SessionID, *p.Budget)
		return p.SessionID, err

	case frameLeaveSession:
		var p leavePayload
		if err := decodePayload(frame, &p, apperrors.CodeInvalidArgument); err != nil {
			return "", err
		}
		normalized, err := domain.NormalizeSessionID(p.SessionID)
		if err != nil {
			return "", err
		}
		if _, err := g.actor.Leave(normalized, state.id); err != nil {
			return normalized, err
		}
		state.leave(normalized)
		return normalized, nil

	default:
		return "", apperrors.New(apperrors.CodeInvalidArgument, "unsupported frame type")
	}
}

// decodePayload unmarshals a frame payload. Amount decoding failures are
// reported under amountCode so clients can tell a bad price from a bad frame.
func decodePayload(frame wsFrame, target any, amountCode apperrors.Code) error {
	if len(frame.Payload) == 0 {
		return apperrors.New(apperrors.CodeInvalidArgument, "payload is required")
	}
	if err := json.Unmarshal(frame.Payload, target); err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeInvalidArgument && amountCode != apperrors.CodeInvalidArgument {
			return apperrors.Wrap(amountCode, err.Error(), err)
		}
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid "+frame.Type+" payload", err)
	}
	return nil
}

func (g *gateway) reject(state *connState, requestID string, err error) {
	code := apperrors.CodeOf(err)
	message := err.Error()
	if code == apperrors.CodeUnknown {
		code = apperrors.CodeInternal
		message = "internal error"
		g.logger.Warn("frame failed", "connection_id", state.id, "error", err)
	}
	g.metrics.FrameRejected(string(code))
	if _, sendErr := g.router.Reply(state.id, requestID, eventError, wsError{
		Code:      string(code),
		Message:   message,
		Retryable: code.Retryable(),
	}); sendErr != nil {
		g.logger.Debug("reply error frame", "connection_id", state.id, "error", sendErr)
	}
}

func (g *gateway) track(connectionID string, conn *websocket.Conn) {
	g.mu.Lock()
	g.conns[connectionID] = conn
	g.mu.Unlock()
}

func (g *gateway) untrack(connectionID string) {
	g.mu.Lock()
	delete(g.conns, connectionID)
	g.mu.Unlock()
}

// closeAll closes every live connection so their handlers run the leave path.
func (g *gateway) closeAll() {
	g.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(g.conns))
	for _, conn := range g.conns {
		conns = append(conns, conn)
	}
	g.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}
