// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hub manages the live connection to the push-messaging hub.
package hub

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ConnError represents an error from the hub connection.
type ConnError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ConnError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ConnError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes connection errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeDial
	ErrTypeHandshake
	ErrTypeInvoke
	ErrTypeClosed
)

// Sentinel errors for easy checking.
var (
	ErrStopped         = &ConnError{Type: ErrTypeClosed, Message: "connection stopped"}
	ErrNotConnected    = &ConnError{Type: ErrTypeClosed, Message: "not connected to hub"}
	ErrReconnectFailed = &ConnError{Type: ErrTypeDial, Message: "reconnect schedule exhausted, connection is down"}
)

// =============================================================================
// STATES
// =============================================================================

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateStopped
)

// String returns the state name for status display.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// Event is one normalized server->client message, regardless of which of
// the three targets delivered it.
type Event struct {
	Target     string
	SenderID   string
	SenderName string
	Content    string
	Timestamp  time.Time
}

// EventHandler receives events in receipt order.
type EventHandler func(Event)

// =============================================================================
// CONFIGURATION
// =============================================================================

// TokenSupplier returns the bearer token for a connection attempt. It is
// invoked lazily per attempt, never snapshotted, so a token refreshed
// between drops is picked up by the next reconnect.
type TokenSupplier func() string

// defaultReconnectDelays is the standard SignalR automatic-reconnect
// schedule.
var defaultReconnectDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

// Config holds configuration options for a hub connection.
type Config struct {
	// URL is the hub endpoint (http(s) or ws(s) scheme).
	URL string

	// Token supplies the bearer token per connection attempt.
	Token TokenSupplier

	// ReconnectDelays overrides the backoff schedule (default: SignalR's
	// 0s, 2s, 10s, 30s). An empty schedule disables reconnection.
	ReconnectDelays []time.Duration

	// InvokeTimeout bounds the wait for an invocation completion
	// (default: 10s).
	InvokeTimeout time.Duration

	// HandshakeTimeout bounds dial plus protocol negotiation (default: 15s).
	HandshakeTimeout time.Duration

	// OnStateChange is called after every lifecycle transition, outside
	// any internal lock. Optional.
	OnStateChange func(State)

	// OnDiagnostic receives operator-visible failures that have no caller
	// to return to (reconnect attempts, queued-join failures). Optional.
	OnDiagnostic func(error)
}

// =============================================================================
// CONNECTION
// =============================================================================

// Conn is a live hub connection owned by one session instance.
//
// All exported methods are safe for concurrent use. Event handlers run on
// the read loop goroutine, so they observe events in receipt order.
type Conn struct {
	cfg Config
	id  string

	mu            sync.Mutex
	state         State
	ws            *websocket.Conn
	handlers      map[int]EventHandler
	nextHandlerID int
	pendingJoins  []string
	joined        map[string]struct{}
	inflight      map[string]chan error
	nextInvokeID  uint64

	writeMu sync.Mutex // serializes websocket writes

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewConn creates a connection manager for the given hub. The connection
// is not opened until Start.
func NewConn(cfg Config) *Conn {
	if cfg.Token == nil {
		cfg.Token = func() string { return "" }
	}
	if cfg.ReconnectDelays == nil {
		cfg.ReconnectDelays = defaultReconnectDelays
	}
	if cfg.InvokeTimeout == 0 {
		cfg.InvokeTimeout = 10 * time.Second
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 15 * time.Second
	}

	return &Conn{
		cfg:      cfg,
		id:       uuid.NewString(),
		state:    StateDisconnected,
		handlers: make(map[int]EventHandler),
		joined:   make(map[string]struct{}),
		inflight: make(map[string]chan error),
		stopped:  make(chan struct{}),
	}
}

// ID returns the connection instance id.
func (c *Conn) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState transitions to s and fires the state callback outside the lock.
func (c *Conn) setState(s State) {
	c.mu.Lock()
	if c.state == StateStopped && s != StateStopped {
		c.mu.Unlock()
		return
	}
	c.state = s
	cb := c.cfg.OnStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

// diagnostic reports a failure that has no caller to return to.
func (c *Conn) diagnostic(err error) {
	if c.cfg.OnDiagnostic != nil {
		c.cfg.OnDiagnostic(err)
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start opens the connection and negotiates the protocol. On failure the
// connection stays Disconnected and Start does NOT retry: automatic
// reconnection covers only drops after a successful connect.
func (c *Conn) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return &ConnError{Type: ErrTypeDial, Message: "connection already started"}
	}
	c.state = StateConnecting
	cb := c.cfg.OnStateChange
	c.mu.Unlock()
	if cb != nil {
		cb(StateConnecting)
	}

	ws, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		ws.Close()
		return ErrStopped
	}
	c.ws = ws
	c.mu.Unlock()
	c.setState(StateConnected)

	go c.readLoop(ws)
	c.flushPendingJoins()
	return nil
}

// Stop tears the connection down. Idempotent; safe on every exit path.
func (c *Conn) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.state = StateStopped
		ws := c.ws
		c.ws = nil
		inflight := c.inflight
		c.inflight = make(map[string]chan error)
		cb := c.cfg.OnStateChange
		c.mu.Unlock()

		close(c.stopped)
		for _, ch := range inflight {
			ch <- ErrStopped
		}

		if ws != nil {
			// Best-effort close frame; the peer may already be gone.
			c.writeMu.Lock()
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.writeMu.Unlock()
			ws.Close()
		}

		if cb != nil {
			cb(StateStopped)
		}
	})
}

// dial opens the websocket and performs the protocol handshake. The token
// supplier is consulted here, once per attempt.
func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, &ConnError{Type: ErrTypeDial, Message: "invalid hub URL", Cause: err}
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if token := c.cfg.Token(); token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, &ConnError{Type: ErrTypeDial, Message: "failed to connect to hub", Cause: err}
	}

	record, err := encodeRecord(handshakeRequest{Protocol: "json", Version: 1})
	if err != nil {
		ws.Close()
		return nil, &ConnError{Type: ErrTypeHandshake, Message: "failed to encode handshake", Cause: err}
	}
	if err := ws.WriteMessage(websocket.TextMessage, record); err != nil {
		ws.Close()
		return nil, &ConnError{Type: ErrTypeHandshake, Message: "failed to send handshake", Cause: err}
	}

	ws.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	_, frame, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return nil, &ConnError{Type: ErrTypeHandshake, Message: "no handshake response", Cause: err}
	}
	ws.SetReadDeadline(time.Time{})

	records := splitRecords(frame)
	if len(records) == 0 {
		ws.Close()
		return nil, &ConnError{Type: ErrTypeHandshake, Message: "empty handshake response"}
	}
	var resp handshakeResponse
	if err := json.Unmarshal(records[0], &resp); err != nil {
		ws.Close()
		return nil, &ConnError{Type: ErrTypeHandshake, Message: "malformed handshake response", Cause: err}
	}
	if resp.Error != "" {
		ws.Close()
		return nil, &ConnError{Type: ErrTypeHandshake, Message: "hub rejected handshake: " + resp.Error}
	}

	return ws, nil
}

// =============================================================================
// READ LOOP
// =============================================================================

// readLoop drains one websocket until it fails, then hands off to the
// reconnect path. There is at most one live read loop per Conn; a stale
// loop (superseded by reconnect) exits without side effects.
func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			c.handleDrop(ws, err)
			return
		}
		for _, record := range splitRecords(frame) {
			var msg hubMessage
			if err := json.Unmarshal(record, &msg); err != nil {
				// A garbled record is a peer bug; skip it rather than
				// dropping the connection.
				continue
			}
			switch msg.Type {
			case typeInvocation:
				c.dispatch(msg)
			case typeCompletion:
				c.complete(msg)
			case typePing:
				// Liveness only.
			case typeClose:
				c.handleDrop(ws, &ConnError{Type: ErrTypeClosed, Message: "hub closed the connection: " + msg.Error})
				return
			}
		}
	}
}

// dispatch fans one message event out to the registered handlers,
// synchronously, preserving receipt order.
func (c *Conn) dispatch(msg hubMessage) {
	switch msg.Target {
	case TargetPrivateMessage, TargetGroupMessage, TargetMessage:
	default:
		return
	}
	if len(msg.Arguments) < 4 {
		return
	}

	ev := Event{
		Target:     msg.Target,
		SenderID:   decodeStringArg(msg.Arguments[0]),
		SenderName: decodeStringArg(msg.Arguments[1]),
		Content:    decodeStringArg(msg.Arguments[2]),
		Timestamp:  decodeTimeArg(msg.Arguments[3]),
	}

	c.mu.Lock()
	handlers := make([]EventHandler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// complete routes a completion record to the invocation waiting on it.
func (c *Conn) complete(msg hubMessage) {
	c.mu.Lock()
	ch, ok := c.inflight[msg.InvocationID]
	if ok {
		delete(c.inflight, msg.InvocationID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	if msg.Error != "" {
		ch <- &ConnError{Type: ErrTypeInvoke, Message: "invocation failed: " + msg.Error}
	} else {
		ch <- nil
	}
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers a handler for message events and returns its cancel
// function. The cancel is safe to call more than once and after Stop.
func (c *Conn) Subscribe(h EventHandler) func() {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.handlers[id] = h
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// =============================================================================
// GROUP MEMBERSHIP
// =============================================================================

// JoinGroup adds this connection to a group channel, a prerequisite to
// receiving that group's events. The call blocks until the hub confirms.
//
// Joining is idempotent from the caller's view: an already-joined group
// returns immediately, and joining one group never leaves another. When
// the connection is not yet Connected the join is queued and invoked
// exactly once on the transition into Connected; JoinGroup returns nil in
// that case.
func (c *Conn) JoinGroup(ctx context.Context, groupID string) error {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if _, ok := c.joined[groupID]; ok {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateConnected {
		if !contains(c.pendingJoins, groupID) {
			c.pendingJoins = append(c.pendingJoins, groupID)
		}
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.invoke(ctx, targetJoinGroup, groupID); err != nil {
		return err
	}

	c.mu.Lock()
	c.joined[groupID] = struct{}{}
	c.mu.Unlock()
	return nil
}

// flushPendingJoins drains the queued joins exactly once per transition
// into Connected. Failures go to the diagnostic channel; the queue is not
// retried.
func (c *Conn) flushPendingJoins() {
	c.mu.Lock()
	pending := c.pendingJoins
	c.pendingJoins = nil
	c.mu.Unlock()

	for _, groupID := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.InvokeTimeout)
		err := c.invoke(ctx, targetJoinGroup, groupID)
		cancel()
		if err != nil {
			c.diagnostic(&ConnError{Type: ErrTypeInvoke, Message: "queued join for group " + groupID + " failed", Cause: err})
			continue
		}
		c.mu.Lock()
		c.joined[groupID] = struct{}{}
		c.mu.Unlock()
	}
}

// rejoinGroups restores connection-scoped group membership after a
// reconnect.
func (c *Conn) rejoinGroups() {
	c.mu.Lock()
	groups := make([]string, 0, len(c.joined))
	for g := range c.joined {
		groups = append(groups, g)
	}
	c.mu.Unlock()

	for _, groupID := range groups {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.InvokeTimeout)
		err := c.invoke(ctx, targetJoinGroup, groupID)
		cancel()
		if err != nil {
			c.diagnostic(&ConnError{Type: ErrTypeInvoke, Message: "re-join for group " + groupID + " failed", Cause: err})
		}
	}
}

// =============================================================================
// INVOCATIONS
// =============================================================================

// invoke sends one invocation and waits for its completion record.
func (c *Conn) invoke(ctx context.Context, target string, args ...any) error {
	c.mu.Lock()
	if c.state != StateConnected || c.ws == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	ws := c.ws
	c.nextInvokeID++
	invocationID := strconv.FormatUint(c.nextInvokeID, 10)
	ch := make(chan error, 1)
	c.inflight[invocationID] = ch
	c.mu.Unlock()

	rawArgs := make([]json.RawMessage, len(args))
	for i, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			c.abandonInvocation(invocationID)
			return &ConnError{Type: ErrTypeInvoke, Message: "failed to encode invocation argument", Cause: err}
		}
		rawArgs[i] = data
	}
	record, err := encodeRecord(hubMessage{
		Type:         typeInvocation,
		Target:       target,
		Arguments:    rawArgs,
		InvocationID: invocationID,
	})
	if err != nil {
		c.abandonInvocation(invocationID)
		return &ConnError{Type: ErrTypeInvoke, Message: "failed to encode invocation", Cause: err}
	}

	c.writeMu.Lock()
	err = ws.WriteMessage(websocket.TextMessage, record)
	c.writeMu.Unlock()
	if err != nil {
		c.abandonInvocation(invocationID)
		return &ConnError{Type: ErrTypeInvoke, Message: "failed to send invocation", Cause: err}
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		c.abandonInvocation(invocationID)
		return &ConnError{Type: ErrTypeInvoke, Message: "invocation timed out", Cause: ctx.Err()}
	case <-c.stopped:
		return ErrStopped
	}
}

// abandonInvocation forgets an invocation that will never complete.
func (c *Conn) abandonInvocation(id string) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}

// =============================================================================
// RECONNECTION
// =============================================================================

// handleDrop reacts to a read failure on ws. Only the connection's current
// websocket triggers reconnection; a superseded read loop returns quietly.
func (c *Conn) handleDrop(ws *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.state == StateStopped || c.ws != ws {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	inflight := c.inflight
	c.inflight = make(map[string]chan error)
	c.mu.Unlock()
	ws.Close()

	// Inflight invocations cannot complete on a dead connection.
	dropErr := &ConnError{Type: ErrTypeClosed, Message: "connection dropped", Cause: cause}
	for _, ch := range inflight {
		ch <- dropErr
	}

	c.setState(StateReconnecting)

	for _, delay := range c.cfg.ReconnectDelays {
		select {
		case <-time.After(delay):
		case <-c.stopped:
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
		newWS, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.diagnostic(&ConnError{Type: ErrTypeDial, Message: "reconnect attempt failed", Cause: err})
			continue
		}

		c.mu.Lock()
		if c.state == StateStopped {
			c.mu.Unlock()
			newWS.Close()
			return
		}
		c.ws = newWS
		c.mu.Unlock()
		c.setState(StateConnected)

		go c.readLoop(newWS)
		c.rejoinGroups()
		c.flushPendingJoins()
		return
	}

	c.setState(StateDisconnected)
	c.diagnostic(ErrReconnectFailed)
}

// =============================================================================
// HELPERS
// =============================================================================

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
