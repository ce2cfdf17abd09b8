// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hub manages the live connection to the push-messaging hub.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FAKE HUB SERVER
// =============================================================================

// fakeHub is a minimal SignalR-speaking server: it acknowledges the
// handshake, completes JoinGroup invocations, and can push message events.
type fakeHub struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu      sync.Mutex
	current *websocket.Conn

	joins     chan string // group ids from JoinGroup invocations
	tokens    chan string // access_token of each accepted connection
	connected chan struct{}

	failJoins bool // complete JoinGroup with an error
}

func newFakeHub(t *testing.T) (*fakeHub, *httptest.Server) {
	t.Helper()
	h := &fakeHub{
		t:         t,
		joins:     make(chan string, 16),
		tokens:    make(chan string, 16),
		connected: make(chan struct{}, 16),
	}
	srv := httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(srv.Close)
	return h, srv
}

func (h *fakeHub) serve(w http.ResponseWriter, r *http.Request) {
	h.tokens <- r.URL.Query().Get("access_token")

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Handshake: first record in, empty-object ack out.
	if _, _, err := ws.ReadMessage(); err != nil {
		return
	}
	ack, _ := encodeRecord(handshakeResponse{})
	if err := ws.WriteMessage(websocket.TextMessage, ack); err != nil {
		return
	}

	h.mu.Lock()
	h.current = ws
	h.mu.Unlock()
	h.connected <- struct{}{}

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			return
		}
		for _, record := range splitRecords(frame) {
			var msg hubMessage
			if json.Unmarshal(record, &msg) != nil {
				continue
			}
			if msg.Type == typeInvocation && msg.Target == "JoinGroup" {
				h.joins <- decodeStringArg(msg.Arguments[0])
				completion := hubMessage{Type: typeCompletion, InvocationID: msg.InvocationID}
				if h.failJoins {
					completion.Error = "join rejected"
				}
				rec, _ := encodeRecord(completion)
				h.write(ws, rec)
			}
		}
	}
}

func (h *fakeHub) write(ws *websocket.Conn, record []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ws.WriteMessage(websocket.TextMessage, record)
}

// push delivers one message invocation to the most recent connection.
func (h *fakeHub) push(target, senderID, senderName, content string, ts time.Time) {
	args := make([]json.RawMessage, 4)
	for i, v := range []any{senderID, senderName, content, ts.Format(time.RFC3339Nano)} {
		data, err := json.Marshal(v)
		require.NoError(h.t, err)
		args[i] = data
	}
	rec, err := encodeRecord(hubMessage{Type: typeInvocation, Target: target, Arguments: args})
	require.NoError(h.t, err)

	h.mu.Lock()
	ws := h.current
	h.mu.Unlock()
	require.NotNil(h.t, ws)
	h.write(ws, rec)
}

// dropCurrent force-closes the live connection, simulating a network drop.
func (h *fakeHub) dropCurrent() {
	h.mu.Lock()
	ws := h.current
	h.mu.Unlock()
	if ws != nil {
		ws.Close()
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestStart_ConnectsAndSendsToken(t *testing.T) {
	hub, srv := newFakeHub(t)

	conn := NewConn(Config{
		URL:   srv.URL,
		Token: func() string { return "tok-xyz" },
	})
	defer conn.Stop()

	require.NoError(t, conn.Start(context.Background()))
	require.Equal(t, StateConnected, conn.State())
	require.Equal(t, "tok-xyz", <-hub.tokens)
}

func TestStart_FailureStaysDisconnected(t *testing.T) {
	// A server that is already gone.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	var diags []error
	conn := NewConn(Config{
		URL:              url,
		HandshakeTimeout: time.Second,
		OnDiagnostic:     func(err error) { diags = append(diags, err) },
	})
	defer conn.Stop()

	err := conn.Start(context.Background())
	require.Error(t, err)
	require.Equal(t, StateDisconnected, conn.State())

	// The initial connect is not retried.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, StateDisconnected, conn.State())
	require.Empty(t, diags)
}

func TestStop_Idempotent(t *testing.T) {
	_, srv := newFakeHub(t)

	conn := NewConn(Config{URL: srv.URL})
	require.NoError(t, conn.Start(context.Background()))

	conn.Stop()
	conn.Stop()
	require.Equal(t, StateStopped, conn.State())

	// A stopped connection cannot be restarted.
	require.ErrorIs(t, conn.Start(context.Background()), ErrStopped)
}

// =============================================================================
// EVENT TESTS
// =============================================================================

func TestEvents_DispatchedInReceiptOrder(t *testing.T) {
	hub, srv := newFakeHub(t)

	conn := NewConn(Config{URL: srv.URL})
	defer conn.Stop()

	var mu sync.Mutex
	var got []Event
	cancel := conn.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	defer cancel()

	require.NoError(t, conn.Start(context.Background()))

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hub.push(TargetPrivateMessage, "u2", "Beth", "first", ts)
	hub.push(TargetGroupMessage, "u3", "Cara", "second", ts)
	hub.push(TargetMessage, "u4", "Drew", "third", ts)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, "events not delivered")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "first", got[0].Content)
	require.Equal(t, "second", got[1].Content)
	require.Equal(t, "third", got[2].Content)
	require.Equal(t, "u2", got[0].SenderID)
	require.Equal(t, "Beth", got[0].SenderName)
	require.True(t, ts.Equal(got[0].Timestamp))
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	hub, srv := newFakeHub(t)

	conn := NewConn(Config{URL: srv.URL})
	defer conn.Stop()

	var mu sync.Mutex
	count := 0
	cancel := conn.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	require.NoError(t, conn.Start(context.Background()))

	hub.push(TargetMessage, "u1", "A", "before cancel", time.Now())
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, "first event not delivered")

	cancel()
	hub.push(TargetMessage, "u1", "A", "after cancel", time.Now())
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, count)
}

// =============================================================================
// GROUP JOIN TESTS
// =============================================================================

func TestJoinGroup_Connected(t *testing.T) {
	hub, srv := newFakeHub(t)

	conn := NewConn(Config{URL: srv.URL})
	defer conn.Stop()
	require.NoError(t, conn.Start(context.Background()))

	require.NoError(t, conn.JoinGroup(context.Background(), "g1"))
	require.Equal(t, "g1", <-hub.joins)

	// Re-joining the same group is a local no-op.
	require.NoError(t, conn.JoinGroup(context.Background(), "g1"))
	select {
	case g := <-hub.joins:
		t.Fatalf("unexpected second join invocation for %q", g)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinGroup_QueuedBeforeConnectFlushedOnce(t *testing.T) {
	hub, srv := newFakeHub(t)

	conn := NewConn(Config{URL: srv.URL})
	defer conn.Stop()

	// Joins issued before the connection is up must not be lost.
	require.NoError(t, conn.JoinGroup(context.Background(), "g1"))
	require.NoError(t, conn.JoinGroup(context.Background(), "g1")) // dedup in queue
	require.NoError(t, conn.JoinGroup(context.Background(), "g2"))

	require.NoError(t, conn.Start(context.Background()))

	require.Equal(t, "g1", <-hub.joins)
	require.Equal(t, "g2", <-hub.joins)
	select {
	case g := <-hub.joins:
		t.Fatalf("queue flushed more than once: extra join %q", g)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinGroup_CompletionError(t *testing.T) {
	hub, srv := newFakeHub(t)
	hub.failJoins = true

	conn := NewConn(Config{URL: srv.URL})
	defer conn.Stop()
	require.NoError(t, conn.Start(context.Background()))

	err := conn.JoinGroup(context.Background(), "g1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "join rejected")
}

// =============================================================================
// RECONNECT TESTS
// =============================================================================

func TestReconnect_AfterDropRejoinsGroups(t *testing.T) {
	hub, srv := newFakeHub(t)

	var mu sync.Mutex
	var states []State
	conn := NewConn(Config{
		URL:             srv.URL,
		ReconnectDelays: []time.Duration{10 * time.Millisecond},
		OnStateChange: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})
	defer conn.Stop()

	require.NoError(t, conn.Start(context.Background()))
	<-hub.connected
	require.NoError(t, conn.JoinGroup(context.Background(), "g1"))
	require.Equal(t, "g1", <-hub.joins)

	hub.dropCurrent()

	// The second server-side accept is the reconnect.
	select {
	case <-hub.connected:
	case <-time.After(3 * time.Second):
		t.Fatal("no reconnect observed")
	}
	waitFor(t, func() bool { return conn.State() == StateConnected }, "not reconnected")

	// Group membership is connection-scoped; the manager re-joins.
	select {
	case g := <-hub.joins:
		require.Equal(t, "g1", g)
	case <-time.After(3 * time.Second):
		t.Fatal("group not re-joined after reconnect")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, states, StateReconnecting)
}

func TestReconnect_ExhaustedGoesDisconnected(t *testing.T) {
	hub, srv := newFakeHub(t)

	var mu sync.Mutex
	var diags []error
	conn := NewConn(Config{
		URL:              srv.URL,
		ReconnectDelays:  []time.Duration{10 * time.Millisecond},
		HandshakeTimeout: 500 * time.Millisecond,
		OnDiagnostic: func(err error) {
			mu.Lock()
			diags = append(diags, err)
			mu.Unlock()
		},
	})
	defer conn.Stop()

	require.NoError(t, conn.Start(context.Background()))
	<-hub.connected

	// Kill the server entirely; every reconnect attempt must fail.
	srv.Close()
	hub.dropCurrent()

	waitFor(t, func() bool { return conn.State() == StateDisconnected }, "never gave up")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, diags)
	require.ErrorIs(t, diags[len(diags)-1], ErrReconnectFailed)
}
