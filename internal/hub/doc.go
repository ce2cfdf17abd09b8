// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hub manages the live connection to the push-messaging hub.
//
// The hub speaks the SignalR JSON protocol over a websocket: 0x1e-delimited
// JSON records, a handshake record first, then invocations (type 1),
// completions (type 3), and pings (type 6). This package implements the
// client side of that exchange on top of gorilla/websocket.
//
// # Connection lifecycle
//
//	Disconnected -> Connecting -> Connected -> Reconnecting -> ... -> Stopped
//
// A Conn is owned by exactly one session; it is never shared across
// mounted instances. Start performs the initial connect and does not retry
// on failure. Automatic reconnect covers only drops after a successful
// connect, with the standard backoff schedule (0s, 2s, 10s, 30s); when the
// schedule is exhausted the connection is permanently down and the owner
// must rebuild.
//
// Group membership is connection-scoped on the server, so joined groups
// are re-joined after every successful reconnect. Joins requested while
// not yet Connected are queued and flushed exactly once on the transition
// into Connected.
package hub
