// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the commshub TUI.
//
// This file defines the Bubble Tea message types used by the chat view and
// the Bridge that forwards session callbacks into the message loop.
package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/commshub-tui/internal/api"
	core "github.com/jeranaias/commshub-tui/internal/chat"
	"github.com/jeranaias/commshub-tui/internal/hub"
)

// =============================================================================
// COMMAND RESULT MESSAGES
// =============================================================================

// RosterMsg delivers the refreshed user and group lists.
type RosterMsg struct {
	Users  []api.User
	Groups []api.Group
	Err    error
}

// HistoryMsg signals that a conversation's history load settled. The store
// already holds the result; only the error travels here.
type HistoryMsg struct {
	Err error
}

// SendResultMsg signals that an outgoing message settled.
type SendResultMsg struct {
	// Text is the composed input the send was issued with, so the
	// composer is only cleared when it still shows exactly that text.
	Text string
	Err  error
}

// GroupCreatedMsg delivers the outcome of a group creation.
type GroupCreatedMsg struct {
	Group *api.Group
	Err   error
}

// =============================================================================
// BRIDGE MESSAGES
// =============================================================================

// StoreChangedMsg signals that the message store mutated and the viewport
// needs re-rendering.
type StoreChangedMsg struct{}

// ConnStateMsg reports a connection state transition.
type ConnStateMsg struct {
	State hub.State
}

// SessionRebuiltMsg swaps in the session built after a credential change.
// Everything the view derived from the previous session is stale and must
// be discarded.
type SessionRebuiltMsg struct {
	Session *core.Session
}

// NoticeMsg carries a diagnostic for the status bar.
type NoticeMsg struct {
	Level core.Level
	Text  string
}

// noticeExpiredMsg clears a shown notice once its display time is up.
type noticeExpiredMsg struct {
	seq int
}

// =============================================================================
// BRIDGE
// =============================================================================

// Bridge carries events raised on session goroutines into the Bubble Tea
// loop. Posts never block: when the buffer is full the event is dropped,
// which for render triggers is harmless since a later one repaints anyway.
type Bridge struct {
	ch chan tea.Msg
}

// NewBridge creates a bridge with a buffered channel.
func NewBridge() *Bridge {
	return &Bridge{ch: make(chan tea.Msg, 64)}
}

// Post enqueues a message for the UI without blocking.
func (b *Bridge) Post(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
	}
}

// Listen returns a command that delivers the next bridged message. The
// update loop re-arms it after every delivery.
func (b *Bridge) Listen() tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}

// NotifyFunc adapts the bridge to the session's diagnostic channel.
func (b *Bridge) NotifyFunc() core.Notifier {
	return func(level core.Level, text string) {
		b.Post(NoticeMsg{Level: level, Text: text})
	}
}

// StoreChangedFunc adapts the bridge to the session's store-change hook.
func (b *Bridge) StoreChangedFunc() func() {
	return func() {
		b.Post(StoreChangedMsg{})
	}
}

// ConnStateFunc adapts the bridge to the connection's state-change hook.
func (b *Bridge) ConnStateFunc() func(hub.State) {
	return func(s hub.State) {
		b.Post(ConnStateMsg{State: s})
	}
}
