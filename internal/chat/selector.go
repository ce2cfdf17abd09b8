// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the state of one chat session.
package chat

import "sync"

// =============================================================================
// SELECTION
// =============================================================================

// Selection identifies the active conversation. At most one of PeerID and
// GroupID is non-empty. Epoch increases on every change and is the handle
// for the stale-result guard: a history fetch carries the epoch it was
// issued under and is discarded if the selector has moved on.
type Selection struct {
	PeerID  string
	GroupID string
	Epoch   uint64
}

// IsZero reports whether no conversation is selected.
func (s Selection) IsZero() bool {
	return s.PeerID == "" && s.GroupID == ""
}

// IsDirect reports whether a direct peer is selected.
func (s Selection) IsDirect() bool {
	return s.PeerID != ""
}

// IsGroup reports whether a group is selected.
func (s Selection) IsGroup() bool {
	return s.GroupID != ""
}

// =============================================================================
// SELECTOR
// =============================================================================

// Selector tracks the mutually exclusive conversation selection. Selecting
// a peer clears any group selection synchronously, and vice versa; there is
// no state in which both are set.
type Selector struct {
	mu      sync.Mutex
	current Selection
}

// NewSelector creates a selector with nothing selected.
func NewSelector() *Selector {
	return &Selector{}
}

// SelectDirect makes peerID the active conversation and returns the new
// selection.
func (s *Selector) SelectDirect(peerID string) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Selection{PeerID: peerID, Epoch: s.current.Epoch + 1}
	return s.current
}

// SelectGroup makes groupID the active conversation and returns the new
// selection.
func (s *Selector) SelectGroup(groupID string) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Selection{GroupID: groupID, Epoch: s.current.Epoch + 1}
	return s.current
}

// Clear deselects any active conversation.
func (s *Selector) Clear() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Selection{Epoch: s.current.Epoch + 1}
	return s.current
}

// Current returns the active selection.
func (s *Selector) Current() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Matches reports whether sel is still the active selection. Results of
// work issued under a non-matching selection must be discarded.
func (s *Selector) Matches(sel Selection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Epoch == sel.Epoch
}
