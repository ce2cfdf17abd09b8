// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the state of one chat session.
package chat

import (
	"strconv"
	"sync"
	"time"

	"github.com/jeranaias/commshub-tui/internal/api"
)

// =============================================================================
// DISPLAY MESSAGE
// =============================================================================

// DisplayMessage is a wire message enriched with the locally computed Mine
// flag. Mine is relative to the identity at mapping time and is never
// carried across identity changes: a new history load or live event
// recomputes it.
type DisplayMessage struct {
	Key        string
	SenderID   string
	SenderName string
	Content    string
	Timestamp  time.Time
	Mine       bool
}

// messageKey derives a stable identity for a message. The service sends no
// message id, so the key is a composite of sender, timestamp, and content;
// the same message arriving via history fetch and via live push collapses
// to one entry.
func messageKey(senderID string, ts time.Time, content string) string {
	return senderID + "|" + strconv.FormatInt(ts.UnixNano(), 10) + "|" + content
}

// Display maps a wire message to its display form, computing Mine against
// the given identity now.
func Display(m api.Message, currentUserID string) DisplayMessage {
	return DisplayMessage{
		Key:        messageKey(m.SenderID, m.Timestamp, m.Content),
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Timestamp:  m.Timestamp,
		Mine:       currentUserID != "" && m.SenderID == currentUserID,
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store is the in-memory message list for the currently active
// conversation: a keyed ordered set, not a raw append-only list, so the
// race between a history fetch and the same message arriving live cannot
// produce duplicates.
type Store struct {
	mu    sync.RWMutex
	order []string
	byKey map[string]DisplayMessage
}

// NewStore creates an empty message store.
func NewStore() *Store {
	return &Store{byKey: make(map[string]DisplayMessage)}
}

// Replace discards the current contents and installs msgs, preserving
// their order and collapsing duplicate keys. Used by the history loader.
func (s *Store) Replace(msgs []DisplayMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.byKey = make(map[string]DisplayMessage, len(msgs))
	for _, m := range msgs {
		if _, dup := s.byKey[m.Key]; dup {
			continue
		}
		s.byKey[m.Key] = m
		s.order = append(s.order, m.Key)
	}
}

// Append adds one message in receipt order. Returns false when the key is
// already present (the history/live overlap case).
func (s *Store) Append(m DisplayMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byKey[m.Key]; dup {
		return false
	}
	s.byKey[m.Key] = m
	s.order = append(s.order, m.Key)
	return true
}

// Messages returns a snapshot of the list in order. The snapshot is the
// caller's to keep; later mutations do not affect it.
func (s *Store) Messages() []DisplayMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DisplayMessage, len(s.order))
	for i, key := range s.order {
		out[i] = s.byKey[key]
	}
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.byKey = make(map[string]DisplayMessage)
}
