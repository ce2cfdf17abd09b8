// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the state of one chat session.
package chat

import (
	"context"
	"sync"

	"github.com/jeranaias/commshub-tui/internal/api"
)

// HistoryAPI is the slice of the REST client the history loader consumes.
type HistoryAPI interface {
	PrivateMessages(ctx context.Context, peerID string) ([]api.Message, error)
	GroupMessages(ctx context.Context, groupID string) ([]api.Message, error)
}

// HistoryLoader fetches the message history for a selection and replaces
// the store's contents with it.
type HistoryLoader struct {
	api      HistoryAPI
	selector *Selector
	store    *Store
	identity func() string

	// commitMu makes the stale check and the store replace one step, so
	// two loads resolving close together cannot commit out of order.
	commitMu sync.Mutex
}

// NewHistoryLoader creates a history loader. identity is consulted at
// fetch-resolution time, not captured, so Mine flags reflect the identity
// in effect when the result lands.
func NewHistoryLoader(a HistoryAPI, selector *Selector, store *Store, identity func() string) *HistoryLoader {
	return &HistoryLoader{api: a, selector: selector, store: store, identity: identity}
}

// Load fetches history for sel and replaces the store. A result arriving
// after the selection has moved on is discarded silently: the stale-result
// race is expected traffic, not an error. An empty selection clears the
// store.
func (l *HistoryLoader) Load(ctx context.Context, sel Selection) error {
	if sel.IsZero() {
		l.commitMu.Lock()
		defer l.commitMu.Unlock()
		if l.selector.Matches(sel) {
			l.store.Clear()
		}
		return nil
	}

	var (
		msgs []api.Message
		err  error
	)
	if sel.IsDirect() {
		msgs, err = l.api.PrivateMessages(ctx, sel.PeerID)
	} else {
		msgs, err = l.api.GroupMessages(ctx, sel.GroupID)
	}
	if err != nil {
		return err
	}

	me := l.identity()
	display := make([]DisplayMessage, len(msgs))
	for i, m := range msgs {
		display[i] = Display(m, me)
	}

	// The guard and the replace commit together: a selection change during
	// the fetch makes this result stale, and it must not land at all.
	l.commitMu.Lock()
	defer l.commitMu.Unlock()
	if !l.selector.Matches(sel) {
		return nil
	}
	l.store.Replace(display)
	return nil
}
