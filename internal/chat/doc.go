// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the state of one chat session: the active
// conversation, its message list, and the paths that feed it.
//
// # Key Types
//
//   - Store: keyed ordered set of display messages for the active
//     conversation, deduplicating the overlap between fetched history and
//     live push
//   - Selector: the mutually exclusive direct-peer/group selection, with
//     an epoch counter guarding against stale history results
//   - HistoryLoader: fetches and replaces the store on selection change
//   - Session: wires identity, REST client, hub connection, store, and
//     selector into one owned unit with a deterministic teardown
//
// The store has exactly two producers - the history loader's replace and
// the live connection's append - and is read by the render path only.
package chat
