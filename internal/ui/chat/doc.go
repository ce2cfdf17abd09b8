// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view component for the commshub TUI.

# Key Types

  - Model - The Bubble Tea model: sidebar, message viewport, composer,
    status bar, and the group creation overlay
  - Bridge - Feeds session callbacks (store changes, connection state,
    diagnostics) into the Bubble Tea message loop
  - KeyMap - Keyboard bindings

# Layout

The view is a sidebar (groups, then people) next to a message viewport,
with a one-line composer below and a status bar at the bottom. On
terminals narrower than 60 columns the sidebar is hidden. The group
creation overlay replaces the whole view while active.

# Usage

	bridge := chat.NewBridge()
	session := core.NewSession(core.SessionConfig{
		...
		Notify:        bridge.NotifyFunc(),
		OnStoreChange: bridge.StoreChangedFunc(),
	})
	m := chat.New(session, bridge, theme)
	p := tea.NewProgram(m, tea.WithAltScreen())

All session work runs in tea.Cmd goroutines; the model itself is only
touched by the Bubble Tea loop.
*/
package chat
