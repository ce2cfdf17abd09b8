// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the commshub TUI.
package chat

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/commshub-tui/internal/api"
	core "github.com/jeranaias/commshub-tui/internal/chat"
	"github.com/jeranaias/commshub-tui/internal/hub"
	"github.com/jeranaias/commshub-tui/internal/ui/styles"
)

// =============================================================================
// FOCUS AREAS
// =============================================================================

// focusArea tracks which surface receives keystrokes.
type focusArea int

const (
	focusSidebar focusArea = iota
	focusComposer
	focusOverlay
)

// =============================================================================
// SIDEBAR ENTRIES
// =============================================================================

// entryKind distinguishes sidebar rows.
type entryKind int

const (
	entryGroup entryKind = iota
	entryUser
)

// sidebarEntry is one selectable conversation in the sidebar.
type sidebarEntry struct {
	kind  entryKind
	id    string
	label string
}

// =============================================================================
// GROUP CREATION OVERLAY
// =============================================================================

// groupOverlay holds the state of the group creation dialog. Focus sits
// on the name field or the member list; only the latter interprets
// space/up/down, so group names can contain spaces.
type groupOverlay struct {
	active    bool
	onMembers bool
	name      textinput.Model
	cursor    int             // index into the member candidate list
	picked    map[string]bool // user id -> selected
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	session *core.Session
	bridge  *Bridge

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// Focus
	focus focusArea

	// Sidebar
	users  []api.User
	groups []api.Group
	cursor int

	// UI components
	viewport viewport.Model
	composer textinput.Model

	// Connection state for the status bar
	connState hub.State

	// Transient status-bar notice
	notice      string
	noticeLevel core.Level
	noticeSeq   int

	// Group creation overlay
	overlay groupOverlay

	// Key bindings
	keyMap KeyMap

	// Set after the first WindowSizeMsg; nothing renders before it.
	ready bool
}

// New creates the chat view around an opened session.
func New(session *core.Session, bridge *Bridge, theme *styles.Theme) Model {
	composer := textinput.New()
	composer.Placeholder = "Type a message"
	composer.CharLimit = 2000
	composer.Prompt = "> "

	name := textinput.New()
	name.Placeholder = "Group name"
	name.CharLimit = 100
	name.Prompt = "> "

	return Model{
		session:   session,
		bridge:    bridge,
		theme:     theme,
		focus:     focusSidebar,
		composer:  composer,
		overlay:   groupOverlay{name: name},
		connState: hub.StateDisconnected,
		keyMap:    DefaultKeyMap(),
	}
}

// Init starts the bridge listener and the initial roster load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.bridge.Listen(),
		loadRoster(m.session),
		textinput.Blink,
	)
}

// entries builds the sidebar rows: groups first, then people. The current
// user never appears; the session's roster accessor already filters them.
func (m Model) entries() []sidebarEntry {
	out := make([]sidebarEntry, 0, len(m.groups)+len(m.users))
	for _, g := range m.groups {
		out = append(out, sidebarEntry{kind: entryGroup, id: g.ID, label: g.Name})
	}
	for _, u := range m.users {
		label := u.Email
		if label == "" {
			label = u.ID
		}
		out = append(out, sidebarEntry{kind: entryUser, id: u.ID, label: label})
	}
	return out
}

// clampCursor keeps the sidebar cursor inside the entry list after the
// roster changes underneath it.
func (m *Model) clampCursor() {
	n := len(m.entries())
	if n == 0 {
		m.cursor = 0
		return
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}
