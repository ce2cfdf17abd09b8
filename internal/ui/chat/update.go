// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the commshub TUI.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/commshub-tui/internal/chat"
)

// opTimeout bounds every session operation issued from the UI.
const opTimeout = 15 * time.Second

// noticeTTL is how long a status-bar notice stays visible.
const noticeTTL = 5 * time.Second

// =============================================================================
// COMMAND CREATORS
// =============================================================================

func withOpTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func loadRoster(s *core.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withOpTimeout()
		defer cancel()

		err := s.RefreshRoster(ctx)
		return RosterMsg{Users: s.Users(), Groups: s.Groups(), Err: err}
	}
}

func selectConversation(s *core.Session, e sidebarEntry) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withOpTimeout()
		defer cancel()

		var err error
		if e.kind == entryGroup {
			err = s.SelectGroup(ctx, e.id)
		} else {
			err = s.SelectDirect(ctx, e.id)
		}
		return HistoryMsg{Err: err}
	}
}

func sendMessage(s *core.Session, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withOpTimeout()
		defer cancel()

		return SendResultMsg{Text: text, Err: s.Send(ctx, text)}
	}
}

func createGroup(s *core.Session, name string, memberIDs []string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withOpTimeout()
		defer cancel()

		g, err := s.CreateGroup(ctx, name, memberIDs)
		return GroupCreatedMsg{Group: g, Err: err}
	}
}

func expireNotice(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case RosterMsg:
		if msg.Err != nil {
			return m.showNotice(core.LevelError, "roster refresh failed: "+msg.Err.Error())
		}
		m.users = msg.Users
		m.groups = msg.Groups
		m.clampCursor()
		return m, nil

	case HistoryMsg:
		if msg.Err != nil {
			return m.showNotice(core.LevelError, "history load failed: "+msg.Err.Error())
		}
		m.syncViewport()
		return m, nil

	case SendResultMsg:
		return m.handleSendResult(msg)

	case GroupCreatedMsg:
		if msg.Err != nil {
			return m.showNotice(core.LevelWarn, msg.Err.Error())
		}
		m.overlay.active = false
		m.focus = focusSidebar
		m.groups = m.session.Groups()
		m.clampCursor()
		return m.showNotice(core.LevelInfo, "group "+msg.Group.Name+" created")

	// Bridge-delivered messages re-arm the listener.
	case StoreChangedMsg:
		m.syncViewport()
		return m, m.bridge.Listen()

	case ConnStateMsg:
		m.connState = msg.State
		return m, m.bridge.Listen()

	case SessionRebuiltMsg:
		return m.handleSessionRebuilt(msg)

	case NoticeMsg:
		next, cmd := m.showNotice(msg.Level, msg.Text)
		return next, tea.Batch(cmd, m.bridge.Listen())

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}

	return m.updateComponents(msg)
}

// handleResize recomputes every component's dimensions.
func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	// composer (2 rows with its top border) + status bar (1 row)
	viewWidth := m.width - m.theme.SidebarWidth()
	if sw := m.theme.SidebarWidth(); sw > 0 {
		viewWidth-- // sidebar border column
	}
	viewHeight := m.height - 3
	if viewWidth < 1 {
		viewWidth = 1
	}
	if viewHeight < 1 {
		viewHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(viewWidth, viewHeight)
		m.ready = true
	} else {
		m.viewport.Width = viewWidth
		m.viewport.Height = viewHeight
	}
	m.composer.Width = m.width - 6
	m.syncViewport()
	return m
}

// handleKey routes keystrokes by focus area.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		return m, tea.Quit
	}

	if m.overlay.active {
		return m.handleOverlayKey(msg)
	}

	switch {
	case key.Matches(msg, m.keyMap.SwitchFocus):
		if m.focus == focusSidebar {
			m.focus = focusComposer
			m.composer.Focus()
		} else {
			m.focus = focusSidebar
			m.composer.Blur()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.NewGroup):
		m.overlay.active = true
		m.overlay.onMembers = false
		m.overlay.cursor = 0
		m.overlay.picked = make(map[string]bool)
		m.overlay.name.SetValue("")
		m.overlay.name.Focus()
		m.focus = focusOverlay
		m.composer.Blur()
		return m, nil

	case key.Matches(msg, m.keyMap.Refresh):
		return m, loadRoster(m.session)

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleComposerKey(msg)
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.entries()

	switch {
	case key.Matches(msg, m.keyMap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		if m.cursor < len(entries)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Select):
		if len(entries) == 0 {
			return m, nil
		}
		e := entries[m.cursor]
		m.focus = focusComposer
		m.composer.Focus()
		return m, selectConversation(m.session, e)
	}

	return m, nil
}

func (m Model) handleComposerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Select) {
		text := m.composer.Value()
		// Blank input never leaves the composer.
		if text == "" {
			return m, nil
		}
		return m, sendMessage(m.session, text)
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

func (m Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	candidates := m.users

	switch {
	case key.Matches(msg, m.keyMap.Cancel):
		m.overlay.active = false
		m.focus = focusSidebar
		return m, nil

	case key.Matches(msg, m.keyMap.SwitchFocus):
		m.overlay.onMembers = !m.overlay.onMembers
		if m.overlay.onMembers {
			m.overlay.name.Blur()
		} else {
			m.overlay.name.Focus()
		}
		return m, nil

	case m.overlay.onMembers && key.Matches(msg, m.keyMap.Up):
		if m.overlay.cursor > 0 {
			m.overlay.cursor--
		}
		return m, nil

	case m.overlay.onMembers && key.Matches(msg, m.keyMap.Down):
		if m.overlay.cursor < len(candidates)-1 {
			m.overlay.cursor++
		}
		return m, nil

	case m.overlay.onMembers && key.Matches(msg, m.keyMap.Toggle):
		if len(candidates) > 0 {
			id := candidates[m.overlay.cursor].ID
			m.overlay.picked[id] = !m.overlay.picked[id]
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Select):
		members := make([]string, 0, len(m.overlay.picked))
		for id, on := range m.overlay.picked {
			if on {
				members = append(members, id)
			}
		}
		return m, createGroup(m.session, m.overlay.name.Value(), members)
	}

	var cmd tea.Cmd
	m.overlay.name, cmd = m.overlay.name.Update(msg)
	return m, cmd
}

// handleSessionRebuilt adopts the session rebuilt for a new credential and
// drops every piece of view state tied to the old one: roster, cursor,
// overlay, and composed input all belonged to the previous identity.
func (m Model) handleSessionRebuilt(msg SessionRebuiltMsg) (tea.Model, tea.Cmd) {
	m.session = msg.Session
	m.users = nil
	m.groups = nil
	m.cursor = 0
	m.overlay.active = false
	m.focus = focusSidebar
	m.composer.Blur()
	m.composer.SetValue("")
	m.syncViewport()

	next, cmd := m.showNotice(core.LevelInfo, "credential changed, reconnecting")
	return next, tea.Batch(cmd, loadRoster(next.session), next.bridge.Listen())
}

// handleSendResult clears the composer only on success, and only when it
// still shows exactly the text that was sent, so input typed while the
// send was in flight survives.
func (m Model) handleSendResult(msg SendResultMsg) (tea.Model, tea.Cmd) {
	if msg.Err == nil {
		if m.composer.Value() == msg.Text {
			m.composer.SetValue("")
		}
		return m, nil
	}

	switch {
	case errors.Is(msg.Err, core.ErrNoSelection):
		return m.showNotice(core.LevelWarn, "select a conversation first")
	case errors.Is(msg.Err, core.ErrEmptyMessage),
		errors.Is(msg.Err, core.ErrRateLimited):
		return m.showNotice(core.LevelWarn, msg.Err.Error())
	default:
		return m.showNotice(core.LevelError, "send failed: "+msg.Err.Error())
	}
}

// showNotice installs a transient status-bar notice.
func (m Model) showNotice(level core.Level, text string) (Model, tea.Cmd) {
	m.notice = text
	m.noticeLevel = level
	m.noticeSeq++
	return m, expireNotice(m.noticeSeq)
}

// updateComponents forwards unhandled messages to the focused components.
func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	if m.focus == focusComposer {
		m.composer, cmd = m.composer.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.overlay.active {
		m.overlay.name, cmd = m.overlay.name.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}
