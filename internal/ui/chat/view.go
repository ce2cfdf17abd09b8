// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the commshub TUI.
//
// This file contains all rendering logic for the chat interface: the
// sidebar, the message viewport content, the composer, the status bar,
// and the group creation overlay.
package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	core "github.com/jeranaias/commshub-tui/internal/chat"
	"github.com/jeranaias/commshub-tui/internal/hub"
	"github.com/jeranaias/commshub-tui/internal/util"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the complete chat view.
// Layout: sidebar | messages (viewport), composer, status bar.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.overlay.active {
		return m.renderOverlay()
	}

	main := m.viewport.View()
	if sw := m.theme.SidebarWidth(); sw > 0 {
		sidebar := m.renderSidebar(sw)
		main = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		main,
		m.renderComposer(),
		m.renderStatusBar(),
	)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar(width int) string {
	var b strings.Builder
	entries := m.entries()

	inner := width - 2 // account for the item padding
	row := 0
	writeSection := func(title string, kind entryKind) {
		b.WriteString(m.theme.SidebarTitle.Render(title))
		b.WriteString("\n")
		for _, e := range entries {
			if e.kind != kind {
				continue
			}
			// Pad each row to the column width so the selection
			// highlight spans the whole sidebar.
			maxLabel := inner
			if e.kind == entryGroup {
				maxLabel-- // badge column
			}
			label := util.PadRight(util.TruncateWidth(e.label, maxLabel), maxLabel)
			if e.kind == entryGroup {
				label = m.theme.GroupBadge.Render("#") + label
			}
			style := m.theme.SidebarItem
			if row == m.cursor && m.focus == focusSidebar {
				style = m.theme.SidebarItemSelected
			}
			b.WriteString(style.Render(label))
			b.WriteString("\n")
			row++
		}
	}

	writeSection("GROUPS", entryGroup)
	writeSection("PEOPLE", entryUser)

	return m.theme.Sidebar.
		Width(width).
		Height(m.viewport.Height).
		Render(b.String())
}

// =============================================================================
// MESSAGES
// =============================================================================

// syncViewport rebuilds the viewport content from the store and pins the
// view to the newest message.
func (m *Model) syncViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m Model) renderMessages() string {
	msgs := m.session.Store().Messages()
	if len(msgs) == 0 {
		return m.theme.EmptyThread.
			Width(m.viewport.Width).
			Render("No messages yet")
	}

	width := m.viewport.Width
	bubbleMax := width * 3 / 4
	if bubbleMax < 10 {
		bubbleMax = width
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg, width, bubbleMax))
	}
	return b.String()
}

func (m Model) renderMessage(msg core.DisplayMessage, width, bubbleMax int) string {
	header := m.theme.SenderName.Render(msg.SenderName) +
		" " +
		m.theme.Timestamp.Render(msg.Timestamp.Local().Format("15:04"))

	style := m.theme.PeerBubble
	if msg.Mine {
		style = m.theme.MineBubble
	}
	bubble := style.MaxWidth(bubbleMax).Render(msg.Content)

	block := lipgloss.JoinVertical(lipgloss.Left, header, bubble)
	if msg.Mine {
		// Own messages hug the right edge.
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
	}
	return block
}

// =============================================================================
// COMPOSER
// =============================================================================

func (m Model) renderComposer() string {
	return m.theme.ComposerContainer.
		Width(m.width).
		Render(m.composer.View())
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m Model) renderStatusBar() string {
	conn := m.renderConnState()

	hints := m.theme.ShortcutKey.Render("Tab") +
		m.theme.ShortcutDesc.Render(" focus  ") +
		m.theme.ShortcutKey.Render("C-g") +
		m.theme.ShortcutDesc.Render(" new group  ") +
		m.theme.ShortcutKey.Render("C-r") +
		m.theme.ShortcutDesc.Render(" refresh  ") +
		m.theme.ShortcutKey.Render("C-c") +
		m.theme.ShortcutDesc.Render(" quit")

	left := conn
	if m.notice != "" {
		left += "  " + m.renderNotice()
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(hints) - 2
	if gap < 1 {
		gap = 1
	}

	return m.theme.StatusBar.
		Width(m.width).
		Render(left + strings.Repeat(" ", gap) + hints)
}

func (m Model) renderConnState() string {
	switch m.connState {
	case hub.StateConnected:
		return m.theme.ConnConnected.Render("online")
	case hub.StateConnecting:
		return m.theme.ConnReconnecting.Render("connecting")
	case hub.StateReconnecting:
		return m.theme.ConnReconnecting.Render("reconnecting")
	default:
		return m.theme.ConnDisconnected.Render("offline")
	}
}

func (m Model) renderNotice() string {
	text := util.TruncateWidth(m.notice, m.width/2)
	switch m.noticeLevel {
	case core.LevelError:
		return m.theme.NoticeError.Render(text)
	case core.LevelWarn:
		return m.theme.NoticeWarn.Render(text)
	default:
		return m.theme.NoticeInfo.Render(text)
	}
}

// =============================================================================
// GROUP CREATION OVERLAY
// =============================================================================

func (m Model) renderOverlay() string {
	var b strings.Builder

	b.WriteString(m.theme.OverlayTitle.Render("New group"))
	b.WriteString("\n\n")
	b.WriteString(m.overlay.name.View())
	b.WriteString("\n\n")
	b.WriteString(m.theme.SidebarTitle.Render("MEMBERS"))
	b.WriteString("\n")

	for i, u := range m.users {
		mark := "[ ] "
		if m.overlay.picked[u.ID] {
			mark = "[x] "
		}
		label := u.Email
		if label == "" {
			label = u.ID
		}
		style := m.theme.OverlayItem
		if i == m.overlay.cursor && m.overlay.onMembers {
			style = m.theme.OverlayItemSelected
		}
		b.WriteString(style.Render(mark + label))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.OverlayHint.Render("Tab name/members · Space toggle · Enter create · Esc cancel"))

	box := m.theme.OverlayBox.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
