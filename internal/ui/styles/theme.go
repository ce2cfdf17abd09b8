// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the commshub TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// APPLICATION CONTAINER STYLES
	// ==========================================================================

	App       lipgloss.Style
	Container lipgloss.Style

	// ==========================================================================
	// SIDEBAR STYLES
	// ==========================================================================

	Sidebar             lipgloss.Style
	SidebarTitle        lipgloss.Style
	SidebarItem         lipgloss.Style
	SidebarItemSelected lipgloss.Style
	GroupBadge          lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	MineBubble  lipgloss.Style
	PeerBubble  lipgloss.Style
	SenderName  lipgloss.Style
	Timestamp   lipgloss.Style
	EmptyThread lipgloss.Style

	// ==========================================================================
	// COMPOSER STYLES
	// ==========================================================================

	ComposerContainer lipgloss.Style
	ComposerPrompt    lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar        lipgloss.Style
	ConnConnected    lipgloss.Style
	ConnReconnecting lipgloss.Style
	ConnDisconnected lipgloss.Style
	ShortcutKey      lipgloss.Style
	ShortcutDesc     lipgloss.Style

	// ==========================================================================
	// NOTICE STYLES
	// ==========================================================================

	NoticeInfo  lipgloss.Style
	NoticeWarn  lipgloss.Style
	NoticeError lipgloss.Style

	// ==========================================================================
	// OVERLAY STYLES (group creation)
	// ==========================================================================

	OverlayBox          lipgloss.Style
	OverlayTitle        lipgloss.Style
	OverlayItem         lipgloss.Style
	OverlayItemSelected lipgloss.Style
	OverlayHint         lipgloss.Style
}

// NewTheme creates a new theme with all styles configured. forceDark pins
// the dark palette regardless of what the terminal reports; otherwise the
// background is probed.
func NewTheme(forceDark bool) *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       forceDark || termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// App container
	t.App = lipgloss.NewStyle()
	t.Container = lipgloss.NewStyle().Padding(0, 1)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)

	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary)

	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1)

	t.SidebarItemSelected = lipgloss.NewStyle().
		Background(Purple).
		Foreground(TextInverse).
		Bold(true).
		Padding(0, 1)

	t.GroupBadge = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	// Messages
	t.MineBubble = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(CyanDeep).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(0, 1).
		Align(lipgloss.Left)

	t.PeerBubble = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SenderName = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.EmptyThread = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Align(lipgloss.Center)

	// Composer
	t.ComposerContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.ComposerPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ConnConnected = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.ConnReconnecting = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.ConnDisconnected = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Notices
	t.NoticeInfo = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.NoticeWarn = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.NoticeError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	// Group creation overlay
	t.OverlayBox = lipgloss.NewStyle().
		Background(Surface).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 2)

	t.OverlayTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.OverlayItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1)

	t.OverlayItemSelected = lipgloss.NewStyle().
		Background(Purple).
		Foreground(TextInverse).
		Bold(true).
		Padding(0, 1)

	t.OverlayHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// SidebarWidth returns the sidebar width for the current terminal width.
func (t *Theme) SidebarWidth() int {
	if t.Width < 60 {
		return 0 // too narrow, hide the sidebar
	}
	w := t.Width / 4
	if w < 18 {
		w = 18
	}
	if w > 32 {
		w = 32
	}
	return w
}
