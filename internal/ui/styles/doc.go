// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the commshub TUI.

This package defines the color palette and the themed style set used
throughout the application. All colors use Lip Gloss AdaptiveColor for
automatic light/dark terminal detection.

# Color System (colors.go)

  - Purple - Primary accent for selections and group badges
  - Cyan - Brand color for own messages and shortcut keys
  - Emerald - Connected state and success notices
  - Amber - Warnings and the reconnecting state
  - Rose - Errors and the disconnected state

Text colors form a hierarchy: TextPrimary for content, TextSecondary for
labels and sender names, TextMuted for timestamps and hints, TextInverse
for text on colored backgrounds.

# Theme System (theme.go)

The Theme struct provides runtime color adaptation:

	theme := styles.NewTheme(cfg.Features.DarkMode)
	if theme.IsDark {
		// Dark palette in effect
	}

Styles are grouped by surface: sidebar, message bubbles (MineBubble for
the current user's messages, PeerBubble for everyone else's), composer,
status bar with one style per connection state, and the group creation
overlay.
*/
package styles
