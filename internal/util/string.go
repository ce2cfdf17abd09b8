// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the commshub console.
package util

import (
	"github.com/mattn/go-runewidth"
)

// UNICODE: Layout math counts display columns, not bytes or runes.
// Double-width characters (CJK) occupy two columns, so byte- or rune-based
// truncation and padding would misalign the terminal layout.

// TruncateWidth truncates a string to a maximum display width.
// If the string is truncated, "..." is appended when it fits.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth > 3 {
		return runewidth.Truncate(s, maxWidth, "...")
	}
	return runewidth.Truncate(s, maxWidth, "")
}

// PadRight pads a string with spaces to the given display width.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}
