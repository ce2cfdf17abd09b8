// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the command-line surface of commshub.

# Commands

  - (none)  - Launch the chat TUI
  - login   - Authenticate and store the access token
  - logout  - Remove the stored access token
  - status  - Show configuration, credential, and identity state
  - version - Print version information
  - help    - Print usage

# Key Types

  - Command - Parsed command selector
  - Args - Parsed arguments and flags

Parsing is deliberately small: a command word, then --flag value pairs.
Handlers print with lipgloss styles when stdout is a terminal and plain
text otherwise.
*/
package cli
