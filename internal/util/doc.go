// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the commshub console.
//
// This package contains common helper functions used throughout the
// application for terminal string layout and file operations.
//
// # Key Functions
//
// String Utilities:
//   - TruncateWidth: display-width-aware truncation (CJK safe)
//   - PadRight: display-width-aware padding for column layout
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
package util
