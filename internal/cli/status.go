// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command implementation for commshub.
//
// Command: status
// Short:   Show configuration, credential, and identity state
// Aliases: s
//
// Status Sections:
//   Service:    REST base URL, hub URL, request timeout
//   Credential: Whether a token is stored, and where
//   Identity:   User id decoded from the stored token
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/commshub-tui/internal/auth"
	"github.com/jeranaias/commshub-tui/internal/config"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	statusLabel = lipgloss.NewStyle().Bold(true).Width(12)
	statusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	statusBad   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func renderLabel(styled bool, s string) string {
	if styled {
		return statusLabel.Render(s)
	}
	return fmt.Sprintf("%-12s", s)
}

func renderState(styled, ok bool, s string) string {
	if !styled {
		return s
	}
	if ok {
		return statusOK.Render(s)
	}
	return statusBad.Render(s)
}

// systemLocale reads the POSIX locale environment and normalizes it to a
// BCP 47 tag ("en_US.UTF-8" -> "en-US").
func systemLocale() string {
	lang := os.Getenv("LC_ALL")
	if lang == "" {
		lang = os.Getenv("LANG")
	}
	lang, _, _ = strings.Cut(lang, ".")
	return strings.ReplaceAll(lang, "_", "-")
}

// =============================================================================
// STATUS COMMAND
// =============================================================================

// HandleStatus prints the effective configuration and credential state.
func HandleStatus(w io.Writer, cfg *config.Config) error {
	styled := ColorEnabled()

	fmt.Fprintf(w, "%s %s\n", renderLabel(styled, "Service"), cfg.API.BaseURL)
	fmt.Fprintf(w, "%s %s\n", renderLabel(styled, "Hub"), cfg.Hub.URL)
	fmt.Fprintf(w, "%s %s\n", renderLabel(styled, "Timeout"),
		(time.Duration(cfg.API.TimeoutSecs) * time.Second).String())
	fmt.Fprintf(w, "%s %s\n", renderLabel(styled, "Locale"),
		cfg.MatchLocale(systemLocale()))

	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	store := auth.NewStore(dir, cfg.Auth.TokenKey)

	token, err := store.Load()
	switch {
	case errors.Is(err, auth.ErrNoCredential):
		fmt.Fprintf(w, "%s %s\n", renderLabel(styled, "Credential"),
			renderState(styled, false, "not logged in"))
		return nil
	case err != nil:
		return fmt.Errorf("could not read credential: %w", err)
	}

	fmt.Fprintf(w, "%s %s (%s)\n", renderLabel(styled, "Credential"),
		renderState(styled, true, "stored"), store.Path())

	identity := auth.NewResolver().Identity(token)
	if identity == "" {
		fmt.Fprintf(w, "%s %s\n", renderLabel(styled, "Identity"),
			renderState(styled, false, "unreadable token"))
		return nil
	}
	fmt.Fprintf(w, "%s %s\n", renderLabel(styled, "Identity"), identity)
	return nil
}

// HandleVersion prints version information.
func HandleVersion(w io.Writer) {
	fmt.Fprintf(w, "commshub %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
