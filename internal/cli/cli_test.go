// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jeranaias/commshub-tui/internal/config"
)

func TestParseDefaultsToTUI(t *testing.T) {
	args, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error: %v", err)
	}
	if args.Command != CmdTUI {
		t.Errorf("Command = %v, want CmdTUI", args.Command)
	}
}

func TestParseCommands(t *testing.T) {
	tests := []struct {
		raw  []string
		want Command
	}{
		{[]string{"login"}, CmdLogin},
		{[]string{"logout"}, CmdLogout},
		{[]string{"status"}, CmdStatus},
		{[]string{"s"}, CmdStatus},
		{[]string{"version"}, CmdVersion},
		{[]string{"help"}, CmdHelp},
		{[]string{"--help"}, CmdHelp},
	}

	for _, tt := range tests {
		args, err := Parse(tt.raw)
		if err != nil {
			t.Errorf("Parse(%v) error: %v", tt.raw, err)
			continue
		}
		if args.Command != tt.want {
			t.Errorf("Parse(%v).Command = %v, want %v", tt.raw, args.Command, tt.want)
		}
	}
}

func TestParseLoginFlags(t *testing.T) {
	args, err := Parse([]string{"login", "--email", "me@corp.com", "--quiet"})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if args.Email != "me@corp.com" {
		t.Errorf("Email = %q", args.Email)
	}
	if !args.Quiet {
		t.Error("Quiet not set")
	}
}

func TestParseEqualsForm(t *testing.T) {
	args, err := Parse([]string{"login", "--email=me@corp.com", "--config=/tmp/c.toml"})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if args.Email != "me@corp.com" {
		t.Errorf("Email = %q", args.Email)
	}
	if args.ConfigPath != "/tmp/c.toml" {
		t.Errorf("ConfigPath = %q", args.ConfigPath)
	}
}

func TestHandleStatusWithoutCredential(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := config.Default()
	cfg.API.BaseURL = "https://api.example.com"
	cfg.Hub.URL = "https://api.example.com/chatHub"

	var buf bytes.Buffer
	if err := HandleStatus(&buf, cfg); err != nil {
		t.Fatalf("HandleStatus error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "https://api.example.com") {
		t.Errorf("output missing service URL:\n%s", out)
	}
	if !strings.Contains(out, "not logged in") {
		t.Errorf("output missing credential state:\n%s", out)
	}
}

func TestSystemLocaleNormalization(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LANG", "en_US.UTF-8")

	if got := systemLocale(); got != "en-US" {
		t.Errorf("systemLocale() = %q, want en-US", got)
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	if _, err := Parse([]string{"frobnicate"}); err == nil {
		t.Error("unknown command accepted")
	}
	if _, err := Parse([]string{"--frobnicate"}); err == nil {
		t.Error("unknown flag accepted")
	}
	if _, err := Parse([]string{"login", "--email"}); err == nil {
		t.Error("flag without value accepted")
	}
}
