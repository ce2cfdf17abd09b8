// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and usage text for commshub.
package cli

import (
	"fmt"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdLogout
	CmdStatus
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	Command Command

	// Global flags
	ConfigPath string
	Quiet      bool

	// login
	Email    string
	Password string // from --password; prompted when empty
}

const usageText = `commshub - terminal chat client

Usage:
  commshub              Launch the chat TUI
  commshub login        Authenticate and store the access token
  commshub logout       Remove the stored access token
  commshub status       Show configuration and credential state
  commshub version      Print version information
  commshub help         Print this help

Login flags:
  --email ADDRESS       Account email (prompted when omitted)
  --password SECRET     Account password (prompted, hidden, when omitted)

Global flags:
  --config PATH         Config file path (default ~/.commshub/config.toml)
  --quiet               Suppress non-essential output

Environment:
  COMMSHUB_API_BASE_URL   REST endpoint, overrides the config file
  COMMSHUB_HUB_URL        Push hub endpoint
  NO_COLOR                Disable colored output
`

// Usage returns the full usage text.
func Usage() string {
	return usageText
}

// Parse interprets os.Args[1:] into a command and its flags. Unknown
// commands and flags are errors so typos surface instead of silently
// launching the TUI.
func Parse(raw []string) (Args, error) {
	args := Args{Command: CmdTUI}

	i := 0
	if i < len(raw) && !strings.HasPrefix(raw[i], "-") {
		switch raw[i] {
		case "login":
			args.Command = CmdLogin
		case "logout":
			args.Command = CmdLogout
		case "status", "s":
			args.Command = CmdStatus
		case "version":
			args.Command = CmdVersion
		case "help":
			args.Command = CmdHelp
		default:
			return args, fmt.Errorf("unknown command %q", raw[i])
		}
		i++
	}

	for i < len(raw) {
		arg := raw[i]
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")

		takeValue := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(raw) {
				return "", fmt.Errorf("flag --%s needs a value", name)
			}
			i++
			return raw[i], nil
		}

		var err error
		switch name {
		case "config":
			args.ConfigPath, err = takeValue()
		case "email":
			args.Email, err = takeValue()
		case "password":
			args.Password, err = takeValue()
		case "quiet", "q":
			args.Quiet = true
		case "help", "h":
			args.Command = CmdHelp
		case "version", "V":
			args.Command = CmdVersion
		default:
			return args, fmt.Errorf("unknown flag %q", arg)
		}
		if err != nil {
			return args, err
		}
		i++
	}

	return args, nil
}
