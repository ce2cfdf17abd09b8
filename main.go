// commshub - a terminal client for the team chat service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/commshub-tui/internal/api"
	"github.com/jeranaias/commshub-tui/internal/auth"
	core "github.com/jeranaias/commshub-tui/internal/chat"
	"github.com/jeranaias/commshub-tui/internal/cli"
	"github.com/jeranaias/commshub-tui/internal/config"
	"github.com/jeranaias/commshub-tui/internal/hub"
	uichat "github.com/jeranaias/commshub-tui/internal/ui/chat"
	"github.com/jeranaias/commshub-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	args, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n%s", err, cli.Usage())
		os.Exit(2)
	}

	switch args.Command {
	case cli.CmdHelp:
		fmt.Print(cli.Usage())
		return
	case cli.CmdVersion:
		cli.HandleVersion(os.Stdout)
		return
	}

	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	config.SetGlobal(cfg)

	switch args.Command {
	case cli.CmdLogin:
		exitOnError(cli.HandleLogin(args, cfg))
	case cli.CmdLogout:
		exitOnError(cli.HandleLogout(args, cfg))
	case cli.CmdStatus:
		exitOnError(cli.HandleStatus(os.Stdout, cfg))
	default:
		exitOnError(runTUI(cfg))
	}
}

func loadConfig(args cli.Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		return config.LoadFrom(args.ConfigPath)
	}
	return config.Load()
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runTUI wires the session and runs the chat interface until exit.
func runTUI(cfg *config.Config) error {
	if !cli.IsTTY() {
		return fmt.Errorf("commshub needs a terminal; run `commshub status` for scripting")
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	store := auth.NewStore(dir, cfg.Auth.TokenKey)

	if _, err := store.Load(); err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			return fmt.Errorf("not logged in; run `commshub login` first")
		}
		return fmt.Errorf("could not read credential: %w", err)
	}

	// Tokens are read from the store per use, so a re-login from another
	// terminal takes effect without restarting.
	tokenSupplier := func() string {
		token, err := store.Load()
		if err != nil {
			return ""
		}
		return token
	}

	resolver := auth.NewResolver()
	identity := func() string {
		return resolver.Identity(tokenSupplier())
	}

	client := api.NewClient(api.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Timeout: time.Duration(cfg.API.TimeoutSecs) * time.Second,
		Token:   api.TokenSupplier(tokenSupplier),
	})

	bridge := uichat.NewBridge()
	notify := bridge.NotifyFunc()

	// The hub connection is single-use, so every session build gets a
	// fresh one wired the same way.
	buildSession := func() *core.Session {
		conn := hub.NewConn(hub.Config{
			URL:           cfg.Hub.URL,
			Token:         hub.TokenSupplier(tokenSupplier),
			OnStateChange: bridge.ConnStateFunc(),
			OnDiagnostic: func(err error) {
				notify(core.LevelWarn, err.Error())
			},
		})
		return core.NewSession(core.SessionConfig{
			API:           client,
			Hub:           conn,
			Identity:      identity,
			Notify:        notify,
			OnStoreChange: bridge.StoreChangedFunc(),
		})
	}

	var sessionMu sync.Mutex
	session := buildSession()
	defer func() {
		sessionMu.Lock()
		defer sessionMu.Unlock()
		session.Close()
	}()

	theme := styles.NewTheme(cfg.Features.DarkMode)
	p := tea.NewProgram(
		uichat.New(session, bridge, theme),
		tea.WithAltScreen(),
	)

	// Mount the session off the UI goroutine so a slow dial never delays
	// the first paint.
	go session.Open(context.Background())

	// A removed credential ends the program. A replaced one tears the
	// session down and rebuilds it, so the live connection reauthenticates
	// and nothing classified under the old identity survives.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	go func() {
		err := store.Watch(watchCtx, func() {
			if _, err := store.Load(); errors.Is(err, auth.ErrNoCredential) {
				p.Quit()
				return
			}

			sessionMu.Lock()
			session.Close()
			session = buildSession()
			next := session
			sessionMu.Unlock()

			go next.Open(context.Background())
			bridge.Post(uichat.SessionRebuiltMsg{Session: next})
		})
		if err != nil && watchCtx.Err() == nil {
			notify(core.LevelWarn, "credential watch unavailable: "+err.Error())
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("interface error: %w", err)
	}
	return nil
}
