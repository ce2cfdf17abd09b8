// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// login.go - Login and logout command implementations for commshub.
//
// Command: login
// Short:   Authenticate and store the access token
//
// Examples:
//   commshub login                       Prompt for email and password
//   commshub login --email me@corp.com   Prompt for the password only
//
// The password prompt never echoes. The received token is written to the
// credential store with owner-only permissions; a running TUI instance
// picks the change up through its credential watch.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/jeranaias/commshub-tui/internal/api"
	"github.com/jeranaias/commshub-tui/internal/auth"
	"github.com/jeranaias/commshub-tui/internal/config"
)

const loginTimeout = 30 * time.Second

// HandleLogin authenticates against the configured service and stores the
// returned token.
func HandleLogin(args Args, cfg *config.Config) error {
	email := strings.TrimSpace(args.Email)
	password := args.Password

	if email == "" || password == "" {
		if !IsTTY() {
			return fmt.Errorf("no terminal for prompting; pass --email and --password")
		}
	}

	if email == "" {
		fmt.Print("Email: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("could not read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return fmt.Errorf("email is required")
	}

	if password == "" {
		fmt.Print("Password: ")
		// SECURITY: no echo for the password
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("could not read password: %w", err)
		}
		password = string(secret)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	client := api.NewClient(api.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Timeout: time.Duration(cfg.API.TimeoutSecs) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	defer cancel()

	token, err := client.Login(ctx, email, password)
	if err != nil {
		if api.IsUnauthorized(err) {
			return fmt.Errorf("login rejected: check email and password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	store := auth.NewStore(dir, cfg.Auth.TokenKey)
	if err := store.Save(token); err != nil {
		return fmt.Errorf("could not store credential: %w", err)
	}

	if !args.Quiet {
		identity := auth.NewResolver().Identity(token)
		if identity != "" {
			fmt.Printf("Logged in as %s (%s)\n", email, identity)
		} else {
			fmt.Printf("Logged in as %s\n", email)
		}
	}
	return nil
}

// HandleLogout removes the stored credential. Missing credentials are not
// an error; logout is idempotent.
func HandleLogout(args Args, cfg *config.Config) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	store := auth.NewStore(dir, cfg.Auth.TokenKey)
	if err := store.Clear(); err != nil {
		return fmt.Errorf("could not remove credential: %w", err)
	}
	if !args.Quiet {
		fmt.Println("Logged out")
	}
	return nil
}
