// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth holds the client-side credential.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/commshub-tui/internal/util"
)

// ErrNoCredential indicates no token is stored. Callers treat this as
// "no user", not as a failure.
var ErrNoCredential = errors.New("no credential stored")

// Store persists the bearer token under a configured storage key.
// The key is a file name inside the config directory; the token is the
// entire file content.
//
// There is one writer (login/logout) per process, so no file locking is
// needed; writes are atomic so concurrent readers never see a torn token.
type Store struct {
	mu   sync.RWMutex
	path string
}

// NewStore creates a credential store rooted at dir using the given
// storage key.
func NewStore(dir, tokenKey string) *Store {
	return &Store{path: filepath.Join(dir, tokenKey)}
}

// Path returns the token file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted token. Returns ErrNoCredential when the file
// does not exist.
func (s *Store) Load() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

// Save writes the token. Written at login.
func (s *Store) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(token) == "" {
		return errors.New("refusing to store an empty credential")
	}
	// 0600: the token grants API access; keep it owner-only.
	if err := util.AtomicWriteFile(s.path, []byte(token), 0600); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Clear removes the token. Removed at logout; missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// Watch invokes onChange whenever the token file is created, rewritten, or
// removed, until ctx is cancelled. The live session uses this to tear down
// and rebuild its connection on credential change.
//
// The watch is on the parent directory: watching the file itself breaks
// under the atomic rename performed by Save.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create credential watcher: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to create credential directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch credential directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					onChange()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Watcher errors are not actionable here; the next
				// explicit Load still observes the real state.
			}
		}
	}()

	return nil
}
