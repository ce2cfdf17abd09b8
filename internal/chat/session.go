// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/jeranaias/commshub-tui/internal/api"
	"github.com/jeranaias/commshub-tui/internal/hub"
)

// =============================================================================
// VALIDATION FAILURES
// =============================================================================

// Validation failures are blocked locally, before any network call.
var (
	ErrEmptyMessage        = errors.New("message is empty")
	ErrNoSelection         = errors.New("no conversation selected")
	ErrRateLimited         = errors.New("sending too fast, slow down")
	ErrGroupNameRequired   = errors.New("group name is required")
	ErrGroupMembersMissing = errors.New("a group needs at least one member")
)

// =============================================================================
// DIAGNOSTICS
// =============================================================================

// Level grades a diagnostic notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Notifier is the operator-visible diagnostic channel. Failures go here,
// never into the render path.
type Notifier func(Level, string)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// SessionAPI is the slice of the REST client a session consumes.
type SessionAPI interface {
	HistoryAPI
	AllUsers(ctx context.Context) ([]api.User, error)
	GroupsForCurrentUser(ctx context.Context) ([]api.Group, error)
	CreateGroup(ctx context.Context, name string, memberIDs []string) (*api.Group, error)
	SendMessage(ctx context.Context, content, receiverID, chatGroupID string) error
}

// HubConn is the slice of the live connection a session consumes.
type HubConn interface {
	Start(ctx context.Context) error
	Stop()
	State() hub.State
	Subscribe(h hub.EventHandler) func()
	JoinGroup(ctx context.Context, groupID string) error
}

// =============================================================================
// SESSION
// =============================================================================

// SessionConfig wires a session's collaborators.
type SessionConfig struct {
	// API is the REST collaborator. Required.
	API SessionAPI

	// Hub is this session's live connection. The session owns it: Close
	// stops it, and it is never shared with another session instance.
	Hub HubConn

	// Identity resolves the current user id, consulted at message receipt
	// and fetch resolution time, never cached here. Required.
	Identity func() string

	// Notify is the diagnostic channel (default: discard).
	Notify Notifier

	// SendLimit bounds the outgoing message rate
	// (default: 2 msg/s, burst 5).
	SendLimit *rate.Limiter

	// OnStoreChange fires after every message-store mutation, outside the
	// store's lock. Optional; the TUI uses it to re-render.
	OnStoreChange func()
}

// Session is one mounted chat session: roster, groups, the active
// conversation's message store, and the live connection, torn down as a
// unit.
type Session struct {
	cfg      SessionConfig
	store    *Store
	selector *Selector
	history  *HistoryLoader

	mu          sync.Mutex
	users       []api.User
	groups      []api.Group
	unsubscribe func()

	closeOnce sync.Once
}

// NewSession creates a session around the given collaborators.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Notify == nil {
		cfg.Notify = func(Level, string) {}
	}
	if cfg.SendLimit == nil {
		cfg.SendLimit = rate.NewLimiter(rate.Limit(2), 5)
	}
	if cfg.OnStoreChange == nil {
		cfg.OnStoreChange = func() {}
	}

	s := &Session{
		cfg:      cfg,
		store:    NewStore(),
		selector: NewSelector(),
	}
	s.history = NewHistoryLoader(cfg.API, s.selector, s.store, cfg.Identity)
	return s
}

// Store returns the active conversation's message store.
func (s *Session) Store() *Store {
	return s.store
}

// Selection returns the active conversation selection.
func (s *Session) Selection() Selection {
	return s.selector.Current()
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Open subscribes to live events and starts the hub connection. A connect
// failure is reported to the diagnostic channel and does not fail Open:
// the REST paths keep working, and there is no automatic retry of the
// initial connect.
func (s *Session) Open(ctx context.Context) {
	s.mu.Lock()
	s.unsubscribe = s.cfg.Hub.Subscribe(s.onLiveEvent)
	s.mu.Unlock()

	if err := s.cfg.Hub.Start(ctx); err != nil {
		s.cfg.Notify(LevelError, "live connection failed: "+err.Error())
	}
}

// Close tears the session down: unsubscribes and stops the connection.
// Runs its effects exactly once, on every exit path.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		unsub := s.unsubscribe
		s.unsubscribe = nil
		s.mu.Unlock()

		if unsub != nil {
			unsub()
		}
		s.cfg.Hub.Stop()
	})
}

// onLiveEvent appends one pushed message to the store. Mine is computed
// against the identity resolved now, not at connect time, so events that
// arrive before identity resolution completes still classify correctly
// once it has.
func (s *Session) onLiveEvent(ev hub.Event) {
	me := s.cfg.Identity()
	appended := s.store.Append(DisplayMessage{
		Key:        messageKey(ev.SenderID, ev.Timestamp, ev.Content),
		SenderID:   ev.SenderID,
		SenderName: ev.SenderName,
		Content:    ev.Content,
		Timestamp:  ev.Timestamp,
		Mine:       me != "" && ev.SenderID == me,
	})
	if appended {
		s.cfg.OnStoreChange()
	}
}

// =============================================================================
// ROSTER
// =============================================================================

// RefreshRoster reloads the user and group lists wholesale.
func (s *Session) RefreshRoster(ctx context.Context) error {
	users, err := s.cfg.API.AllUsers(ctx)
	if err != nil {
		return err
	}
	groups, err := s.cfg.API.GroupsForCurrentUser(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.users = users
	s.groups = groups
	s.mu.Unlock()
	return nil
}

// Users returns the roster, excluding the current user.
func (s *Session) Users() []api.User {
	me := s.cfg.Identity()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]api.User, 0, len(s.users))
	for _, u := range s.users {
		if u.ID != me {
			out = append(out, u)
		}
	}
	return out
}

// Groups returns the current user's groups.
func (s *Session) Groups() []api.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Group(nil), s.groups...)
}

// =============================================================================
// CONVERSATION SELECTION
// =============================================================================

// SelectDirect makes peerID the active conversation and loads its history.
func (s *Session) SelectDirect(ctx context.Context, peerID string) error {
	sel := s.selector.SelectDirect(peerID)
	return s.loadHistory(ctx, sel)
}

// SelectGroup makes groupID the active conversation, ensures channel
// membership on the hub, and loads the group's history. The join is
// awaited while connected; before the connection is up it is queued by the
// connection manager rather than lost.
func (s *Session) SelectGroup(ctx context.Context, groupID string) error {
	sel := s.selector.SelectGroup(groupID)

	if err := s.cfg.Hub.JoinGroup(ctx, groupID); err != nil {
		// Membership is required for live events but not for history;
		// degrade to history-only and say so.
		s.cfg.Notify(LevelWarn, "could not join group channel: "+err.Error())
	}
	return s.loadHistory(ctx, sel)
}

func (s *Session) loadHistory(ctx context.Context, sel Selection) error {
	if err := s.history.Load(ctx, sel); err != nil {
		return err
	}
	s.cfg.OnStoreChange()
	return nil
}

// =============================================================================
// SEND PATH
// =============================================================================

// Send validates and dispatches one outgoing message to the active
// conversation. Blank input and rate-limit hits are rejected locally with
// no network call. On failure the caller keeps the composed text; on
// success the composer should be cleared.
func (s *Session) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	sel := s.selector.Current()
	if sel.IsZero() {
		return ErrNoSelection
	}

	if !s.cfg.SendLimit.Allow() {
		return ErrRateLimited
	}

	// Exactly one target, mirroring the wire invariant.
	return s.cfg.API.SendMessage(ctx, content, sel.PeerID, sel.GroupID)
}

// =============================================================================
// GROUP CREATION
// =============================================================================

// CreateGroup validates locally, creates the group on the service, and
// appends the confirmed entity to the local group list.
func (s *Session) CreateGroup(ctx context.Context, name string, memberIDs []string) (*api.Group, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrGroupNameRequired
	}
	if len(memberIDs) == 0 {
		return nil, ErrGroupMembersMissing
	}

	group, err := s.cfg.API.CreateGroup(ctx, strings.TrimSpace(name), memberIDs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.groups = append(s.groups, *group)
	s.mu.Unlock()
	return group, nil
}
