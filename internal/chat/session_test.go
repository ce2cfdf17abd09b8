// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jeranaias/commshub-tui/internal/api"
	"github.com/jeranaias/commshub-tui/internal/hub"
)

// =============================================================================
// FAKES
// =============================================================================

type sentMessage struct {
	content, receiverID, chatGroupID string
}

type fakeSessionAPI struct {
	*fakeHistoryAPI

	mu      sync.Mutex
	users   []api.User
	groups  []api.Group
	sent    []sentMessage
	sendErr error
	created []api.Group
}

func newFakeSessionAPI() *fakeSessionAPI {
	return &fakeSessionAPI{fakeHistoryAPI: newFakeHistoryAPI()}
}

func (f *fakeSessionAPI) AllUsers(context.Context) ([]api.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users, nil
}

func (f *fakeSessionAPI) GroupsForCurrentUser(context.Context) ([]api.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups, nil
}

func (f *fakeSessionAPI) CreateGroup(_ context.Context, name string, memberIDs []string) (*api.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := api.Group{ID: "g-new", Name: name, MemberIDs: memberIDs}
	f.created = append(f.created, g)
	return &g, nil
}

func (f *fakeSessionAPI) SendMessage(_ context.Context, content, receiverID, chatGroupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{content, receiverID, chatGroupID})
	return nil
}

func (f *fakeSessionAPI) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeHub struct {
	mu       sync.Mutex
	handler  hub.EventHandler
	joins    []string
	joinErr  error
	startErr error
	stops    int
	unsubs   int
}

func (f *fakeHub) Start(context.Context) error { return f.startErr }

func (f *fakeHub) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeHub) State() hub.State { return hub.StateConnected }

func (f *fakeHub) Subscribe(h hub.EventHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubs++
	}
}

func (f *fakeHub) JoinGroup(_ context.Context, groupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joins = append(f.joins, groupID)
	return nil
}

func (f *fakeHub) push(ev hub.Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

type capturedNote struct {
	level Level
	msg   string
}

func newSessionForTest(t *testing.T, apiFake *fakeSessionAPI, hubFake *fakeHub) (*Session, *[]capturedNote) {
	t.Helper()
	notes := &[]capturedNote{}
	var mu sync.Mutex
	s := NewSession(SessionConfig{
		API:      apiFake,
		Hub:      hubFake,
		Identity: func() string { return "u1" },
		Notify: func(level Level, msg string) {
			mu.Lock()
			defer mu.Unlock()
			*notes = append(*notes, capturedNote{level, msg})
		},
	})
	t.Cleanup(s.Close)
	return s, notes
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestSessionOpenSubscribesBeforeStart(t *testing.T) {
	apiFake := newFakeSessionAPI()
	hubFake := &fakeHub{}
	s, _ := newSessionForTest(t, apiFake, hubFake)

	s.Open(context.Background())

	// An event arriving immediately after connect must already have a
	// handler to land in.
	hubFake.push(hub.Event{SenderID: "u2", Content: "early", Timestamp: time.Unix(1, 0)})
	require.Equal(t, 1, s.Store().Len())
}

func TestSessionOpenSurvivesConnectFailure(t *testing.T) {
	apiFake := newFakeSessionAPI()
	apiFake.private["u2"] = []api.Message{histMsg("u2", "rest still works", 10)}
	hubFake := &fakeHub{startErr: errors.New("dial refused")}
	s, notes := newSessionForTest(t, apiFake, hubFake)

	s.Open(context.Background())

	require.Len(t, *notes, 1)
	require.Equal(t, LevelError, (*notes)[0].level)

	// History over REST is unaffected by the dead live channel.
	require.NoError(t, s.SelectDirect(context.Background(), "u2"))
	require.Equal(t, 1, s.Store().Len())
}

func TestSessionRebuildRecomputesOwnership(t *testing.T) {
	apiFake := newFakeSessionAPI()
	apiFake.private["u2"] = []api.Message{histMsg("u1", "sent before the switch", 10)}

	build := func(id string) *Session {
		return NewSession(SessionConfig{
			API:      apiFake,
			Hub:      &fakeHub{},
			Identity: func() string { return id },
		})
	}

	// First mount: the stored message belongs to the signed-in user.
	first := build("u1")
	first.Open(context.Background())
	require.NoError(t, first.SelectDirect(context.Background(), "u2"))
	require.True(t, first.Store().Messages()[0].Mine)
	first.Close()

	// A credential change means a fresh session. Nothing classified
	// under the old identity carries over, and the same history row now
	// reads as someone else's message.
	second := build("u9")
	t.Cleanup(second.Close)
	second.Open(context.Background())

	require.Equal(t, 0, second.Store().Len())
	require.True(t, second.Selection().IsZero())

	require.NoError(t, second.SelectDirect(context.Background(), "u2"))
	require.False(t, second.Store().Messages()[0].Mine,
		"ownership must follow the current session's identity")
}

func TestSessionCloseRunsOnce(t *testing.T) {
	apiFake := newFakeSessionAPI()
	hubFake := &fakeHub{}
	s, _ := newSessionForTest(t, apiFake, hubFake)

	s.Open(context.Background())
	s.Close()
	s.Close()

	hubFake.mu.Lock()
	defer hubFake.mu.Unlock()
	require.Equal(t, 1, hubFake.stops)
	require.Equal(t, 1, hubFake.unsubs)
}

// =============================================================================
// LIVE EVENTS
// =============================================================================

func TestSessionLiveEventOwnership(t *testing.T) {
	apiFake := newFakeSessionAPI()
	hubFake := &fakeHub{}
	s, _ := newSessionForTest(t, apiFake, hubFake)
	s.Open(context.Background())

	hubFake.push(hub.Event{SenderID: "u1", SenderName: "me", Content: "echoed back", Timestamp: time.Unix(1, 0)})
	hubFake.push(hub.Event{SenderID: "u2", SenderName: "peer", Content: "theirs", Timestamp: time.Unix(2, 0)})

	got := s.Store().Messages()
	require.Len(t, got, 2)
	require.True(t, got[0].Mine, "own senderId must classify as mine")
	require.False(t, got[1].Mine)
}

func TestSessionLiveDuplicateDropped(t *testing.T) {
	apiFake := newFakeSessionAPI()
	hubFake := &fakeHub{}

	var changes int
	var mu sync.Mutex
	s := NewSession(SessionConfig{
		API:      apiFake,
		Hub:      hubFake,
		Identity: func() string { return "u1" },
		OnStoreChange: func() {
			mu.Lock()
			defer mu.Unlock()
			changes++
		},
	})
	t.Cleanup(s.Close)
	s.Open(context.Background())

	ev := hub.Event{SenderID: "u2", Content: "once", Timestamp: time.Unix(1, 0)}
	hubFake.push(ev)
	hubFake.push(ev)

	require.Equal(t, 1, s.Store().Len())
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, changes, "duplicate must not trigger a render")
}

// =============================================================================
// SEND PATH
// =============================================================================

func TestSessionSendDirectTarget(t *testing.T) {
	apiFake := newFakeSessionAPI()
	s, _ := newSessionForTest(t, apiFake, &fakeHub{})

	require.NoError(t, s.SelectDirect(context.Background(), "u2"))
	require.NoError(t, s.Send(context.Background(), "hello"))

	sent := apiFake.sentMessages()
	require.Len(t, sent, 1)
	require.Equal(t, sentMessage{content: "hello", receiverID: "u2", chatGroupID: ""}, sent[0])
}

func TestSessionSendGroupTarget(t *testing.T) {
	apiFake := newFakeSessionAPI()
	s, _ := newSessionForTest(t, apiFake, &fakeHub{})

	require.NoError(t, s.SelectGroup(context.Background(), "g1"))
	require.NoError(t, s.Send(context.Background(), "  all hands  "))

	sent := apiFake.sentMessages()
	require.Len(t, sent, 1)
	require.Equal(t, sentMessage{content: "all hands", receiverID: "", chatGroupID: "g1"}, sent[0])
}

func TestSessionSendRejectsBlankWithoutRequest(t *testing.T) {
	apiFake := newFakeSessionAPI()
	s, _ := newSessionForTest(t, apiFake, &fakeHub{})
	require.NoError(t, s.SelectDirect(context.Background(), "u2"))

	require.ErrorIs(t, s.Send(context.Background(), "   \n\t "), ErrEmptyMessage)
	require.Empty(t, apiFake.sentMessages())
}

func TestSessionSendRequiresSelection(t *testing.T) {
	apiFake := newFakeSessionAPI()
	s, _ := newSessionForTest(t, apiFake, &fakeHub{})

	require.ErrorIs(t, s.Send(context.Background(), "hello"), ErrNoSelection)
	require.Empty(t, apiFake.sentMessages())
}

func TestSessionSendRateLimited(t *testing.T) {
	apiFake := newFakeSessionAPI()
	s := NewSession(SessionConfig{
		API:       apiFake,
		Hub:       &fakeHub{},
		Identity:  func() string { return "u1" },
		SendLimit: rate.NewLimiter(rate.Limit(1), 1),
	})
	t.Cleanup(s.Close)
	require.NoError(t, s.SelectDirect(context.Background(), "u2"))

	require.NoError(t, s.Send(context.Background(), "one"))
	require.ErrorIs(t, s.Send(context.Background(), "two"), ErrRateLimited)
	require.Len(t, apiFake.sentMessages(), 1)
}

// =============================================================================
// SELECTION AND MEMBERSHIP
// =============================================================================

func TestSessionSelectGroupJoinsChannel(t *testing.T) {
	apiFake := newFakeSessionAPI()
	apiFake.group["g1"] = []api.Message{histMsg("u2", "minutes", 10)}
	hubFake := &fakeHub{}
	s, _ := newSessionForTest(t, apiFake, hubFake)

	require.NoError(t, s.SelectGroup(context.Background(), "g1"))

	hubFake.mu.Lock()
	joins := append([]string(nil), hubFake.joins...)
	hubFake.mu.Unlock()
	require.Equal(t, []string{"g1"}, joins)
	require.Equal(t, 1, s.Store().Len())
}

func TestSessionJoinFailureStillLoadsHistory(t *testing.T) {
	apiFake := newFakeSessionAPI()
	apiFake.group["g1"] = []api.Message{histMsg("u2", "still readable", 10)}
	hubFake := &fakeHub{joinErr: errors.New("join rejected")}
	s, notes := newSessionForTest(t, apiFake, hubFake)

	require.NoError(t, s.SelectGroup(context.Background(), "g1"))

	require.Equal(t, 1, s.Store().Len())
	require.Len(t, *notes, 1)
	require.Equal(t, LevelWarn, (*notes)[0].level)
}

// =============================================================================
// ROSTER AND GROUPS
// =============================================================================

func TestSessionRosterExcludesSelf(t *testing.T) {
	apiFake := newFakeSessionAPI()
	apiFake.users = []api.User{{ID: "u1", Email: "me@x"}, {ID: "u2", Email: "peer@x"}}
	apiFake.groups = []api.Group{{ID: "g1", Name: "ops"}}
	s, _ := newSessionForTest(t, apiFake, &fakeHub{})

	require.NoError(t, s.RefreshRoster(context.Background()))

	users := s.Users()
	require.Len(t, users, 1)
	require.Equal(t, "u2", users[0].ID)
	require.Len(t, s.Groups(), 1)
}

func TestSessionCreateGroupValidatesLocally(t *testing.T) {
	apiFake := newFakeSessionAPI()
	s, _ := newSessionForTest(t, apiFake, &fakeHub{})

	_, err := s.CreateGroup(context.Background(), "  ", []string{"u2"})
	require.ErrorIs(t, err, ErrGroupNameRequired)

	_, err = s.CreateGroup(context.Background(), "ops", nil)
	require.ErrorIs(t, err, ErrGroupMembersMissing)

	apiFake.mu.Lock()
	require.Empty(t, apiFake.created)
	apiFake.mu.Unlock()
}

func TestSessionCreateGroupAppendsToList(t *testing.T) {
	apiFake := newFakeSessionAPI()
	s, _ := newSessionForTest(t, apiFake, &fakeHub{})

	g, err := s.CreateGroup(context.Background(), " ops ", []string{"u2", "u3"})
	require.NoError(t, err)
	require.Equal(t, "ops", g.Name)

	groups := s.Groups()
	require.Len(t, groups, 1)
	require.Equal(t, "g-new", groups[0].ID)
}
