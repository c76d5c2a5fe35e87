package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renato0307/maestro/internal/adapters/logstore"
	"github.com/renato0307/maestro/internal/adapters/storage"
	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/ports"
)

type routerFixture struct {
	logs     *logstore.Store
	store    *storage.SQLiteStore
	registry *Registry
	router   *MessageRouter

	mu        sync.Mutex
	focused   string
	forwarded []string
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	logs, err := logstore.NewStore(filepath.Join(t.TempDir(), "logs"))
	require.NoError(t, err)

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &routerFixture{
		logs:     logs,
		store:    store,
		registry: NewRegistry(time.Hour),
	}
	f.router = NewMessageRouter(logs, store, f.registry,
		func() string {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.focused
		},
		func(sessionID string, event ports.AgentEvent) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.forwarded = append(f.forwarded, sessionID)
		},
	)
	return f
}

func (f *routerFixture) focus(sessionID string) {
	f.mu.Lock()
	f.focused = sessionID
	f.mu.Unlock()
}

func (f *routerFixture) forwardedSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.forwarded...)
}

func (f *routerFixture) addRecord(t *testing.T, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, f.store.Upsert(context.Background(), ports.SessionRecord{
		ID:          id,
		Prompt:      "test",
		ProjectRoot: "/repo",
		Status:      domain.StatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
	f.registry.Upsert(newTestSession(id))
}

func agentEvent(eventType ports.AgentEventType, payload string) ports.AgentEvent {
	return ports.AgentEvent{Type: eventType, Payload: json.RawMessage(payload)}
}

func TestRoutePersistsWithoutFocus(t *testing.T) {
	f := newRouterFixture(t)
	f.addRecord(t, "session-1")
	f.focus("someone-else")

	_, err := f.router.Route(context.Background(), "session-1", agentEvent(ports.AgentEventAssistant, `{"n":1}`))

	require.NoError(t, err)
	entries, err := f.logs.Read("session-1")
	require.NoError(t, err)
	require.Len(t, entries, 1, "persistence is unconditional")
	assert.Equal(t, domain.OriginAgent, entries[0].Origin)
	assert.Empty(t, f.forwardedSessions(), "unfocused events are not forwarded")
}

func TestRouteForwardsOnlyWhenFocused(t *testing.T) {
	f := newRouterFixture(t)
	f.addRecord(t, "session-1")
	f.focus("session-1")

	_, err := f.router.Route(context.Background(), "session-1", agentEvent(ports.AgentEventAssistant, `{"n":1}`))

	require.NoError(t, err)
	assert.Equal(t, []string{"session-1"}, f.forwardedSessions())
}

func TestRouteFocusReEvaluatedPerEvent(t *testing.T) {
	f := newRouterFixture(t)
	f.addRecord(t, "session-1")
	ctx := context.Background()

	f.focus("session-1")
	_, err := f.router.Route(ctx, "session-1", agentEvent(ports.AgentEventAssistant, `{"n":1}`))
	require.NoError(t, err)

	f.focus("")
	_, err = f.router.Route(ctx, "session-1", agentEvent(ports.AgentEventAssistant, `{"n":2}`))
	require.NoError(t, err)

	f.focus("session-1")
	_, err = f.router.Route(ctx, "session-1", agentEvent(ports.AgentEventAssistant, `{"n":3}`))
	require.NoError(t, err)

	assert.Len(t, f.forwardedSessions(), 2, "the mid-stream unfocused event is skipped")

	entries, err := f.logs.Read("session-1")
	require.NoError(t, err)
	assert.Len(t, entries, 3, "every event is persisted regardless of focus")
}

func TestRouteNoCrossSessionContamination(t *testing.T) {
	f := newRouterFixture(t)
	f.addRecord(t, "session-a")
	f.addRecord(t, "session-b")
	ctx := context.Background()

	_, err := f.router.Route(ctx, "session-a", agentEvent(ports.AgentEventAssistant, `{"for":"a"}`))
	require.NoError(t, err)
	_, err = f.router.Route(ctx, "session-b", agentEvent(ports.AgentEventAssistant, `{"for":"b"}`))
	require.NoError(t, err)

	a, err := f.logs.Read("session-a")
	require.NoError(t, err)
	b, err := f.logs.Read("session-b")
	require.NoError(t, err)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.JSONEq(t, `{"for":"a"}`, string(a[0].Payload))
	assert.JSONEq(t, `{"for":"b"}`, string(b[0].Payload))
}

func TestRouteDropsUnattributableEvents(t *testing.T) {
	f := newRouterFixture(t)

	outcome, err := f.router.Route(context.Background(), "", agentEvent(ports.AgentEventAssistant, `{"orphan":true}`))

	require.NoError(t, err, "unattributable events are dropped, not fatal")
	assert.Equal(t, RouteOutcome{}, outcome)
	assert.Empty(t, f.forwardedSessions())
}

func TestRoutePersistsResumeToken(t *testing.T) {
	f := newRouterFixture(t)
	f.addRecord(t, "session-1")

	event := agentEvent(ports.AgentEventSystem, `{"type":"system"}`)
	event.ResumeToken = "resume-token-1"

	outcome, err := f.router.Route(context.Background(), "session-1", event)

	require.NoError(t, err)
	assert.Equal(t, "resume-token-1", outcome.ResumeToken)

	record, err := f.store.Get(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, "resume-token-1", record.ResumeToken)
}

func TestRouteResultEventIsTerminal(t *testing.T) {
	f := newRouterFixture(t)
	f.addRecord(t, "session-1")

	stats := &domain.UsageStats{InputTokens: 10, OutputTokens: 20, TotalCostUSD: 0.01, NumTurns: 2}
	event := agentEvent(ports.AgentEventResult, `{"type":"result"}`)
	event.Stats = stats

	outcome, err := f.router.Route(context.Background(), "session-1", event)

	require.NoError(t, err)
	assert.True(t, outcome.Terminal)
	assert.False(t, outcome.IsError)
	assert.Equal(t, stats, outcome.Stats)

	record, err := f.store.Get(context.Background(), "session-1")
	require.NoError(t, err)
	require.NotNil(t, record.Usage)
	assert.Equal(t, *stats, *record.Usage)
}

func TestRouteErrorResult(t *testing.T) {
	f := newRouterFixture(t)
	f.addRecord(t, "session-1")

	event := agentEvent(ports.AgentEventResult, `{"type":"result","is_error":true}`)
	event.IsError = true

	outcome, err := f.router.Route(context.Background(), "session-1", event)

	require.NoError(t, err)
	assert.True(t, outcome.Terminal)
	assert.True(t, outcome.IsError)
}
