package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renato0307/maestro/internal/adapters/logstore"
	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/ports"
)

type gateFixture struct {
	registry *Registry
	logs     *logstore.Store
	gate     *PermissionGate
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	logs, err := logstore.NewStore(filepath.Join(t.TempDir(), "logs"))
	require.NoError(t, err)

	registry := NewRegistry(time.Hour)
	return &gateFixture{
		registry: registry,
		logs:     logs,
		gate:     NewPermissionGate(registry, logs),
	}
}

func (f *gateFixture) addSession(id string) {
	session := newTestSession(id)
	session.Status = domain.StatusRunning
	f.registry.Upsert(session)
}

// requestAsync fires a gate request in the background and returns the
// decision channel plus the request id once the request is suspended
func (f *gateFixture) requestAsync(t *testing.T, ctx context.Context, sessionID, tool string) (chan domain.Decision, string) {
	t.Helper()

	notifications, unsubscribe := collectNotifications(f.registry)
	defer unsubscribe()

	decisions := make(chan domain.Decision, 1)
	go func() {
		decisions <- f.gate.Request(ctx, sessionID, tool, json.RawMessage(`{"command":"ls"}`))
	}()

	n := waitNotification(t, notifications, ports.NotificationPermissionPending)
	return decisions, n.RequestID
}

func TestGateAutoAcceptShortCircuits(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-1")
	f.registry.SetAutoAccept("session-1", true)

	decision := f.gate.Request(context.Background(), "session-1", "bash", nil)

	assert.Equal(t, domain.DecisionAllowed, decision.Kind)
	assert.Empty(t, f.gate.PendingRequests("session-1"), "auto-accept must not suspend")
}

func TestGateAutoAcceptReadFreshPerRequest(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-1")

	// First request waits for a human
	decisions, requestID := f.requestAsync(t, context.Background(), "session-1", "bash")
	assert.True(t, f.gate.Accept(requestID))
	assert.Equal(t, domain.DecisionAllowed, (<-decisions).Kind)

	// Toggling mid-session applies to the next evaluation
	f.registry.SetAutoAccept("session-1", true)
	decision := f.gate.Request(context.Background(), "session-1", "bash", nil)
	assert.Equal(t, domain.DecisionAllowed, decision.Kind)
	assert.Empty(t, f.gate.PendingRequests("session-1"))
}

func TestGateAutoAcceptToggleDoesNotResolveAlreadyPending(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-1")

	decisions, requestID := f.requestAsync(t, context.Background(), "session-1", "bash")

	// Enabling auto-accept after the request suspended leaves it pending
	f.registry.SetAutoAccept("session-1", true)
	select {
	case decision := <-decisions:
		t.Fatalf("pending request resolved retroactively: %v", decision.Kind)
	case <-time.After(100 * time.Millisecond):
	}

	assert.True(t, f.gate.Accept(requestID))
	assert.Equal(t, domain.DecisionAllowed, (<-decisions).Kind)
}

func TestGateAcceptResolves(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-1")

	decisions, requestID := f.requestAsync(t, context.Background(), "session-1", "bash")

	session, ok := f.registry.Get("session-1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusWaitingPermission, session.Status)
	require.NotNil(t, session.Pending)
	assert.Equal(t, requestID, session.Pending.RequestID)

	assert.True(t, f.gate.Accept(requestID))

	decision := <-decisions
	assert.Equal(t, domain.DecisionAllowed, decision.Kind)

	session, ok = f.registry.Get("session-1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusRunning, session.Status, "accept resumes the session")
	assert.Nil(t, session.Pending)
}

func TestGateRedirectCarriesInstructionVerbatim(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-1")

	decisions, requestID := f.requestAsync(t, context.Background(), "session-1", "bash")

	instruction := "Don't run that; use ripgrep and only search internal/"
	assert.True(t, f.gate.Redirect(requestID, instruction))

	decision := <-decisions
	assert.Equal(t, domain.DecisionDenied, decision.Kind)
	assert.Equal(t, instruction, decision.Reason, "instruction text must not be paraphrased")

	session, ok := f.registry.Get("session-1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusRunning, session.Status, "redirect is a new turn, not a termination")
}

func TestGateRedirectLogsHumanEntry(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-1")

	_, requestID := f.requestAsync(t, context.Background(), "session-1", "bash")
	require.True(t, f.gate.Redirect(requestID, "do it differently"))

	entries, err := f.logs.Read("session-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OriginHuman, entries[0].Origin)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(entries[0].Payload, &payload))
	assert.Equal(t, "permission_redirect", payload["type"])
	assert.Equal(t, requestID, payload["request_id"])
	assert.Equal(t, "bash", payload["tool_name"])
	assert.Equal(t, "do it differently", payload["instruction"])
}

func TestGateSecondRequestWhileOnePendingIsDenied(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-1")

	decisions, requestID := f.requestAsync(t, context.Background(), "session-1", "bash")

	second := f.gate.Request(context.Background(), "session-1", "edit", nil)
	assert.Equal(t, domain.DecisionDenied, second.Kind)

	// The original request is unaffected
	assert.True(t, f.gate.Accept(requestID))
	assert.Equal(t, domain.DecisionAllowed, (<-decisions).Kind)
}

func TestGateAbortSessionResolvesAsAborted(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-1")

	decisions, _ := f.requestAsync(t, context.Background(), "session-1", "bash")

	f.gate.AbortSession("session-1")

	decision := <-decisions
	assert.Equal(t, domain.DecisionAborted, decision.Kind, "abort is distinct from a human deny")
}

func TestGateAbortLeavesOtherSessionsPending(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-a")
	f.addSession("session-b")

	aDecisions, _ := f.requestAsync(t, context.Background(), "session-a", "bash")
	bDecisions, bRequest := f.requestAsync(t, context.Background(), "session-b", "bash")

	f.gate.AbortSession("session-a")

	assert.Equal(t, domain.DecisionAborted, (<-aDecisions).Kind)

	select {
	case d := <-bDecisions:
		t.Fatalf("session-b resolved unexpectedly: %+v", d)
	case <-time.After(50 * time.Millisecond):
	}

	assert.True(t, f.gate.Accept(bRequest))
	assert.Equal(t, domain.DecisionAllowed, (<-bDecisions).Kind)
}

func TestGateContextCancellationAborts(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-1")

	ctx, cancel := context.WithCancel(context.Background())
	decisions, _ := f.requestAsync(t, ctx, "session-1", "bash")

	cancel()

	decision := <-decisions
	assert.Equal(t, domain.DecisionAborted, decision.Kind)

	session, ok := f.registry.Get("session-1")
	require.True(t, ok)
	assert.Nil(t, session.Pending, "cancellation clears the pending record")
}

func TestGateStaleRequestIDIgnored(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-1")

	assert.False(t, f.gate.Accept("never-issued"))
	assert.False(t, f.gate.Redirect("never-issued", "whatever"))
}

func TestGateResolvedRequestIDIsOneShot(t *testing.T) {
	f := newGateFixture(t)
	f.addSession("session-1")

	decisions, requestID := f.requestAsync(t, context.Background(), "session-1", "bash")

	assert.True(t, f.gate.Accept(requestID))
	<-decisions

	assert.False(t, f.gate.Accept(requestID), "a resolved id is stale")
	assert.False(t, f.gate.Redirect(requestID, "late"), "late redirects are ignored")
}
