package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ports"
)

// ErrPermissionPending reports a second permission request arriving while
// one is already outstanding for the session
var ErrPermissionPending = errors.New("a permission request is already pending for this session")

// pendingRequest is one suspended wait in the arena. The resolve channel
// is buffered and written exactly once.
type pendingRequest struct {
	sessionID string
	toolName  string
	resolve   chan domain.Decision
}

// PermissionGate suspends tool invocations until a human decides, the
// session's auto-accept flag short-circuits, or the session is aborted.
// Requests wait indefinitely; there is no timeout.
type PermissionGate struct {
	registry *Registry
	log      ports.SessionLog

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewPermissionGate creates a gate backed by the given registry and log
func NewPermissionGate(registry *Registry, log ports.SessionLog) *PermissionGate {
	return &PermissionGate{
		registry: registry,
		log:      log,
		pending:  make(map[string]*pendingRequest),
	}
}

// Request gates one tool invocation. The auto-accept flag is read fresh
// here, never captured earlier, so a mid-session toggle takes effect on
// the next request. Blocks until a human accepts or redirects, or ctx is
// cancelled (session abort).
func (g *PermissionGate) Request(ctx context.Context, sessionID, toolName string, toolInput json.RawMessage) domain.Decision {
	if g.registry.AutoAccept(sessionID) {
		logging.Logger.Debug("Auto-accepting tool invocation", "session_id", sessionID, "tool", toolName)
		return domain.Allow()
	}

	pending := &domain.PendingPermission{
		RequestID:   uuid.New().String(),
		ToolName:    toolName,
		ToolInput:   toolInput,
		RequestedAt: time.Now().UTC(),
	}

	if err := g.registry.SetPending(sessionID, pending); err != nil {
		logging.Logger.Error("Rejecting permission request", "session_id", sessionID, "tool", toolName, "error", err)
		return domain.Deny(err.Error())
	}

	request := &pendingRequest{
		sessionID: sessionID,
		toolName:  toolName,
		resolve:   make(chan domain.Decision, 1),
	}
	g.mu.Lock()
	g.pending[pending.RequestID] = request
	g.mu.Unlock()

	g.registry.SetStatus(sessionID, domain.StatusWaitingPermission, toolName)
	g.registry.NotifyPermissionPending(sessionID, pending)

	logging.Logger.Info("Permission request suspended",
		"session_id", sessionID,
		"request_id", pending.RequestID,
		"tool", toolName,
	)

	select {
	case decision := <-request.resolve:
		g.clear(sessionID, pending.RequestID)
		// Both accept and redirect leave the session running; a redirect
		// becomes the agent's next turn, not a termination
		g.registry.SetStatus(sessionID, domain.StatusRunning, "")
		g.registry.NotifyPermissionResolved(sessionID, pending.RequestID, decision.Kind)
		return decision

	case <-ctx.Done():
		g.clear(sessionID, pending.RequestID)
		g.registry.NotifyPermissionResolved(sessionID, pending.RequestID, domain.DecisionAborted)
		logging.Logger.Info("Permission request aborted with session",
			"session_id", sessionID,
			"request_id", pending.RequestID,
		)
		return domain.Abort()
	}
}

// Accept resolves a pending request as allowed. Responses bearing an
// unknown or stale request id are ignored.
func (g *PermissionGate) Accept(requestID string) bool {
	return g.resolve(requestID, domain.Allow())
}

// Redirect resolves a pending request as denied, with the replacement
// instructions embedded verbatim so the agent receives them as its next
// turn's context. The cancellation is logged before the decision is
// delivered.
func (g *PermissionGate) Redirect(requestID, instruction string) bool {
	g.mu.Lock()
	request, ok := g.pending[requestID]
	g.mu.Unlock()
	if !ok {
		logging.Logger.Debug("Ignoring redirect for unknown request", "request_id", requestID)
		return false
	}

	payload, err := json.Marshal(map[string]string{
		"type":        "permission_redirect",
		"request_id":  requestID,
		"tool_name":   request.toolName,
		"instruction": instruction,
	})
	if err == nil {
		if aerr := g.log.Append(request.sessionID, domain.LogEntry{
			Origin:  domain.OriginHuman,
			Payload: payload,
		}); aerr != nil {
			logging.Logger.Warn("Failed to log permission redirect", "session_id", request.sessionID, "error", aerr)
		}
	}

	return g.resolve(requestID, domain.Deny(instruction))
}

// AbortSession resolves any pending request owned by the session as
// aborted. Other sessions' requests are untouched.
func (g *PermissionGate) AbortSession(sessionID string) {
	g.mu.Lock()
	var ids []string
	for id, request := range g.pending {
		if request.sessionID == sessionID {
			ids = append(ids, id)
		}
	}
	g.mu.Unlock()

	for _, id := range ids {
		g.resolve(id, domain.Abort())
	}
}

// resolve fires a one-shot resolver and removes it from the arena.
// Unknown request ids (stale, duplicate, superseded) are ignored.
func (g *PermissionGate) resolve(requestID string, decision domain.Decision) bool {
	g.mu.Lock()
	request, ok := g.pending[requestID]
	if ok {
		delete(g.pending, requestID)
	}
	g.mu.Unlock()

	if !ok {
		logging.Logger.Debug("Ignoring response for unknown permission request", "request_id", requestID)
		return false
	}

	request.resolve <- decision
	return true
}

// clear removes the arena entry and the session's pending record on any
// exit path
func (g *PermissionGate) clear(sessionID, requestID string) {
	g.mu.Lock()
	delete(g.pending, requestID)
	g.mu.Unlock()
	g.registry.ClearPending(sessionID)
}

// PendingRequests returns the request ids currently suspended for a
// session (at most one under normal operation)
func (g *PermissionGate) PendingRequests(sessionID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ids []string
	for id, request := range g.pending {
		if request.sessionID == sessionID {
			ids = append(ids, id)
		}
	}
	return ids
}
