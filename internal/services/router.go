package services

import (
	"context"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ports"
)

// FocusFunc reports which session the operator is currently viewing.
// Re-evaluated on every routed event; focus can change mid-stream.
type FocusFunc func() string

// ForwardFunc delivers an event to the live viewer
type ForwardFunc func(sessionID string, event ports.AgentEvent)

// RouteOutcome tells the caller what the routed event meant for the
// session's lifecycle
type RouteOutcome struct {
	Terminal    bool
	IsError     bool
	Stats       *domain.UsageStats
	ResumeToken string
}

// MessageRouter demultiplexes agent event streams for N concurrent
// sessions: every attributable event is persisted to exactly its owning
// session's log, and forwarded live only while that session is focused.
type MessageRouter struct {
	log      ports.SessionLog
	store    ports.SessionStore
	registry *Registry
	focused  FocusFunc
	forward  ForwardFunc
}

// NewMessageRouter creates a router. focused and forward may be nil when
// there is no live viewer.
func NewMessageRouter(log ports.SessionLog, store ports.SessionStore, registry *Registry, focused FocusFunc, forward ForwardFunc) *MessageRouter {
	return &MessageRouter{
		log:      log,
		store:    store,
		registry: registry,
		focused:  focused,
		forward:  forward,
	}
}

// Route handles one event for its owning session. Unattributable events
// are logged and dropped; writing them anywhere would contaminate other
// sessions. Persistence happens unconditionally, viewer forwarding only
// when the focus predicate matches at the moment of routing.
func (r *MessageRouter) Route(ctx context.Context, sessionID string, event ports.AgentEvent) (RouteOutcome, error) {
	if sessionID == "" {
		logging.Logger.Warn("Dropping unattributable agent event", "type", event.Type)
		return RouteOutcome{}, nil
	}

	var outcome RouteOutcome

	if len(event.Payload) > 0 {
		if err := r.log.Append(sessionID, domain.LogEntry{
			Origin:  domain.OriginAgent,
			Payload: event.Payload,
		}); err != nil {
			return outcome, err
		}
	}

	if r.focused != nil && r.forward != nil && r.focused() == sessionID {
		r.forward(sessionID, event)
	}

	r.registry.NotifyAgentEvent(sessionID, event.Payload, event.Stats)

	if event.ResumeToken != "" {
		outcome.ResumeToken = event.ResumeToken
		if err := r.store.UpdateResumeToken(ctx, sessionID, event.ResumeToken); err != nil {
			logging.Logger.Warn("Failed to persist resume token", "session_id", sessionID, "error", err)
		}
	}

	if event.Type == ports.AgentEventResult {
		outcome.Terminal = true
		outcome.IsError = event.IsError
		outcome.Stats = event.Stats
		if event.Stats != nil {
			if err := r.store.UpdateUsage(ctx, sessionID, *event.Stats); err != nil {
				logging.Logger.Warn("Failed to persist usage stats", "session_id", sessionID, "error", err)
			}
		}
	}

	return outcome, nil
}
