package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ports"
)

// Registry is the single source of truth for live session state. Every
// transition fans out to subscribed observers. Terminal sessions are
// removed from the live table after a grace period; the durable record,
// log, and workspace are untouched by removal.
type Registry struct {
	mu             sync.RWMutex
	sessions       map[string]*domain.Session
	observers      map[int]ports.Observer
	nextObserverID int
	timers         map[string]*time.Timer
	gracePeriod    time.Duration
}

// NewRegistry creates a registry. gracePeriod controls how long terminal
// sessions stay visible to observers before the live entry is dropped.
func NewRegistry(gracePeriod time.Duration) *Registry {
	return &Registry{
		sessions:    make(map[string]*domain.Session),
		observers:   make(map[int]ports.Observer),
		timers:      make(map[string]*time.Timer),
		gracePeriod: gracePeriod,
	}
}

// Subscribe registers an observer and returns its unsubscribe function.
// Any number of observers may register independently.
func (r *Registry) Subscribe(observer ports.Observer) func() {
	r.mu.Lock()
	id := r.nextObserverID
	r.nextObserverID++
	r.observers[id] = observer
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.observers, id)
		r.mu.Unlock()
	}
}

// Upsert stores a deep copy of the session in the live table
func (r *Registry) Upsert(session *domain.Session) {
	r.mu.Lock()
	r.sessions[session.ID] = session.Clone()
	r.mu.Unlock()
}

// Get returns a deep copy of the live session, if present
func (r *Registry) Get(sessionID string) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return session.Clone(), true
}

// List returns deep copies of all live sessions
func (r *Registry) List() []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]domain.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, *session.Clone())
	}
	return sessions
}

// SetStatus transitions a session and notifies observers. Terminal
// transitions schedule removal of the live entry after the grace period.
func (r *Registry) SetStatus(sessionID string, status domain.Status, detail string) {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		logging.Logger.Debug("Status update for unknown session", "session_id", sessionID, "status", status)
		return
	}

	session.Status = status
	session.UpdatedAt = time.Now().UTC()
	if status == domain.StatusError {
		session.LastError = detail
	}

	if status.IsTerminal() {
		r.scheduleRemovalLocked(sessionID)
	}
	r.mu.Unlock()

	r.notify(ports.Notification{
		Type:      ports.NotificationStateChanged,
		SessionID: sessionID,
		Status:    status,
		Detail:    detail,
	})
}

// SetPending records the session's outstanding permission request.
// Returns ErrPermissionPending when one is already outstanding; a session
// holds at most one at a time.
func (r *Registry) SetPending(sessionID string, pending *domain.PendingPermission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Pending != nil {
		return ErrPermissionPending
	}

	clone := *pending
	clone.ToolInput = append(json.RawMessage(nil), pending.ToolInput...)
	session.Pending = &clone
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// ClearPending drops the session's outstanding permission request
func (r *Registry) ClearPending(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[sessionID]; ok {
		session.Pending = nil
		session.UpdatedAt = time.Now().UTC()
	}
}

// SetAutoAccept flips the session's auto-accept flag. Takes effect on the
// next permission evaluation; an already pending request is unaffected.
func (r *Registry) SetAutoAccept(sessionID string, autoAccept bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[sessionID]; ok {
		session.AutoAccept = autoAccept
		session.UpdatedAt = time.Now().UTC()
	}
}

// AutoAccept reads the session's current auto-accept flag. Always a fresh
// read so mid-session toggles take effect immediately.
func (r *Registry) AutoAccept(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if session, ok := r.sessions[sessionID]; ok {
		return session.AutoAccept
	}
	return false
}

// NotifyPermissionPending pushes a permission-pending notification
func (r *Registry) NotifyPermissionPending(sessionID string, pending *domain.PendingPermission) {
	r.notify(ports.Notification{
		Type:      ports.NotificationPermissionPending,
		SessionID: sessionID,
		RequestID: pending.RequestID,
		ToolName:  pending.ToolName,
		ToolInput: pending.ToolInput,
	})
}

// NotifyPermissionResolved pushes a permission-resolved notification
func (r *Registry) NotifyPermissionResolved(sessionID, requestID string, outcome domain.DecisionKind) {
	r.notify(ports.Notification{
		Type:      ports.NotificationPermissionResolved,
		SessionID: sessionID,
		RequestID: requestID,
		Outcome:   outcome,
	})
}

// NotifyAgentEvent pushes an agent event, tagged with its owning session
func (r *Registry) NotifyAgentEvent(sessionID string, payload json.RawMessage, stats *domain.UsageStats) {
	r.notify(ports.Notification{
		Type:      ports.NotificationAgentEvent,
		SessionID: sessionID,
		Payload:   payload,
		Stats:     stats,
	})
}

// notify fans out to all observers without holding the lock
func (r *Registry) notify(notification ports.Notification) {
	r.mu.RLock()
	observers := make([]ports.Observer, 0, len(r.observers))
	for _, observer := range r.observers {
		observers = append(observers, observer)
	}
	r.mu.RUnlock()

	for _, observer := range observers {
		observer.Notify(notification)
	}
}

// scheduleRemovalLocked arms the grace timer for a terminal session.
// Caller holds r.mu.
func (r *Registry) scheduleRemovalLocked(sessionID string) {
	if timer, ok := r.timers[sessionID]; ok {
		timer.Stop()
	}
	r.timers[sessionID] = time.AfterFunc(r.gracePeriod, func() {
		r.mu.Lock()
		delete(r.sessions, sessionID)
		delete(r.timers, sessionID)
		r.mu.Unlock()
		logging.Logger.Debug("Removed terminal session from live registry", "session_id", sessionID)
	})
}
