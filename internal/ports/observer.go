package ports

import (
	"encoding/json"

	"github.com/renato0307/maestro/internal/domain"
)

// NotificationType classifies registry notifications
type NotificationType string

const (
	NotificationStateChanged       NotificationType = "session-state-changed"
	NotificationPermissionPending  NotificationType = "permission-pending"
	NotificationPermissionResolved NotificationType = "permission-resolved"
	NotificationAgentEvent         NotificationType = "agent-event"
)

// Notification is one (sessionId, event) pair pushed to observers
type Notification struct {
	Type      NotificationType
	SessionID string

	// session-state-changed
	Status domain.Status
	Detail string

	// permission-pending / permission-resolved
	RequestID string
	ToolName  string
	ToolInput json.RawMessage
	Outcome   domain.DecisionKind

	// agent-event
	Payload json.RawMessage
	Stats   *domain.UsageStats
}

// Observer receives registry notifications. Implementations must not
// block; slow consumers should buffer on their side.
type Observer interface {
	Notify(notification Notification)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(notification Notification)

// Notify implements Observer
func (f ObserverFunc) Notify(notification Notification) { f(notification) }
