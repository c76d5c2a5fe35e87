package ports

import (
	"context"
	"encoding/json"

	"github.com/renato0307/maestro/internal/domain"
)

// AgentEventType classifies events emitted by the agent runtime
type AgentEventType string

const (
	AgentEventSystem    AgentEventType = "system"
	AgentEventAssistant AgentEventType = "assistant"
	AgentEventUser      AgentEventType = "user"
	AgentEventResult    AgentEventType = "result"
)

// AgentEvent is one structured event from the agent runtime's stream.
// Payload is the raw event as emitted, passed through unmodified.
// ResumeToken is set when the stream reveals one. Stats is set on the
// terminal result event. Err terminates the stream abnormally.
type AgentEvent struct {
	Type        AgentEventType
	Payload     json.RawMessage
	ResumeToken string
	IsError     bool
	Stats       *domain.UsageStats
	Err         error
}

// ApprovalFunc is invoked by the agent runtime before executing any tool.
// The runtime blocks its own progress until the decision resolves.
type ApprovalFunc func(ctx context.Context, toolName string, toolInput json.RawMessage) domain.Decision

// RunInput configures one agent run
type RunInput struct {
	Prompt      string
	WorkingDir  string
	ResumeToken string
	Approve     ApprovalFunc
}

// AgentRunner starts the agent runtime and yields its event stream.
// The returned channel is closed when the stream ends; an abnormal end
// is signalled by a final event with Err set.
type AgentRunner interface {
	Run(ctx context.Context, input RunInput) (<-chan AgentEvent, error)
}
