package domain

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle state of a conversation session
type Status string

const (
	StatusIdle              Status = "idle"
	StatusRunning           Status = "running"
	StatusWaitingPermission Status = "waiting_permission"
	StatusCompleted         Status = "completed"
	StatusError             Status = "error"
	StatusAborted           Status = "aborted"
)

// IsTerminal reports whether the status is a final one
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusAborted
}

// Origin tags who produced a log entry
type Origin string

const (
	OriginHuman  Origin = "human"
	OriginAgent  Origin = "agent"
	OriginSystem Origin = "system"
)

// LogEntry is the append-only unit of a session's durable log
type LogEntry struct {
	Origin    Origin          `json:"origin"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// PendingPermission describes one outstanding tool approval request.
// A session holds at most one at any time; RequestID is never reused.
type PendingPermission struct {
	RequestID   string          `json:"request_id"`
	ToolName    string          `json:"tool_name"`
	ToolInput   json.RawMessage `json:"tool_input"`
	RequestedAt time.Time       `json:"requested_at"`
}

// Session represents one agent-driven coding conversation (domain entity)
type Session struct {
	ID            string
	Prompt        string
	ProjectRoot   string
	Status        Status
	ResumeToken   string
	WorkspacePath string
	BranchName    string
	LogPath       string
	Pending       *PendingPermission
	AutoAccept    bool
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy so callers never share internal pointers
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s
	if s.Pending != nil {
		pending := *s.Pending
		pending.ToolInput = append(json.RawMessage(nil), s.Pending.ToolInput...)
		copied.Pending = &pending
	}
	return &copied
}

// Workspace is an isolated, branch-backed working copy dedicated to one session
type Workspace struct {
	Path            string
	Branch          string
	BaseRef         string
	ParentWorkspace string
}

// UsageStats carries the accounting a terminal result event may include
type UsageStats struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	DurationMS   int64   `json:"duration_ms"`
	NumTurns     int     `json:"num_turns"`
}
