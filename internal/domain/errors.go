package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")

	// ErrPermissionAborted resolves a pending permission when the session's
	// cancellation fired, as opposed to a human deny
	ErrPermissionAborted = errors.New("permission request aborted")
)

// WorkspaceError reports a failure to create, validate, or remove an
// isolated workspace. Sessions never reach running when creation fails.
type WorkspaceError struct {
	Op   string
	Path string
	Err  error
}

func (e *WorkspaceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("workspace %s: %v", e.Op, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// StreamError reports an agent event stream ending abnormally. EventsRouted
// lets the orchestrator distinguish a partial success from a dead start.
type StreamError struct {
	SessionID    string
	EventsRouted int
	Err          error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("agent stream for session %s failed after %d events: %v", e.SessionID, e.EventsRouted, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// PersistenceError reports a durable log append or parse failure
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure at %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
