package ports

import (
	"context"

	"github.com/renato0307/maestro/internal/domain"
)

// CreateWorkspaceInput describes how to derive a new isolated workspace.
// When ParentWorkspace is set and valid, the workspace derives from that
// worktree's current commit instead of Ref.
type CreateWorkspaceInput struct {
	ProjectRoot     string
	Ref             string
	SessionID       string
	Prompt          string
	ParentWorkspace string
}

// WorkspaceManager creates, validates, and removes isolated worktrees
type WorkspaceManager interface {
	Create(ctx context.Context, input CreateWorkspaceInput) (domain.Workspace, error)
	Remove(ctx context.Context, projectRoot, path string) error
	Validate(ctx context.Context, projectRoot, path string) (bool, error)
}
