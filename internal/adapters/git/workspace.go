package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ports"
)

// Manager implements ports.WorkspaceManager over the git CLI
type Manager struct {
	worktreeBase string
	branchPrefix string
	defaultRef   string
}

// Compile-time interface verification
var _ ports.WorkspaceManager = (*Manager)(nil)

// NewManager creates a workspace manager. worktreeBase is the directory
// under which per-session worktrees are created; branchPrefix namespaces
// session branches away from user branches.
func NewManager(worktreeBase, branchPrefix, defaultRef string) *Manager {
	return &Manager{
		worktreeBase: worktreeBase,
		branchPrefix: branchPrefix,
		defaultRef:   defaultRef,
	}
}

// Create derives an isolated worktree for a session. The workspace derives
// from the parent session's worktree when input.ParentWorkspace is set and
// still valid, otherwise from the ref resolution policy.
func (m *Manager) Create(ctx context.Context, input ports.CreateWorkspaceInput) (domain.Workspace, error) {
	ok, repoRoot := isGitRepo(ctx, input.ProjectRoot)
	if !ok {
		return domain.Workspace{}, &domain.WorkspaceError{
			Op:   "create",
			Path: input.ProjectRoot,
			Err:  fmt.Errorf("not a git repository"),
		}
	}

	// A ref-less repository cannot host a worktree
	if !hasCommits(ctx, repoRoot) {
		if err := createInitialCommit(ctx, repoRoot); err != nil {
			return domain.Workspace{}, &domain.WorkspaceError{Op: "create", Path: repoRoot, Err: err}
		}
	}

	startPoint, baseRef, parent, err := m.resolveStartPoint(ctx, repoRoot, input)
	if err != nil {
		return domain.Workspace{}, &domain.WorkspaceError{Op: "create", Path: repoRoot, Err: err}
	}

	branch := m.branchName(input.Prompt)
	path := filepath.Join(m.worktreeBase, input.SessionID)

	if err := createWorktree(ctx, repoRoot, path, branch, startPoint); err != nil {
		return domain.Workspace{}, &domain.WorkspaceError{Op: "create", Path: path, Err: err}
	}

	logging.Logger.Info("Workspace created",
		"session_id", input.SessionID,
		"path", path,
		"branch", branch,
		"base_ref", baseRef,
	)

	return domain.Workspace{
		Path:            path,
		Branch:          branch,
		BaseRef:         baseRef,
		ParentWorkspace: parent,
	}, nil
}

// resolveStartPoint picks the commit-ish the new worktree branches from
func (m *Manager) resolveStartPoint(ctx context.Context, repoRoot string, input ports.CreateWorkspaceInput) (startPoint, baseRef, parent string, err error) {
	if input.ParentWorkspace != "" {
		valid, verr := m.Validate(ctx, repoRoot, input.ParentWorkspace)
		if verr != nil {
			return "", "", "", verr
		}
		if valid {
			commit, cerr := headCommit(ctx, input.ParentWorkspace)
			if cerr != nil {
				return "", "", "", fmt.Errorf("failed to read parent workspace commit: %w", cerr)
			}
			return commit, commit, input.ParentWorkspace, nil
		}
		logging.Logger.Warn("Parent workspace no longer valid, falling back to ref",
			"parent", input.ParentWorkspace)
	}

	ref, err := resolveBaseRef(ctx, repoRoot, input.Ref, m.defaultRef)
	if err != nil {
		return "", "", "", err
	}
	return ref, ref, "", nil
}

// branchName builds prefix + sanitized prompt slice + short random suffix
func (m *Manager) branchName(prompt string) string {
	suffix := uuid.New().String()[:8]
	return m.branchPrefix + promptSlug(prompt) + "-" + suffix
}

// Remove best-effort deletes the worktree and its branch. Failures are
// logged and swallowed so cleanup never blocks the caller.
func (m *Manager) Remove(ctx context.Context, projectRoot, path string) error {
	ok, repoRoot := isGitRepo(ctx, projectRoot)
	if !ok {
		logging.Logger.Warn("Cannot remove workspace, project is not a git repository", "project_root", projectRoot)
		return nil
	}

	wt, found, err := findWorktree(ctx, repoRoot, path)
	if err != nil {
		logging.Logger.Warn("Failed to inspect worktrees before removal", "path", path, "error", err)
	}

	if err := removeWorktree(ctx, repoRoot, path); err != nil {
		logging.Logger.Warn("Failed to remove worktree", "path", path, "error", err)
	}
	pruneWorktrees(ctx, repoRoot)

	if found {
		deleteBranch(ctx, repoRoot, strings.TrimPrefix(wt.branch, "refs/heads/"))
	}

	return nil
}

// Validate reports whether path still exists and is still a recognized
// worktree of the owning repository
func (m *Manager) Validate(ctx context.Context, projectRoot, path string) (bool, error) {
	ok, repoRoot := isGitRepo(ctx, projectRoot)
	if !ok {
		return false, fmt.Errorf("not a git repository: %s", projectRoot)
	}

	if ok, _ := isGitRepo(ctx, path); !ok {
		return false, nil
	}

	_, found, err := findWorktree(ctx, repoRoot, path)
	if err != nil {
		return false, err
	}
	return found, nil
}
