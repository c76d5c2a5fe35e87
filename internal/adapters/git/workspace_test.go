package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/ports"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(filepath.Join(t.TempDir(), "worktrees"), "maestro/", "main")
}

func TestManagerCreate(t *testing.T) {
	repoPath := setupTestRepo(t)
	manager := newTestManager(t)

	workspace, err := manager.Create(context.Background(), ports.CreateWorkspaceInput{
		ProjectRoot: repoPath,
		SessionID:   "session-abc",
		Prompt:      "Fix the login bug",
	})

	require.NoError(t, err)
	assert.DirExists(t, workspace.Path)
	assert.Equal(t, "session-abc", filepath.Base(workspace.Path))
	assert.True(t, strings.HasPrefix(workspace.Branch, "maestro/fix-the-login-bug-"), workspace.Branch)
	assert.Empty(t, workspace.ParentWorkspace)
}

func TestManagerCreate_UniqueBranchesForSamePrompt(t *testing.T) {
	repoPath := setupTestRepo(t)
	manager := newTestManager(t)

	first, err := manager.Create(context.Background(), ports.CreateWorkspaceInput{
		ProjectRoot: repoPath,
		SessionID:   "session-1",
		Prompt:      "Add tests",
	})
	require.NoError(t, err)

	second, err := manager.Create(context.Background(), ports.CreateWorkspaceInput{
		ProjectRoot: repoPath,
		SessionID:   "session-2",
		Prompt:      "Add tests",
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.Branch, second.Branch)
	assert.NotEqual(t, first.Path, second.Path)
}

func TestManagerCreate_NotARepo(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.Create(context.Background(), ports.CreateWorkspaceInput{
		ProjectRoot: t.TempDir(),
		SessionID:   "session-abc",
		Prompt:      "anything",
	})

	var wsErr *domain.WorkspaceError
	require.ErrorAs(t, err, &wsErr)
	assert.Equal(t, "create", wsErr.Op)
}

func TestManagerCreate_EmptyRepoGetsInitialCommit(t *testing.T) {
	repoPath := setupEmptyRepo(t)
	manager := newTestManager(t)

	workspace, err := manager.Create(context.Background(), ports.CreateWorkspaceInput{
		ProjectRoot: repoPath,
		SessionID:   "session-abc",
		Prompt:      "Bootstrap the project",
	})

	require.NoError(t, err)
	assert.DirExists(t, workspace.Path)
	assert.True(t, hasCommits(context.Background(), repoPath))
}

func TestManagerCreate_RequestedRef(t *testing.T) {
	repoPath := setupTestRepo(t)
	gitCmd(t, repoPath, "branch", "develop")
	manager := newTestManager(t)

	workspace, err := manager.Create(context.Background(), ports.CreateWorkspaceInput{
		ProjectRoot: repoPath,
		Ref:         "develop",
		SessionID:   "session-abc",
		Prompt:      "Work on develop",
	})

	require.NoError(t, err)
	assert.Equal(t, "develop", workspace.BaseRef)
}

func TestManagerCreate_DerivesFromParentWorkspace(t *testing.T) {
	repoPath := setupTestRepo(t)
	manager := newTestManager(t)
	ctx := context.Background()

	parent, err := manager.Create(ctx, ports.CreateWorkspaceInput{
		ProjectRoot: repoPath,
		SessionID:   "parent-session",
		Prompt:      "First pass",
	})
	require.NoError(t, err)

	// Commit in the parent worktree so its HEAD diverges from main
	require.NoError(t, os.WriteFile(filepath.Join(parent.Path, "work.txt"), []byte("wip"), 0644))
	gitCmd(t, parent.Path, "add", "work.txt")
	gitCmd(t, parent.Path, "commit", "-m", "Parent progress")
	parentHead, err := headCommit(ctx, parent.Path)
	require.NoError(t, err)

	child, err := manager.Create(ctx, ports.CreateWorkspaceInput{
		ProjectRoot:     repoPath,
		SessionID:       "child-session",
		Prompt:          "Second pass",
		ParentWorkspace: parent.Path,
	})
	require.NoError(t, err)

	childHead, err := headCommit(ctx, child.Path)
	require.NoError(t, err)
	assert.Equal(t, parentHead, childHead, "child should branch off the parent's current commit")
	assert.Equal(t, parent.Path, child.ParentWorkspace)
}

func TestManagerCreate_InvalidParentFallsBackToRef(t *testing.T) {
	repoPath := setupTestRepo(t)
	manager := newTestManager(t)

	workspace, err := manager.Create(context.Background(), ports.CreateWorkspaceInput{
		ProjectRoot:     repoPath,
		SessionID:       "session-abc",
		Prompt:          "Orphaned chain",
		ParentWorkspace: filepath.Join(t.TempDir(), "gone"),
	})

	require.NoError(t, err)
	assert.Empty(t, workspace.ParentWorkspace)
	assert.DirExists(t, workspace.Path)
}

func TestManagerValidate(t *testing.T) {
	repoPath := setupTestRepo(t)
	manager := newTestManager(t)
	ctx := context.Background()

	workspace, err := manager.Create(ctx, ports.CreateWorkspaceInput{
		ProjectRoot: repoPath,
		SessionID:   "session-abc",
		Prompt:      "Validate me",
	})
	require.NoError(t, err)

	valid, err := manager.Validate(ctx, repoPath, workspace.Path)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestManagerValidate_ExternallyDeletedWorktree(t *testing.T) {
	repoPath := setupTestRepo(t)
	manager := newTestManager(t)
	ctx := context.Background()

	workspace, err := manager.Create(ctx, ports.CreateWorkspaceInput{
		ProjectRoot: repoPath,
		SessionID:   "session-abc",
		Prompt:      "Delete me externally",
	})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(workspace.Path))

	valid, err := manager.Validate(ctx, repoPath, workspace.Path)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestManagerRemove(t *testing.T) {
	repoPath := setupTestRepo(t)
	manager := newTestManager(t)
	ctx := context.Background()

	workspace, err := manager.Create(ctx, ports.CreateWorkspaceInput{
		ProjectRoot: repoPath,
		SessionID:   "session-abc",
		Prompt:      "Remove me",
	})
	require.NoError(t, err)

	require.NoError(t, manager.Remove(ctx, repoPath, workspace.Path))

	assert.NoDirExists(t, workspace.Path)
	assert.False(t, refExists(ctx, repoPath, workspace.Branch), "session branch should be deleted with the worktree")
}

func TestManagerRemove_NeverFails(t *testing.T) {
	manager := newTestManager(t)

	// Neither a repo nor an existing worktree; cleanup still reports success
	err := manager.Remove(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "missing"))

	assert.NoError(t, err)
}
