package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWorktree(t *testing.T) {
	repoPath := setupTestRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "worktrees", "session-1")

	err := createWorktree(context.Background(), repoPath, worktreePath, "maestro/test-branch", "HEAD")

	require.NoError(t, err)
	assert.DirExists(t, worktreePath)
	assert.Equal(t, "maestro/test-branch", currentBranch(context.Background(), worktreePath))
}

func TestCreateWorktree_InvalidBranchName(t *testing.T) {
	repoPath := setupTestRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "session-1")

	err := createWorktree(context.Background(), repoPath, worktreePath, "bad branch name", "HEAD")

	assert.Error(t, err)
	assert.NoDirExists(t, worktreePath)
}

func TestCreateWorktree_FromStartPoint(t *testing.T) {
	repoPath := setupTestRepo(t)
	base, err := headCommit(context.Background(), repoPath)
	require.NoError(t, err)

	// Advance the main checkout past the start point
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, "later.txt"), []byte("later"), 0644))
	gitCmd(t, repoPath, "add", "later.txt")
	gitCmd(t, repoPath, "commit", "-m", "Later commit")

	worktreePath := filepath.Join(t.TempDir(), "session-1")
	require.NoError(t, createWorktree(context.Background(), repoPath, worktreePath, "maestro/from-base", base))

	got, err := headCommit(context.Background(), worktreePath)
	require.NoError(t, err)
	assert.Equal(t, base, got, "worktree should start at the given commit, not HEAD")
}

func TestRemoveWorktree(t *testing.T) {
	repoPath := setupTestRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "session-1")
	require.NoError(t, createWorktree(context.Background(), repoPath, worktreePath, "maestro/doomed", "HEAD"))

	// Uncommitted changes must not block removal
	require.NoError(t, os.WriteFile(filepath.Join(worktreePath, "dirty.txt"), []byte("dirty"), 0644))

	err := removeWorktree(context.Background(), repoPath, worktreePath)

	require.NoError(t, err)
	assert.NoDirExists(t, worktreePath)
}

func TestRemoveWorktree_MissingPath(t *testing.T) {
	repoPath := setupTestRepo(t)

	err := removeWorktree(context.Background(), repoPath, filepath.Join(t.TempDir(), "never-existed"))

	assert.NoError(t, err)
}

func TestFindWorktree(t *testing.T) {
	repoPath := setupTestRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "session-1")
	require.NoError(t, createWorktree(context.Background(), repoPath, worktreePath, "maestro/findable", "HEAD"))

	wt, found, err := findWorktree(context.Background(), repoPath, worktreePath)

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "refs/heads/maestro/findable", wt.branch)
}

func TestFindWorktree_UnknownPath(t *testing.T) {
	repoPath := setupTestRepo(t)

	_, found, err := findWorktree(context.Background(), repoPath, filepath.Join(t.TempDir(), "elsewhere"))

	require.NoError(t, err)
	assert.False(t, found)
}

func TestParseWorktreeList(t *testing.T) {
	output := `worktree /home/user/repo
HEAD abc123
branch refs/heads/main

worktree /home/user/worktrees/session-1
HEAD def456
branch refs/heads/maestro/fix-bug-12ab34cd

worktree /home/user/worktrees/detached
HEAD 789abc
detached`

	worktrees := parseWorktreeList(output)

	require.Len(t, worktrees, 3)
	assert.Equal(t, "/home/user/repo", worktrees[0].path)
	assert.Equal(t, "refs/heads/main", worktrees[0].branch)
	assert.Equal(t, "/home/user/worktrees/session-1", worktrees[1].path)
	assert.Equal(t, "refs/heads/maestro/fix-bug-12ab34cd", worktrees[1].branch)
	assert.Equal(t, "/home/user/worktrees/detached", worktrees[2].path)
	assert.Empty(t, worktrees[2].branch)
}

func TestParseWorktreeList_Empty(t *testing.T) {
	assert.Empty(t, parseWorktreeList(""))
}
