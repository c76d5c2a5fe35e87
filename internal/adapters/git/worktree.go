package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/renato0307/maestro/internal/logging"
)

// createWorktree creates a new worktree at worktreePath on a fresh branch
// cut from startPoint
func createWorktree(ctx context.Context, repoPath, worktreePath, branchName, startPoint string) error {
	logging.Logger.Info("Creating worktree",
		"repo_path", repoPath,
		"worktree_path", worktreePath,
		"branch", branchName,
		"start_point", startPoint,
	)

	if err := validateBranchName(branchName); err != nil {
		return fmt.Errorf("invalid branch name: %w", err)
	}

	worktreeBase := filepath.Dir(worktreePath)
	if err := os.MkdirAll(worktreeBase, 0755); err != nil {
		return fmt.Errorf("failed to create worktree base directory: %w", err)
	}

	args := []string{"worktree", "add", "-b", branchName, worktreePath}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	if _, err := runGit(ctx, repoPath, args...); err != nil {
		return fmt.Errorf("failed to create worktree: %w", err)
	}

	return nil
}

// removeWorktree removes the worktree at worktreePath. Already-removed
// paths are not an error.
func removeWorktree(ctx context.Context, repoPath, worktreePath string) error {
	logging.Logger.Info("Removing worktree", "repo_path", repoPath, "worktree_path", worktreePath)

	if _, err := os.Stat(worktreePath); os.IsNotExist(err) {
		logging.Logger.Warn("Worktree path does not exist", "path", worktreePath)
		return nil
	}

	// --force allows removal with uncommitted changes; session worktrees
	// are disposable working copies
	if _, err := runGit(ctx, repoPath, "worktree", "remove", "--force", worktreePath); err != nil {
		return fmt.Errorf("failed to remove worktree: %w", err)
	}

	return nil
}

// pruneWorktrees drops stale worktree bookkeeping after external deletions
func pruneWorktrees(ctx context.Context, repoPath string) {
	if _, err := runGit(ctx, repoPath, "worktree", "prune"); err != nil {
		logging.Logger.Warn("Failed to prune worktrees", "repo_path", repoPath, "error", err)
	}
}

// deleteBranch force-deletes a local branch, best effort
func deleteBranch(ctx context.Context, repoPath, branchName string) {
	if branchName == "" {
		return
	}
	if _, err := runGit(ctx, repoPath, "branch", "-D", branchName); err != nil {
		logging.Logger.Warn("Failed to delete branch", "branch", branchName, "error", err)
	}
}

// worktreeInfo holds parsed information about a git worktree
type worktreeInfo struct {
	branch string
	path   string
}

// parseWorktreeList parses git worktree list --porcelain output
func parseWorktreeList(output string) []worktreeInfo {
	var worktrees []worktreeInfo
	var current worktreeInfo

	lines := strings.Split(output, "\n")
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "worktree "):
			// Start of a new worktree entry
			if current.path != "" {
				worktrees = append(worktrees, current)
			}
			current = worktreeInfo{path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch "):
			current.branch = strings.TrimPrefix(line, "branch ")
		}
	}

	// Don't forget the last entry
	if current.path != "" {
		worktrees = append(worktrees, current)
	}

	return worktrees
}

// fetchWorktreeList executes git worktree list and returns parsed results
func fetchWorktreeList(ctx context.Context, repoPath string) ([]worktreeInfo, error) {
	output, err := runGit(ctx, repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}
	return parseWorktreeList(output), nil
}

// findWorktree returns the worktree entry for path, if the repository
// still recognizes it
func findWorktree(ctx context.Context, repoPath, path string) (worktreeInfo, bool, error) {
	worktrees, err := fetchWorktreeList(ctx, repoPath)
	if err != nil {
		return worktreeInfo{}, false, err
	}

	cleaned := filepath.Clean(path)
	for _, wt := range worktrees {
		if filepath.Clean(wt.path) == cleaned {
			return wt, true, nil
		}
	}
	return worktreeInfo{}, false, nil
}
