package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/renato0307/maestro/internal/logging"
)

// runGit executes a git command in dir and returns trimmed stdout
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

// isGitRepo checks if the given path is within a git repository.
// Returns true and the repository root path if it is.
// NOTE: for worktrees this returns the worktree path, not the main repo path.
func isGitRepo(ctx context.Context, path string) (bool, string) {
	root, err := runGit(ctx, path, "rev-parse", "--show-toplevel")
	if err != nil {
		logging.Logger.Debug("Not a git repository", "path", path)
		return false, ""
	}
	return true, root
}

// hasCommits reports whether the repository has at least one commit
func hasCommits(ctx context.Context, repoPath string) bool {
	_, err := runGit(ctx, repoPath, "rev-parse", "--verify", "HEAD")
	return err == nil
}

// createInitialCommit creates an empty initial commit so refs exist.
// A workspace cannot be derived from a ref-less repository.
func createInitialCommit(ctx context.Context, repoPath string) error {
	logging.Logger.Info("Creating initial empty commit", "repo_path", repoPath)

	_, err := runGit(ctx, repoPath,
		"-c", "user.name=maestro",
		"-c", "user.email=maestro@localhost",
		"commit", "--allow-empty", "-m", "Initial commit")
	if err != nil {
		return fmt.Errorf("failed to create initial commit: %w", err)
	}
	return nil
}

// currentBranch returns the checked-out branch name, or "" when detached
// or the repository has no commits
func currentBranch(ctx context.Context, repoPath string) string {
	name, err := runGit(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || name == "HEAD" {
		return ""
	}
	return name
}

// refExists reports whether ref resolves to a commit in the repository
func refExists(ctx context.Context, repoPath, ref string) bool {
	if ref == "" {
		return false
	}
	_, err := runGit(ctx, repoPath, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	return err == nil
}

// renameBranch renames a local branch
func renameBranch(ctx context.Context, repoPath, from, to string) error {
	_, err := runGit(ctx, repoPath, "branch", "-m", from, to)
	return err
}

// remoteDefaultBranch returns origin's default branch (e.g. "origin/main"),
// or "" when it cannot be determined
func remoteDefaultBranch(ctx context.Context, repoPath string) string {
	ref, err := runGit(ctx, repoPath, "symbolic-ref", "refs/remotes/origin/HEAD")
	if err == nil {
		// refs/remotes/origin/main -> origin/main
		return strings.TrimPrefix(ref, "refs/remotes/")
	}

	for _, candidate := range []string{"origin/main", "origin/master"} {
		if refExists(ctx, repoPath, candidate) {
			return candidate
		}
	}
	return ""
}

// headCommit returns the commit hash the given worktree currently points at
func headCommit(ctx context.Context, worktreePath string) (string, error) {
	return runGit(ctx, worktreePath, "rev-parse", "HEAD")
}
