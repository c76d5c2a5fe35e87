package git

import (
	"context"
	"fmt"

	"github.com/renato0307/maestro/internal/logging"
)

// refStep is one entry of the ordered base ref resolution policy: a named
// predicate+action pair. The first step that returns ok wins.
type refStep struct {
	name    string
	resolve func(ctx context.Context, repoPath, requested, canonical string) (string, bool)
}

// refResolutionPolicy is evaluated top to bottom:
//  1. the requested ref, when it resolves to a commit
//  2. the currently checked-out branch
//  3. rename the current branch to the canonical default, when the caller
//     asked for the canonical default (repos born under another name)
//  4. the remote default branch
//  5. the canonical default as a hard-coded last resort
var refResolutionPolicy = []refStep{
	{
		name: "requested-ref",
		resolve: func(ctx context.Context, repoPath, requested, _ string) (string, bool) {
			if requested != "" && refExists(ctx, repoPath, requested) {
				return requested, true
			}
			return "", false
		},
	},
	{
		name: "current-branch",
		resolve: func(ctx context.Context, repoPath, _, _ string) (string, bool) {
			branch := currentBranch(ctx, repoPath)
			if branch != "" && refExists(ctx, repoPath, branch) {
				return branch, true
			}
			return "", false
		},
	},
	{
		name: "rename-to-default",
		resolve: func(ctx context.Context, repoPath, requested, canonical string) (string, bool) {
			if requested != canonical {
				return "", false
			}
			branch := currentBranch(ctx, repoPath)
			if branch == "" || branch == canonical {
				return "", false
			}
			if err := renameBranch(ctx, repoPath, branch, canonical); err != nil {
				logging.Logger.Warn("Failed to rename branch to default", "from", branch, "to", canonical, "error", err)
				return "", false
			}
			return canonical, true
		},
	},
	{
		name: "remote-default",
		resolve: func(ctx context.Context, repoPath, _, _ string) (string, bool) {
			if ref := remoteDefaultBranch(ctx, repoPath); ref != "" {
				return ref, true
			}
			return "", false
		},
	},
	{
		name: "hard-fallback",
		resolve: func(_ context.Context, _, _, canonical string) (string, bool) {
			return canonical, true
		},
	},
}

// resolveBaseRef walks the policy and returns the ref a new workspace
// should derive from
func resolveBaseRef(ctx context.Context, repoPath, requested, canonical string) (string, error) {
	for _, step := range refResolutionPolicy {
		if ref, ok := step.resolve(ctx, repoPath, requested, canonical); ok {
			logging.Logger.Debug("Base ref resolved", "step", step.name, "ref", ref, "requested", requested)
			return ref, nil
		}
	}
	return "", fmt.Errorf("no usable base ref (requested %q)", requested)
}
