package cmd

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ports"
)

// SessionsPruneCmd deletes finished sessions whose worktrees were removed
// outside maestro. Active sessions and sessions with intact workspaces
// are never touched.
type SessionsPruneCmd struct {
	DryRun  bool   `help:"Only report what would be deleted" short:"n"`
	Project string `help:"Only prune sessions for this repository" type:"path"`
}

// Run executes the prune command
func (s *SessionsPruneCmd) Run(cli *CLI) error {
	container := cli.Container
	defer container.Close()

	ctx := context.Background()
	records, err := container.Store.ListByProject(ctx, s.Project)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	stale, err := s.findStale(ctx, container.Workspaces, records)
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		fmt.Println("Nothing to prune")
		return nil
	}

	for _, record := range stale {
		if s.DryRun {
			fmt.Printf("Would delete session %s (%s)\n", record.ID, record.Status)
			continue
		}

		if err := container.Logs.Delete(record.ID); err != nil {
			logging.Logger.Warn("Failed to delete session log", "session_id", record.ID, "error", err)
		}
		if err := container.Store.Delete(ctx, record.ID); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", record.ID, err)
		}
		fmt.Printf("Deleted session %s\n", record.ID)
	}
	return nil
}

// findStale validates workspaces concurrently; git subprocess latency
// dominates, so parallelism pays off on large stores
func (s *SessionsPruneCmd) findStale(ctx context.Context, workspaces ports.WorkspaceManager, records []ports.SessionRecord) ([]ports.SessionRecord, error) {
	var mu sync.Mutex
	var stale []ports.SessionRecord

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, record := range records {
		if !record.Status.IsTerminal() || record.WorkspacePath == "" {
			continue
		}

		record := record
		g.Go(func() error {
			valid, err := workspaces.Validate(gctx, record.ProjectRoot, record.WorkspacePath)
			if err != nil {
				logging.Logger.Warn("Failed to validate workspace", "session_id", record.ID, "error", err)
				return nil
			}
			if !valid {
				mu.Lock()
				stale = append(stale, record)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stale, nil
}
