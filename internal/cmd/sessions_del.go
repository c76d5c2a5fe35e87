package cmd

import (
	"context"
	"fmt"

	"github.com/renato0307/maestro/internal/logging"
)

// SessionsDelCmd deletes a session and its durable artifacts
type SessionsDelCmd struct {
	Force         bool   `help:"Force deletion without confirmation" short:"f"`
	SessionID     string `arg:"" help:"The session to delete"`
	KeepWorkspace bool   `help:"Keep the session's worktree and branch" short:"w"`
}

// Run executes the del command
func (s *SessionsDelCmd) Run(cli *CLI) error {
	container := cli.Container
	defer container.Close()

	logging.Logger.Info("Executing sessions del command",
		"session_id", s.SessionID,
		"keep_workspace", s.KeepWorkspace,
		"force", s.Force,
	)

	ctx := context.Background()
	record, err := recordByID(ctx, container.Store, s.SessionID)
	if err != nil {
		return err
	}

	if !s.Force && !s.confirmDeletion(record.WorkspacePath) {
		return nil
	}

	if !s.KeepWorkspace && record.WorkspacePath != "" {
		if err := container.Workspaces.Remove(ctx, record.ProjectRoot, record.WorkspacePath); err != nil {
			logging.Logger.Warn("Failed to remove workspace", "session_id", s.SessionID, "error", err)
		}
	}

	if err := container.Logs.Delete(s.SessionID); err != nil {
		logging.Logger.Warn("Failed to delete session log", "session_id", s.SessionID, "error", err)
	}

	if err := container.Store.Delete(ctx, s.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	fmt.Printf("Session %s deleted\n", s.SessionID)
	return nil
}

func (s *SessionsDelCmd) confirmDeletion(workspacePath string) bool {
	fmt.Printf("WARNING: This will delete session '%s'\n", s.SessionID)
	if !s.KeepWorkspace && workspacePath != "" {
		fmt.Printf("  - Remove worktree at '%s'\n", workspacePath)
	}
	fmt.Println("  - Delete its conversation log")
	fmt.Print("\nContinue? (y/N): ")
	var response string
	fmt.Scanln(&response)
	if response != "y" && response != "Y" {
		fmt.Println("Cancelled")
		return false
	}
	return true
}
