package cmd

import (
	"context"
	"fmt"

	"github.com/renato0307/maestro/internal/logging"
)

// ResumeCmd re-runs an existing session with a new prompt
type ResumeCmd struct {
	SessionID string `arg:"" help:"The session to resume"`
	Prompt    string `arg:"" help:"The instruction for the resumed run"`
}

// Run executes the resume command
func (r *ResumeCmd) Run(cli *CLI) error {
	container := cli.Container
	defer container.Close()

	logging.Logger.Info("Executing resume command", "session_id", r.SessionID)

	if err := container.Orchestrator.Resume(context.Background(), r.SessionID, r.Prompt); err != nil {
		return fmt.Errorf("failed to resume session: %w", err)
	}

	fmt.Printf("Session %s resumed\n", r.SessionID)
	return followSession(container, r.SessionID)
}
