package cmd

import (
	"context"
	"fmt"

	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/services"
)

// RunCmd runs a new agent session in the foreground
type RunCmd struct {
	Prompt        string `arg:"" help:"The instruction to give the agent"`
	Project       string `help:"Path to the repository" type:"path" default:"."`
	Ref           string `help:"Base ref for the session workspace"`
	AutoAccept    bool   `help:"Approve every tool invocation automatically" short:"y"`
	ParentSession string `help:"Derive the workspace from this session's worktree"`
}

// Run executes the run command
func (r *RunCmd) Run(cli *CLI) error {
	container := cli.Container
	defer container.Close()

	logging.Logger.Info("Executing run command",
		"project", r.Project,
		"ref", r.Ref,
		"auto_accept", r.AutoAccept,
	)

	sessionID, err := container.Orchestrator.Start(context.Background(), services.StartInput{
		Prompt:        r.Prompt,
		ProjectRoot:   r.Project,
		Ref:           r.Ref,
		ParentSession: r.ParentSession,
		AutoAccept:    r.AutoAccept,
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	fmt.Printf("Session %s started\n", sessionID)
	return followSession(container, sessionID)
}
