package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ui"
)

// WatchCmd shows a live view of all sessions
type WatchCmd struct {
	Project string `help:"Only watch sessions for this repository" type:"path"`
}

// Run executes the watch command
func (w *WatchCmd) Run(cli *CLI) error {
	container := cli.Container
	defer container.Close()

	logging.Logger.Info("Executing watch command", "project", w.Project)

	model := ui.NewWatchModel(container.Store, w.Project)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run watch view: %w", err)
	}
	return nil
}
