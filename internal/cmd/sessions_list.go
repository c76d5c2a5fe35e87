package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/ports"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	idStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	waitingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// SessionsListCmd lists sessions from the durable store
type SessionsListCmd struct {
	Format  string `help:"Output format: table or json" enum:"table,json" default:"table"`
	Project string `help:"Only list sessions for this repository" type:"path"`
}

// Run executes the list command
func (s *SessionsListCmd) Run(cli *CLI) error {
	container := cli.Container
	defer container.Close()

	records, err := container.Store.ListByProject(context.Background(), s.Project)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if s.Format == "json" {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(records) == 0 {
		fmt.Println("No sessions")
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-36s  %-20s  %-19s  %s", "ID", "STATUS", "UPDATED", "PROMPT")))
	for _, record := range records {
		fmt.Printf("%s  %-20s  %s  %s\n",
			idStyle.Render(record.ID),
			renderStatus(record.Status),
			record.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
			truncatePrompt(record.Prompt, 60),
		)
	}
	return nil
}

// renderStatus colors a status for terminal output, padded to align
func renderStatus(status domain.Status) string {
	padded := fmt.Sprintf("%-20s", status)
	switch status {
	case domain.StatusCompleted:
		return completedStyle.Render(padded)
	case domain.StatusError, domain.StatusAborted:
		return errorStyle.Render(padded)
	case domain.StatusRunning:
		return runningStyle.Render(padded)
	case domain.StatusWaitingPermission:
		return waitingStyle.Render(padded)
	default:
		return padded
	}
}

func truncatePrompt(prompt string, max int) string {
	prompt = strings.ReplaceAll(prompt, "\n", " ")
	if len(prompt) <= max {
		return prompt
	}
	return prompt[:max-3] + "..."
}

// recordByID is shared by view and del to load a single record
func recordByID(ctx context.Context, store ports.SessionStore, id string) (*ports.SessionRecord, error) {
	record, err := store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return record, nil
}
