package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/ports"
)

// SessionsViewCmd views a specific session and its conversation history
type SessionsViewCmd struct {
	Format    string `help:"Output format: table or json" enum:"table,json" default:"table"`
	SessionID string `arg:"" help:"The session to view"`
	History   bool   `help:"Replay the full conversation log" short:"H"`
}

// Run executes the view command
func (s *SessionsViewCmd) Run(cli *CLI) error {
	container := cli.Container
	defer container.Close()

	record, err := recordByID(context.Background(), container.Store, s.SessionID)
	if err != nil {
		return err
	}

	if s.Format == "json" {
		return s.printJSON(record)
	}
	if err := s.printTable(record); err != nil {
		return err
	}
	if s.History {
		return s.printHistory(container, record.ID)
	}
	return nil
}

func (s *SessionsViewCmd) printJSON(record *ports.SessionRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func (s *SessionsViewCmd) printTable(record *ports.SessionRecord) error {
	fmt.Printf("Session: %s\n", record.ID)
	fmt.Printf("Status: %s\n", record.Status)
	fmt.Printf("Prompt: %s\n", record.Prompt)
	fmt.Printf("Project: %s\n", record.ProjectRoot)
	fmt.Printf("Workspace: %s\n", record.WorkspacePath)
	fmt.Printf("Branch: %s\n", record.BranchName)
	fmt.Printf("Log: %s\n", record.LogPath)
	fmt.Printf("Created: %s\n", record.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated: %s\n", record.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	if record.ResumeToken != "" {
		fmt.Printf("Resume Token: %s\n", record.ResumeToken)
	}
	if record.LastError != "" {
		fmt.Printf("Last Error: %s\n", record.LastError)
	}
	if record.Usage != nil {
		fmt.Printf("Usage: %d in / %d out tokens, %d turns, $%.4f, %dms\n",
			record.Usage.InputTokens, record.Usage.OutputTokens,
			record.Usage.NumTurns, record.Usage.TotalCostUSD, record.Usage.DurationMS)
	}
	return nil
}

func (s *SessionsViewCmd) printHistory(container *Container, sessionID string) error {
	entries, err := container.Logs.Read(sessionID)
	if err != nil {
		return fmt.Errorf("failed to read session log: %w", err)
	}

	fmt.Println("\nHistory:")
	for _, entry := range entries {
		fmt.Printf("[%s] %s %s\n",
			entry.Timestamp.Local().Format("15:04:05"),
			entry.Origin,
			renderLogPayload(entry),
		)
	}
	return nil
}

// renderLogPayload produces a one-line summary of a log entry. Agent
// entries show assistant text when present, otherwise the event type.
func renderLogPayload(entry domain.LogEntry) string {
	if entry.Origin == domain.OriginAgent {
		if text := extractAssistantText(entry.Payload); text != "" {
			return text
		}
	}

	var envelope struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		Message     string `json:"message"`
		Instruction string `json:"instruction"`
		ToolName    string `json:"tool_name"`
	}
	if err := json.Unmarshal(entry.Payload, &envelope); err != nil {
		return string(entry.Payload)
	}

	switch envelope.Type {
	case "prompt":
		return envelope.Text
	case "error":
		return envelope.Message
	case "permission_redirect":
		return fmt.Sprintf("redirected %s: %s", envelope.ToolName, envelope.Instruction)
	default:
		if envelope.Type != "" {
			return fmt.Sprintf("<%s>", envelope.Type)
		}
		return string(entry.Payload)
	}
}
