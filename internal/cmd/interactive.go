package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ports"
	"github.com/renato0307/maestro/internal/services"
)

const (
	permissionAccept    = "accept"
	permissionAcceptAll = "accept-all"
	permissionRedirect  = "redirect"
	permissionAbort     = "abort"
)

// followSession attaches the terminal to a running session: live agent
// output is printed, permission requests prompt interactively, and the
// call returns once the session reaches a terminal status.
func followSession(container *Container, sessionID string) error {
	orchestrator := container.Orchestrator

	notifications := make(chan ports.Notification, 64)
	unsubscribe := orchestrator.Subscribe(ports.ObserverFunc(func(n ports.Notification) {
		if n.SessionID != sessionID {
			return
		}
		select {
		case notifications <- n:
		default:
			logging.Logger.Warn("Dropped notification, viewer too slow", "session_id", sessionID, "type", n.Type)
		}
	}))
	defer unsubscribe()

	orchestrator.Focus(sessionID)
	defer orchestrator.Focus("")

	container.SetLiveForward(func(id string, event ports.AgentEvent) {
		printAgentEvent(event)
	})
	defer container.SetLiveForward(nil)

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	// The session may have finished between Start returning and the
	// subscription above; the registry still holds it during the grace
	// period
	if session, ok := container.Registry.Get(sessionID); ok && session.Status.IsTerminal() {
		return reportTerminal(session.Status, session.LastError)
	}

	for {
		select {
		case <-interrupts:
			fmt.Println("\nAborting session...")
			orchestrator.Abort(sessionID)

		case n := <-notifications:
			switch n.Type {
			case ports.NotificationPermissionPending:
				if err := promptPermission(orchestrator, n); err != nil {
					return err
				}

			case ports.NotificationStateChanged:
				if n.Status.IsTerminal() {
					return reportTerminal(n.Status, n.Detail)
				}
			}
		}
	}
}

// promptPermission asks the human to accept, redirect, or abort a
// pending tool invocation
func promptPermission(orchestrator *services.Orchestrator, n ports.Notification) error {
	fmt.Printf("\nThe agent wants to run tool %q\n", n.ToolName)
	if detail := formatToolInput(n.ToolInput); detail != "" {
		fmt.Println(detail)
	}

	choice := permissionAccept
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Allow this tool invocation?").
				Options(
					huh.NewOption("Accept", permissionAccept),
					huh.NewOption("Accept and auto-approve the rest", permissionAcceptAll),
					huh.NewOption("Redirect with instructions", permissionRedirect),
					huh.NewOption("Abort session", permissionAbort),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		// Ctrl-C inside the form aborts the session rather than leaving
		// the agent blocked forever
		orchestrator.Abort(n.SessionID)
		return nil
	}

	switch choice {
	case permissionAccept:
		orchestrator.Respond(n.RequestID, services.Response{Accept: true})

	case permissionAcceptAll:
		orchestrator.ToggleAutoAccept(n.SessionID, true)
		orchestrator.Respond(n.RequestID, services.Response{Accept: true})

	case permissionRedirect:
		var instruction string
		input := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("What should the agent do instead?").
					Value(&instruction),
			),
		)
		if err := input.Run(); err != nil {
			orchestrator.Abort(n.SessionID)
			return nil
		}
		orchestrator.Respond(n.RequestID, services.Response{Accept: false, Instruction: instruction})

	case permissionAbort:
		orchestrator.Abort(n.SessionID)
	}
	return nil
}

// reportTerminal prints the final status and converts error outcomes to
// a non-zero exit
func reportTerminal(status domain.Status, detail string) error {
	switch status {
	case domain.StatusCompleted:
		fmt.Println("Session completed")
		return nil
	case domain.StatusAborted:
		fmt.Println("Session aborted")
		return nil
	default:
		if detail != "" {
			return fmt.Errorf("session failed: %s", detail)
		}
		return fmt.Errorf("session failed")
	}
}

// printAgentEvent renders a live agent event to the terminal. Only
// assistant text and the final result are shown; raw protocol envelopes
// stay in the durable log.
func printAgentEvent(event ports.AgentEvent) {
	switch event.Type {
	case ports.AgentEventAssistant:
		if text := extractAssistantText(event.Payload); text != "" {
			fmt.Println(text)
		}

	case ports.AgentEventResult:
		if event.Stats != nil {
			fmt.Printf("\n[%d turns, $%.4f, %dms]\n",
				event.Stats.NumTurns, event.Stats.TotalCostUSD, event.Stats.DurationMS)
		}
	}
}

// extractAssistantText pulls the text blocks out of an assistant message
// envelope. Unknown shapes render as nothing.
func extractAssistantText(payload json.RawMessage) string {
	var envelope struct {
		Message struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}

	var text string
	for _, block := range envelope.Message.Content {
		if block.Type == "text" && block.Text != "" {
			if text != "" {
				text += "\n"
			}
			text += block.Text
		}
	}
	return text
}

// formatToolInput pretty-prints a tool's input for the permission prompt
func formatToolInput(input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	var pretty map[string]any
	if err := json.Unmarshal(input, &pretty); err != nil {
		return string(input)
	}
	out, err := json.MarshalIndent(pretty, "  ", "  ")
	if err != nil {
		return string(input)
	}
	return "  " + string(out)
}
