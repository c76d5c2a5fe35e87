package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ports"
)

// ProcessRunner runs the agent CLI as a child process and adapts its
// stream-json protocol to the AgentRunner port. Tool approvals arrive as
// control requests on stdout and are answered on stdin.
type ProcessRunner struct {
	command string
}

// Compile-time interface verification
var _ ports.AgentRunner = (*ProcessRunner)(nil)

// NewProcessRunner creates a runner for the given agent executable
func NewProcessRunner(command string) *ProcessRunner {
	return &ProcessRunner{command: command}
}

// streamMessage mirrors the agent CLI's stream-json event envelope
type streamMessage struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Request   *controlRequest `json:"request,omitempty"`
	Result    string          `json:"result,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	TotalCostUSD float64      `json:"total_cost_usd,omitempty"`
	DurationMS   int64        `json:"duration_ms,omitempty"`
	NumTurns     int          `json:"num_turns,omitempty"`
	Usage        *streamUsage `json:"usage,omitempty"`
}

type streamUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// controlRequest is the payload of a control_request envelope
type controlRequest struct {
	Subtype   string          `json:"subtype"`
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"input"`
}

// controlResponse answers a control_request on the process stdin
type controlResponse struct {
	Type      string               `json:"type"`
	RequestID string               `json:"request_id"`
	Response  controlResponseInner `json:"response"`
}

type controlResponseInner struct {
	Subtype      string          `json:"subtype"`
	Behavior     string          `json:"behavior,omitempty"`
	Message      string          `json:"message,omitempty"`
	UpdatedInput json.RawMessage `json:"updatedInput,omitempty"`
}

// Run implements ports.AgentRunner. The returned channel closes when the
// process's event stream ends; abnormal ends carry a final Err event.
func (r *ProcessRunner) Run(ctx context.Context, input ports.RunInput) (<-chan ports.AgentEvent, error) {
	args := []string{
		"-p", input.Prompt,
		"--output-format", "stream-json",
		"--verbose",
	}
	if input.ResumeToken != "" {
		args = append(args, "--resume", input.ResumeToken)
	}

	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Dir = input.WorkingDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open agent stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open agent stdout: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start agent process: %w", err)
	}

	logging.Logger.Info("Agent process started",
		"command", r.command,
		"working_dir", input.WorkingDir,
		"resuming", input.ResumeToken != "",
	)

	events := make(chan ports.AgentEvent)
	go r.pump(ctx, cmd, stdin, stdout, input.Approve, events)
	return events, nil
}

// pump reads the process's stdout line by line, answering control
// requests in-line and forwarding everything else as events
func (r *ProcessRunner) pump(ctx context.Context, cmd *exec.Cmd, stdin io.WriteCloser, stdout io.Reader, approve ports.ApprovalFunc, events chan<- ports.AgentEvent) {
	defer close(events)
	defer stdin.Close()

	var stdinMu sync.Mutex
	sawResult := false

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg streamMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			logging.Logger.Debug("Skipping unparseable agent output line", "error", err)
			continue
		}

		switch msg.Type {
		case "control_request":
			if msg.Request == nil || msg.Request.Subtype != "can_use_tool" {
				continue
			}
			decision := approve(ctx, msg.Request.ToolName, msg.Request.ToolInput)
			if err := writeControlResponse(&stdinMu, stdin, msg.RequestID, decision); err != nil {
				logging.Logger.Warn("Failed to answer agent control request", "error", err)
			}

		case "system":
			events <- ports.AgentEvent{
				Type:        ports.AgentEventSystem,
				Payload:     append(json.RawMessage(nil), line...),
				ResumeToken: msg.SessionID,
			}

		case "assistant":
			events <- ports.AgentEvent{
				Type:    ports.AgentEventAssistant,
				Payload: append(json.RawMessage(nil), line...),
			}

		case "user":
			events <- ports.AgentEvent{
				Type:    ports.AgentEventUser,
				Payload: append(json.RawMessage(nil), line...),
			}

		case "result":
			sawResult = true
			event := ports.AgentEvent{
				Type:        ports.AgentEventResult,
				Payload:     append(json.RawMessage(nil), line...),
				ResumeToken: msg.SessionID,
				IsError:     msg.IsError,
				Stats: &domain.UsageStats{
					TotalCostUSD: msg.TotalCostUSD,
					DurationMS:   msg.DurationMS,
					NumTurns:     msg.NumTurns,
				},
			}
			if msg.Usage != nil {
				event.Stats.InputTokens = msg.Usage.InputTokens
				event.Stats.OutputTokens = msg.Usage.OutputTokens
			}
			events <- event

		default:
			logging.Logger.Debug("Ignoring unknown agent event type", "type", msg.Type)
		}
	}

	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		// Cancellation is reported by the caller's context, not as a
		// stream failure
		return
	}

	if scanErr != nil {
		events <- ports.AgentEvent{Err: fmt.Errorf("agent stream read failed: %w", scanErr)}
		return
	}
	if waitErr != nil && !sawResult {
		events <- ports.AgentEvent{Err: fmt.Errorf("agent process exited abnormally: %w", waitErr)}
	}
}

// writeControlResponse translates a gate decision into the process's
// control protocol
func writeControlResponse(mu *sync.Mutex, stdin io.Writer, requestID string, decision domain.Decision) error {
	inner := controlResponseInner{Subtype: "success"}
	switch decision.Kind {
	case domain.DecisionAllowed:
		inner.Behavior = "allow"
		inner.UpdatedInput = decision.ModifiedInput
	case domain.DecisionDenied:
		inner.Behavior = "deny"
		inner.Message = decision.Reason
	case domain.DecisionAborted:
		inner.Subtype = "error"
		inner.Message = "session aborted"
	}

	payload, err := json.Marshal(controlResponse{
		Type:      "control_response",
		RequestID: requestID,
		Response:  inner,
	})
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	_, err = stdin.Write(append(payload, '\n'))
	return err
}
