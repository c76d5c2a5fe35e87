package agent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/ports"
)

// ScriptStep is one scripted action a FakeRunner performs during a run
type ScriptStep struct {
	// Emit, when set, is sent to the event channel as-is
	Emit *ports.AgentEvent

	// RequestTool, when set, invokes the approval hook before continuing.
	// The resulting decision is recorded in Decisions.
	RequestTool     string
	RequestInput    json.RawMessage
	StopWhenDenied  bool
	StopWhenAborted bool
}

// FakeRunner is a test double for the agent runtime that doesn't spawn
// real processes. Tests script its events and tool requests and inspect
// the decisions the approval hook produced.
type FakeRunner struct {
	mu sync.Mutex

	Script    []ScriptStep
	Decisions []domain.Decision

	// StepBarrier, when non-nil, is received from before each step so
	// tests can interleave other operations deterministically
	StepBarrier chan struct{}

	runs int
}

// Compile-time interface verification
var _ ports.AgentRunner = (*FakeRunner)(nil)

// NewFakeRunner creates a fake runner with the given script
func NewFakeRunner(script ...ScriptStep) *FakeRunner {
	return &FakeRunner{Script: script}
}

// Runs reports how many times Run was invoked
func (f *FakeRunner) Runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

// RecordedDecisions returns a copy of the decisions the approval hook produced
func (f *FakeRunner) RecordedDecisions() []domain.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Decision(nil), f.Decisions...)
}

// Run implements ports.AgentRunner by playing the script
func (f *FakeRunner) Run(ctx context.Context, input ports.RunInput) (<-chan ports.AgentEvent, error) {
	f.mu.Lock()
	f.runs++
	script := append([]ScriptStep(nil), f.Script...)
	f.mu.Unlock()

	events := make(chan ports.AgentEvent)
	go func() {
		defer close(events)

		for _, step := range script {
			if f.StepBarrier != nil {
				select {
				case <-f.StepBarrier:
				case <-ctx.Done():
					return
				}
			}

			if step.RequestTool != "" {
				decision := input.Approve(ctx, step.RequestTool, step.RequestInput)

				f.mu.Lock()
				f.Decisions = append(f.Decisions, decision)
				f.mu.Unlock()

				if step.StopWhenDenied && decision.Kind == domain.DecisionDenied {
					return
				}
				if decision.Kind == domain.DecisionAborted && (step.StopWhenAborted || ctx.Err() != nil) {
					return
				}
			}

			if step.Emit != nil {
				select {
				case events <- *step.Emit:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}
