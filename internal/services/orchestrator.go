package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ports"
)

// StartInput describes a new session run
type StartInput struct {
	Prompt        string
	ProjectRoot   string
	Ref           string
	ParentSession string
	AutoAccept    bool
}

// Response is a human answer to a pending permission request
type Response struct {
	Accept      bool
	Instruction string
}

// Orchestrator composes the workspace manager, session store, durable
// log, registry, permission gate, and agent runner to drive sessions end
// to end. It owns all per-session state explicitly; there are no package
// globals.
type Orchestrator struct {
	store      ports.SessionStore
	workspaces ports.WorkspaceManager
	logs       ports.SessionLog
	registry   *Registry
	gate       *PermissionGate
	router     *MessageRouter
	runner     ports.AgentRunner

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	focused string
	wg      sync.WaitGroup
}

// NewOrchestrator wires an orchestrator from its collaborators. forward
// receives live events for the focused session and may be nil.
func NewOrchestrator(
	store ports.SessionStore,
	workspaces ports.WorkspaceManager,
	logs ports.SessionLog,
	registry *Registry,
	gate *PermissionGate,
	runner ports.AgentRunner,
	forward ForwardFunc,
) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		workspaces: workspaces,
		logs:       logs,
		registry:   registry,
		gate:       gate,
		runner:     runner,
		cancels:    make(map[string]context.CancelFunc),
	}
	o.router = NewMessageRouter(logs, store, registry, o.focusedSession, forward)
	return o
}

// Start creates a session, acquires its workspace, and launches the
// agent event loop in the background. Returns the new session id.
func (o *Orchestrator) Start(ctx context.Context, input StartInput) (string, error) {
	sessionID := uuid.New().String()
	now := time.Now().UTC()

	parentWorkspace, err := o.parentWorkspacePath(ctx, input.ParentSession)
	if err != nil {
		return "", err
	}

	workspace, err := o.workspaces.Create(ctx, ports.CreateWorkspaceInput{
		ProjectRoot:     input.ProjectRoot,
		Ref:             input.Ref,
		SessionID:       sessionID,
		Prompt:          input.Prompt,
		ParentWorkspace: parentWorkspace,
	})
	if err != nil {
		// The session never reaches running; record the failure so it is
		// visible in history
		record := ports.SessionRecord{
			ID:          sessionID,
			Prompt:      input.Prompt,
			ProjectRoot: input.ProjectRoot,
			Status:      domain.StatusError,
			LastError:   err.Error(),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if serr := o.store.Upsert(ctx, record); serr != nil {
			logging.Logger.Error("Failed to record workspace failure", "session_id", sessionID, "error", serr)
		}
		return "", err
	}

	record := ports.SessionRecord{
		ID:            sessionID,
		Prompt:        input.Prompt,
		ProjectRoot:   input.ProjectRoot,
		Status:        domain.StatusRunning,
		WorkspacePath: workspace.Path,
		BranchName:    workspace.Branch,
		LogPath:       o.logs.Path(sessionID),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := o.store.Upsert(ctx, record); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}

	o.registry.Upsert(&domain.Session{
		ID:            sessionID,
		Prompt:        input.Prompt,
		ProjectRoot:   input.ProjectRoot,
		Status:        domain.StatusIdle,
		WorkspacePath: workspace.Path,
		BranchName:    workspace.Branch,
		LogPath:       record.LogPath,
		AutoAccept:    input.AutoAccept,
		CreatedAt:     now,
		UpdatedAt:     now,
	})

	o.appendPrompt(sessionID, input.Prompt)
	o.launch(sessionID, workspace.Path, input.Prompt, "")
	return sessionID, nil
}

// Resume re-runs an existing session using its stored resume token
func (o *Orchestrator) Resume(ctx context.Context, sessionID, prompt string) error {
	record, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if record.ResumeToken == "" {
		return fmt.Errorf("session %s has no resume token; it never completed a run", sessionID)
	}

	valid, err := o.workspaces.Validate(ctx, record.ProjectRoot, record.WorkspacePath)
	if err != nil {
		return err
	}
	if !valid {
		return &domain.WorkspaceError{
			Op:   "validate",
			Path: record.WorkspacePath,
			Err:  fmt.Errorf("workspace no longer exists"),
		}
	}

	now := time.Now().UTC()
	o.registry.Upsert(&domain.Session{
		ID:            sessionID,
		Prompt:        record.Prompt,
		ProjectRoot:   record.ProjectRoot,
		Status:        domain.StatusIdle,
		ResumeToken:   record.ResumeToken,
		WorkspacePath: record.WorkspacePath,
		BranchName:    record.BranchName,
		LogPath:       record.LogPath,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     now,
	})

	o.appendPrompt(sessionID, prompt)
	o.launch(sessionID, record.WorkspacePath, prompt, record.ResumeToken)
	return nil
}

// launch marks the session running and starts its event loop goroutine.
// The run context is owned by the orchestrator, not the Start caller;
// sessions outlive the control call that created them.
func (o *Orchestrator) launch(sessionID, workingDir, prompt, resumeToken string) {
	runCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.cancels[sessionID] = cancel
	o.mu.Unlock()

	o.registry.SetStatus(sessionID, domain.StatusRunning, "")
	if err := o.store.UpdateStatus(context.Background(), sessionID, domain.StatusRunning, ""); err != nil {
		logging.Logger.Warn("Failed to persist running status", "session_id", sessionID, "error", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.drive(runCtx, sessionID, workingDir, prompt, resumeToken)
	}()
}

// drive consumes the agent event stream until it ends, routing every
// event and finalizing bookkeeping whatever way the stream ends
func (o *Orchestrator) drive(ctx context.Context, sessionID, workingDir, prompt, resumeToken string) {
	defer func() {
		o.mu.Lock()
		if cancel, ok := o.cancels[sessionID]; ok {
			cancel()
			delete(o.cancels, sessionID)
		}
		o.mu.Unlock()
	}()

	approve := func(ctx context.Context, toolName string, toolInput json.RawMessage) domain.Decision {
		return o.gate.Request(ctx, sessionID, toolName, toolInput)
	}

	events, err := o.runner.Run(ctx, ports.RunInput{
		Prompt:      prompt,
		WorkingDir:  workingDir,
		ResumeToken: resumeToken,
		Approve:     approve,
	})
	if err != nil {
		o.finalize(sessionID, domain.StatusError, fmt.Sprintf("failed to start agent: %v", err))
		return
	}

	routed := 0
	var streamErr error
	resultIsError := false
	var resultDetail string

	for event := range events {
		if event.Err != nil {
			streamErr = event.Err
			break
		}

		outcome, rerr := o.router.Route(ctx, sessionID, event)
		if rerr != nil {
			// Persistence failures are local-recoverable; the event is
			// lost from history but the session keeps going
			logging.Logger.Error("Failed to route agent event", "session_id", sessionID, "error", rerr)
			continue
		}
		routed++

		if outcome.Terminal {
			resultIsError = outcome.IsError
			if outcome.IsError {
				resultDetail = "agent reported an error result"
			}
		}
	}

	switch {
	case ctx.Err() != nil:
		o.finalize(sessionID, domain.StatusAborted, "")

	case streamErr != nil:
		// Bookkeeping still completes after a partial success; the
		// session must never be left stuck
		err := &domain.StreamError{SessionID: sessionID, EventsRouted: routed, Err: streamErr}
		o.finalize(sessionID, domain.StatusError, err.Error())

	case resultIsError:
		o.finalize(sessionID, domain.StatusError, resultDetail)

	default:
		o.finalize(sessionID, domain.StatusCompleted, "")
	}
}

// finalize records the terminal status durably and in the live registry.
// Errors are additionally appended to the durable log as system entries
// so the failure is visible in history review.
func (o *Orchestrator) finalize(sessionID string, status domain.Status, detail string) {
	if err := o.store.UpdateStatus(context.Background(), sessionID, status, detail); err != nil {
		logging.Logger.Error("Failed to persist terminal status", "session_id", sessionID, "error", err)
	}

	if status == domain.StatusError && detail != "" {
		payload, err := json.Marshal(map[string]string{"type": "error", "message": detail})
		if err == nil {
			if aerr := o.logs.Append(sessionID, domain.LogEntry{
				Origin:  domain.OriginSystem,
				Payload: payload,
			}); aerr != nil {
				logging.Logger.Warn("Failed to log terminal error", "session_id", sessionID, "error", aerr)
			}
		}
	}

	o.registry.SetStatus(sessionID, status, detail)
	logging.Logger.Info("Session finalized", "session_id", sessionID, "status", status, "detail", detail)
}

// appendPrompt records the human turn that started or resumed the run
func (o *Orchestrator) appendPrompt(sessionID, prompt string) {
	payload, err := json.Marshal(map[string]string{"type": "prompt", "text": prompt})
	if err != nil {
		return
	}
	if aerr := o.logs.Append(sessionID, domain.LogEntry{
		Origin:  domain.OriginHuman,
		Payload: payload,
	}); aerr != nil {
		logging.Logger.Warn("Failed to log prompt", "session_id", sessionID, "error", aerr)
	}
}

// parentWorkspacePath resolves the parent session's workspace for
// chained sessions
func (o *Orchestrator) parentWorkspacePath(ctx context.Context, parentSession string) (string, error) {
	if parentSession == "" {
		return "", nil
	}

	if session, ok := o.registry.Get(parentSession); ok {
		return session.WorkspacePath, nil
	}

	record, err := o.store.Get(ctx, parentSession)
	if err != nil {
		return "", fmt.Errorf("parent session %s: %w", parentSession, err)
	}
	return record.WorkspacePath, nil
}

// ToggleAutoAccept flips a session's auto-accept flag. Already pending
// requests are not retroactively resolved.
func (o *Orchestrator) ToggleAutoAccept(sessionID string, autoAccept bool) {
	o.registry.SetAutoAccept(sessionID, autoAccept)
}

// Abort cancels a session's run. A pending permission request resolves
// as aborted, never as a human deny. Other sessions are unaffected.
func (o *Orchestrator) Abort(sessionID string) {
	o.mu.Lock()
	cancel, ok := o.cancels[sessionID]
	o.mu.Unlock()

	if !ok {
		logging.Logger.Debug("Abort for session with no active run", "session_id", sessionID)
		return
	}

	o.gate.AbortSession(sessionID)
	cancel()
}

// Respond answers a pending permission request. Stale or unknown request
// ids are ignored.
func (o *Orchestrator) Respond(requestID string, response Response) bool {
	if response.Accept {
		return o.gate.Accept(requestID)
	}
	return o.gate.Redirect(requestID, response.Instruction)
}

// Focus marks the session whose live events should be forwarded to the
// viewer. An empty id means nothing is focused.
func (o *Orchestrator) Focus(sessionID string) {
	o.mu.Lock()
	o.focused = sessionID
	o.mu.Unlock()
}

func (o *Orchestrator) focusedSession() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.focused
}

// Subscribe registers an observer on the registry
func (o *Orchestrator) Subscribe(observer ports.Observer) func() {
	return o.registry.Subscribe(observer)
}

// Sessions lists the live registry
func (o *Orchestrator) Sessions() []domain.Session {
	return o.registry.List()
}

// History reads a session's durable log
func (o *Orchestrator) History(sessionID string) ([]domain.LogEntry, error) {
	return o.logs.Read(sessionID)
}

// Wait blocks until all running session loops have finished. Intended
// for foreground commands and tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown aborts every active session and waits for their loops
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	ids := make([]string, 0, len(o.cancels))
	for id := range o.cancels {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		o.Abort(id)
	}
	o.wg.Wait()
}
