package cmd

import (
	"sync"

	adapteragent "github.com/renato0307/maestro/internal/adapters/agent"
	adaptergit "github.com/renato0307/maestro/internal/adapters/git"
	adapterlogstore "github.com/renato0307/maestro/internal/adapters/logstore"
	adapterstorage "github.com/renato0307/maestro/internal/adapters/storage"
	"github.com/renato0307/maestro/internal/config"
	"github.com/renato0307/maestro/internal/ports"
	"github.com/renato0307/maestro/internal/services"
)

// liveForwarder lets commands install the live viewer callback after the
// container is wired
type liveForwarder struct {
	mu sync.RWMutex
	fn services.ForwardFunc
}

func (f *liveForwarder) set(fn services.ForwardFunc) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

func (f *liveForwarder) forward(sessionID string, event ports.AgentEvent) {
	f.mu.RLock()
	fn := f.fn
	f.mu.RUnlock()
	if fn != nil {
		fn(sessionID, event)
	}
}

// Container holds all dependencies for the application
type Container struct {
	Settings     *config.Settings
	Orchestrator *services.Orchestrator
	Registry     *services.Registry
	Workspaces   ports.WorkspaceManager
	Logs         ports.SessionLog
	Store        ports.SessionStore

	forwarder *liveForwarder
}

// NewContainer creates a new Container with all dependencies wired
func NewContainer(settings *config.Settings) (*Container, error) {
	if settings == nil {
		settings = &config.Settings{}
	}

	store, err := adapterstorage.NewSQLiteStore(settings.GetDBPath())
	if err != nil {
		return nil, err
	}

	logs, err := adapterlogstore.NewStore(settings.GetLogDir())
	if err != nil {
		store.Close()
		return nil, err
	}

	workspaces := adaptergit.NewManager(
		settings.GetWorktreePath(),
		settings.GetBranchPrefix(),
		settings.GetDefaultBaseRef(),
	)
	runner := adapteragent.NewProcessRunner(settings.GetAgentCommand())
	registry := services.NewRegistry(settings.GetTerminalGracePeriod())
	gate := services.NewPermissionGate(registry, logs)

	forwarder := &liveForwarder{}
	orchestrator := services.NewOrchestrator(store, workspaces, logs, registry, gate, runner, forwarder.forward)

	return &Container{
		Settings:     settings,
		Orchestrator: orchestrator,
		Registry:     registry,
		Workspaces:   workspaces,
		Logs:         logs,
		Store:        store,
		forwarder:    forwarder,
	}, nil
}

// SetLiveForward installs the callback receiving the focused session's
// live events
func (c *Container) SetLiveForward(fn services.ForwardFunc) {
	c.forwarder.set(fn)
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	c.Orchestrator.Shutdown()
	return c.Store.Close()
}
