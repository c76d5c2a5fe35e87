package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default values applied when settings.json omits a field
const (
	DefaultBranchPrefix        = "maestro/"
	DefaultBaseRef             = "main"
	DefaultAgentCommand        = "claude"
	DefaultTerminalGracePeriod = 30 * time.Second
)

// Settings represents the structure of ~/.maestro/settings.json
type Settings struct {
	AgentCommand        string `json:"agent_command,omitempty"`
	BranchPrefix        string `json:"branch_prefix,omitempty"`
	DBPath              string `json:"db_path,omitempty"`
	Debug               *bool  `json:"debug,omitempty"`
	DefaultBaseRef      string `json:"default_base_ref,omitempty"`
	LogDir              string `json:"log_dir,omitempty"`
	MaxLogFiles         *int   `json:"max_log_files,omitempty"`
	TerminalGraceMillis *int   `json:"terminal_grace_millis,omitempty"`
	WorktreePath        string `json:"worktree_path,omitempty"`
}

// LoadSettings loads settings from $MAESTRO_HOME/settings.json (or
// ~/.maestro/settings.json if not set).
// Returns empty Settings if the file doesn't exist (not an error).
func LoadSettings() (*Settings, error) {
	path := filepath.Join(MaestroHome(), "settings.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil // Not an error, use defaults
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("invalid settings.json: %w", err)
	}

	// Expand paths that start with ~
	if settings.DBPath != "" {
		settings.DBPath = expandPath(settings.DBPath)
	}
	if settings.WorktreePath != "" {
		settings.WorktreePath = expandPath(settings.WorktreePath)
	}
	if settings.LogDir != "" {
		settings.LogDir = expandPath(settings.LogDir)
	}

	return &settings, nil
}

// MaestroHome returns the base directory for maestro state (~/.maestro)
func MaestroHome() string {
	if custom := os.Getenv("MAESTRO_HOME"); custom != "" {
		return expandPath(custom)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".maestro"
	}
	return filepath.Join(homeDir, ".maestro")
}

// GetDBPath returns the sqlite database path, honoring settings
func (s *Settings) GetDBPath() string {
	if s != nil && s.DBPath != "" {
		return s.DBPath
	}
	return filepath.Join(MaestroHome(), "state.db")
}

// GetWorktreePath returns the base directory for session worktrees
func (s *Settings) GetWorktreePath() string {
	if s != nil && s.WorktreePath != "" {
		return s.WorktreePath
	}
	return filepath.Join(MaestroHome(), "worktrees")
}

// GetLogDir returns the directory holding per-session durable logs
func (s *Settings) GetLogDir() string {
	if s != nil && s.LogDir != "" {
		return s.LogDir
	}
	return filepath.Join(MaestroHome(), "logs")
}

// GetBranchPrefix returns the namespace prefix for session branches
func (s *Settings) GetBranchPrefix() string {
	if s != nil && s.BranchPrefix != "" {
		return s.BranchPrefix
	}
	return DefaultBranchPrefix
}

// GetDefaultBaseRef returns the ref used when none is requested
func (s *Settings) GetDefaultBaseRef() string {
	if s != nil && s.DefaultBaseRef != "" {
		return s.DefaultBaseRef
	}
	return DefaultBaseRef
}

// GetAgentCommand returns the agent runtime executable
func (s *Settings) GetAgentCommand() string {
	if s != nil && s.AgentCommand != "" {
		return s.AgentCommand
	}
	return DefaultAgentCommand
}

// GetTerminalGracePeriod returns how long a terminal session stays in the
// live registry before removal
func (s *Settings) GetTerminalGracePeriod() time.Duration {
	if s != nil && s.TerminalGraceMillis != nil && *s.TerminalGraceMillis >= 0 {
		return time.Duration(*s.TerminalGraceMillis) * time.Millisecond
	}
	return DefaultTerminalGracePeriod
}

// expandPath expands ~ to home directory in paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path // Return as-is if we can't get home dir
		}
		if len(path) == 1 {
			return homeDir
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
