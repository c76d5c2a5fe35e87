package cmd

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/renato0307/maestro/internal/config"
	"github.com/renato0307/maestro/internal/logging"
)

// CLI represents the command-line interface structure
type CLI struct {
	Version     kong.VersionFlag `help:"Show version information"`
	Debug       bool             `help:"Enable debug logging to file" short:"d"`
	DebugFile   string           `help:"Custom path for debug log file (disables automatic cleanup)"`
	MaxLogFiles int              `help:"Maximum number of log files to keep (0 = unlimited)" default:"1000"`

	Run      RunCmd      `cmd:"run" help:"Run a new agent session" default:"1"`
	Resume   ResumeCmd   `cmd:"resume" help:"Resume an existing session with a new prompt"`
	Sessions SessionsCmd `cmd:"sessions" help:"Manage sessions (list, view, del, prune)"`
	Watch    WatchCmd    `cmd:"watch" help:"Watch session statuses live"`

	// Internal fields (not flags)
	Container *Container       `kong:"-"`
	settings  *config.Settings `kong:"-"`
}

// SetSettings sets the settings on the CLI struct
func (c *CLI) SetSettings(settings *config.Settings) {
	c.settings = settings
}

// AfterApply initializes logging after CLI parsing and applies settings
func (c *CLI) AfterApply() error {
	// Precedence: CLI flags > env vars > settings.json > defaults
	if c.settings != nil {
		if c.MaxLogFiles == 1000 {
			if _, hasEnv := os.LookupEnv("MAESTRO_MAX_LOG_FILES"); !hasEnv {
				if c.settings.MaxLogFiles != nil {
					c.MaxLogFiles = *c.settings.MaxLogFiles
				}
			}
		}

		if !c.Debug {
			if _, hasEnv := os.LookupEnv("MAESTRO_DEBUG"); !hasEnv {
				if c.settings.Debug != nil && *c.settings.Debug {
					c.Debug = true
				}
			}
		}
	}

	// Initialize logging first; the container's collaborators log during
	// construction
	logFilePath, err := logging.Initialize(c.Debug, c.DebugFile, c.MaxLogFiles)
	if err != nil {
		return err
	}

	// Child processes inherit debug settings and append to the same file
	if c.Debug || c.DebugFile != "" {
		os.Setenv("MAESTRO_DEBUG", "1")
		if logFilePath != "" {
			os.Setenv("MAESTRO_DEBUG_FILE", logFilePath)
		}
	}
	if c.MaxLogFiles != 1000 {
		os.Setenv("MAESTRO_MAX_LOG_FILES", fmt.Sprintf("%d", c.MaxLogFiles))
	}

	container, err := NewContainer(c.settings)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	c.Container = container
	return nil
}
