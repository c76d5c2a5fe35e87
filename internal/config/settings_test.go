package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("MAESTRO_HOME", t.TempDir())

	settings, err := LoadSettings()

	require.NoError(t, err)
	assert.Equal(t, DefaultBranchPrefix, settings.GetBranchPrefix())
	assert.Equal(t, DefaultBaseRef, settings.GetDefaultBaseRef())
	assert.Equal(t, DefaultAgentCommand, settings.GetAgentCommand())
	assert.Equal(t, DefaultTerminalGracePeriod, settings.GetTerminalGracePeriod())
}

func TestLoadSettings_ReadsValues(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MAESTRO_HOME", home)

	content := `{
		"agent_command": "my-agent",
		"branch_prefix": "work/",
		"default_base_ref": "develop",
		"terminal_grace_millis": 500
	}`
	require.NoError(t, os.WriteFile(filepath.Join(home, "settings.json"), []byte(content), 0644))

	settings, err := LoadSettings()

	require.NoError(t, err)
	assert.Equal(t, "my-agent", settings.GetAgentCommand())
	assert.Equal(t, "work/", settings.GetBranchPrefix())
	assert.Equal(t, "develop", settings.GetDefaultBaseRef())
	assert.Equal(t, 500*time.Millisecond, settings.GetTerminalGracePeriod())
}

func TestLoadSettings_InvalidJSON(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MAESTRO_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "settings.json"), []byte("{not json"), 0644))

	_, err := LoadSettings()

	assert.Error(t, err)
}

func TestMaestroHome_EnvOverride(t *testing.T) {
	t.Setenv("MAESTRO_HOME", "/custom/maestro")

	assert.Equal(t, "/custom/maestro", MaestroHome())
}

func TestSettingsPathsDeriveFromHome(t *testing.T) {
	t.Setenv("MAESTRO_HOME", "/custom/maestro")
	settings := &Settings{}

	assert.Equal(t, "/custom/maestro/state.db", settings.GetDBPath())
	assert.Equal(t, "/custom/maestro/worktrees", settings.GetWorktreePath())
	assert.Equal(t, "/custom/maestro/logs", settings.GetLogDir())
}

func TestSettingsExplicitPathsWin(t *testing.T) {
	settings := &Settings{
		DBPath:       "/elsewhere/state.db",
		WorktreePath: "/elsewhere/worktrees",
		LogDir:       "/elsewhere/logs",
	}

	assert.Equal(t, "/elsewhere/state.db", settings.GetDBPath())
	assert.Equal(t, "/elsewhere/worktrees", settings.GetWorktreePath())
	assert.Equal(t, "/elsewhere/logs", settings.GetLogDir())
}

func TestGetTerminalGracePeriod_NegativeFallsBack(t *testing.T) {
	negative := -1
	settings := &Settings{TerminalGraceMillis: &negative}

	assert.Equal(t, DefaultTerminalGracePeriod, settings.GetTerminalGracePeriod())
}
