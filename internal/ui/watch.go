package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ports"
	"github.com/renato0307/maestro/internal/theme"
)

const pollInterval = 2 * time.Second

type sessionsLoadedMsg []ports.SessionRecord
type pollTickMsg time.Time
type watchErrMsg struct{ err error }

// WatchItem implements list.Item and list.DefaultItem
type WatchItem struct {
	Record ports.SessionRecord
}

// FilterValue implements list.Item
func (i WatchItem) FilterValue() string {
	return i.Record.ID + " " + i.Record.Prompt
}

// Title implements list.DefaultItem
func (i WatchItem) Title() string {
	return statusIcon(i.Record.Status) + " " + firstLine(i.Record.Prompt, 64)
}

// Description implements list.DefaultItem
func (i WatchItem) Description() string {
	parts := []string{
		string(i.Record.Status),
		i.Record.ID[:8],
	}
	if i.Record.BranchName != "" {
		parts = append(parts, i.Record.BranchName)
	}
	parts = append(parts, i.Record.UpdatedAt.Local().Format("15:04:05"))
	if i.Record.LastError != "" {
		parts = append(parts, i.Record.LastError)
	}
	return strings.Join(parts, "  ")
}

// WatchModel is a read-only live view over the durable session store.
// It polls rather than subscribing so it can monitor sessions started by
// other processes.
type WatchModel struct {
	store   ports.SessionRecordReader
	project string

	list    list.Model
	spinner spinner.Model
	err     error
	ready   bool
}

// NewWatchModel creates the watch view
func NewWatchModel(store ports.SessionRecordReader, project string) *WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = theme.SpinnerStyle

	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Sessions"
	l.SetShowStatusBar(false)
	l.Styles.Title = theme.TitleStyle

	return &WatchModel{
		store:   store,
		project: project,
		list:    l,
		spinner: s,
	}
}

// Init implements tea.Model
func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadSessions())
}

// Update implements tea.Model
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
		m.ready = true

	case sessionsLoadedMsg:
		m.err = nil
		items := make([]list.Item, 0, len(msg))
		for _, record := range msg {
			items = append(items, WatchItem{Record: record})
		}
		m.list.SetItems(items)
		return m, m.schedulePoll()

	case watchErrMsg:
		m.err = msg.err
		logging.Logger.Error("Failed to load sessions for watch view", "error", msg.err)
		return m, m.schedulePoll()

	case pollTickMsg:
		return m, m.loadSessions()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m *WatchModel) View() string {
	if !m.ready {
		return m.spinner.View() + " Loading sessions..."
	}
	view := m.list.View()
	if m.err != nil {
		view += "\n" + theme.FailedIconStyle.Render(fmt.Sprintf("error: %v", m.err))
	}
	return view + theme.HelpStyle.Render("q quit")
}

func (m *WatchModel) loadSessions() tea.Cmd {
	return func() tea.Msg {
		records, err := m.store.ListByProject(context.Background(), m.project)
		if err != nil {
			return watchErrMsg{err: err}
		}
		return sessionsLoadedMsg(records)
	}
}

func (m *WatchModel) schedulePoll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func statusIcon(status domain.Status) string {
	switch status {
	case domain.StatusRunning:
		return theme.RunningIconStyle.Render("●")
	case domain.StatusWaitingPermission:
		return theme.WaitingIconStyle.Render("●")
	case domain.StatusCompleted:
		return theme.CompletedIconStyle.Render("✓")
	case domain.StatusError:
		return theme.FailedIconStyle.Render("✗")
	case domain.StatusAborted:
		return theme.AbortedIconStyle.Render("■")
	default:
		return theme.IdleIconStyle.Render("○")
	}
}

func firstLine(s string, max int) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > max {
		s = s[:max-3] + "..."
	}
	return s
}
