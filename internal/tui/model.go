// Package tui is the interactive dashboard for a session
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/session"
)

const maxVisibleLogs = 200

// Controller is the part of the session the dashboard drives
type Controller interface {
	View(ctx context.Context) (session.View, error)
	Tail(ctx context.Context, n int) ([]domain.LogEntry, error)
	Subscribe() (<-chan struct{}, func())
	RequestStart(ctx context.Context, cfg domain.JobConfiguration) error
	RequestStop(ctx context.Context) error
	DownloadTo(ctx context.Context, dir string, xlsx bool) (string, error)
	ClearLogs(ctx context.Context) error
}

// Options configures the dashboard
type Options struct {
	Job       domain.JobConfiguration
	OutputDir string
	XLSX      bool
	Logger    logrus.FieldLogger
}

type changedMsg struct{}

type stateMsg struct {
	view session.View
	logs []domain.LogEntry
	err  error
}

type commandMsg struct {
	action string
	err    error
}

// Model is the bubbletea model of the dashboard
type Model struct {
	ctx     context.Context
	ctrl    Controller
	opts    Options
	changes <-chan struct{}
	cancel  func()
	log     logrus.FieldLogger

	state    session.View
	logs     []domain.LogEntry
	busy     string
	lastErr  error
	progress progress.Model
	width    int
	height   int
}

// New creates the dashboard model. Close must be called when the program ends.
func New(ctx context.Context, ctrl Controller, opts Options) *Model {
	changes, cancel := ctrl.Subscribe()

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Model{
		ctx:      ctx,
		ctrl:     ctrl,
		opts:     opts,
		changes:  changes,
		cancel:   cancel,
		log:      log.WithField("component", "tui"),
		progress: progress.New(progress.WithDefaultGradient()),
		width:    80,
		height:   24,
	}
}

// Close releases the change subscription
func (m *Model) Close() {
	m.cancel()
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.waitForChange())
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return changedMsg{}
		case <-m.ctx.Done():
			return tea.Quit()
		}
	}
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		v, err := m.ctrl.View(m.ctx)
		if err != nil {
			return stateMsg{err: err}
		}

		logs, err := m.ctrl.Tail(m.ctx, maxVisibleLogs)
		if err != nil {
			return stateMsg{err: err}
		}

		return stateMsg{view: v, logs: logs}
	}
}

func (m *Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	if m.busy != "" {
		return nil
	}

	m.busy = action

	return func() tea.Msg {
		return commandMsg{action: action, err: fn(m.ctx)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(msg.Width-16, 10)
		return m, nil

	case changedMsg:
		return m, tea.Batch(m.refresh(), m.waitForChange())

	case stateMsg:
		if msg.err != nil {
			m.log.WithError(msg.err).Debug("state refresh failed")
			return m, nil
		}
		m.state = msg.view
		m.logs = msg.logs
		return m, nil

	case commandMsg:
		m.busy = ""
		m.lastErr = msg.err
		if msg.err != nil {
			m.log.WithError(msg.err).WithField("action", msg.action).Debug("command failed")
		}
		return m, m.refresh()

	case tea.KeyMsg:
		return m.handleKey(msg.String())
	}

	return m, nil
}

func (m *Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "s":
		return m, m.run("start", func(ctx context.Context) error {
			return m.ctrl.RequestStart(ctx, m.opts.Job)
		})
	case "x":
		return m, m.run("stop", m.ctrl.RequestStop)
	case "d":
		return m, m.run("download", func(ctx context.Context) error {
			_, err := m.ctrl.DownloadTo(ctx, m.opts.OutputDir, m.opts.XLSX)
			return err
		})
	case "c":
		return m, m.run("clear", m.ctrl.ClearLogs)
	}

	return m, nil
}
