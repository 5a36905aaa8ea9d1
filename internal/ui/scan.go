package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/ccufind/internal/discovery"
)

// ScanFunc runs a search, calling report as each interface session ends
type ScanFunc func(ctx context.Context, report func(discovery.SessionReport)) ([]discovery.Device, error)

// Messages for the async scan
type sessionDoneMsg struct {
	report discovery.SessionReport
}
type scanCompleteMsg struct {
	devices []discovery.Device
	err     error
}

// scanKeyMap defines key bindings while scanning
type scanKeyMap struct {
	Quit key.Binding
}

var scanKeys = scanKeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "cancel"),
	),
}

// ScanModel is a Bubble Tea model showing a spinner and one progress row
// per interface while a search runs. It quits when the search completes
// or the user cancels.
type ScanModel struct {
	run    ScanFunc
	ctx    context.Context
	cancel context.CancelFunc
	events chan tea.Msg

	Spinner   spinner.Model
	Progress  *Progress
	StartTime time.Time
	Width     int

	Done    bool
	Devices []discovery.Device
	Err     error
}

// NewScanModel creates a scan view for the given interface names
func NewScanModel(ctx context.Context, names []string, run ScanFunc) ScanModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ctx, cancel := context.WithCancel(ctx)
	width := GetTerminalWidth()

	label := fmt.Sprintf("Probing %s for CCUs...", pluralize(len(names), "interface", "interfaces"))
	p := NewProgress(label, names)
	p.SetWidth(width)
	p.Start()

	return ScanModel{
		run:       run,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan tea.Msg, len(names)+1),
		Spinner:   s,
		Progress:  p,
		StartTime: time.Now(),
		Width:     width,
	}
}

// Init starts the search and the spinner
func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(
		m.startScan(),
		waitForEvent(m.events),
		m.Spinner.Tick,
	)
}

// startScan runs the search in a command goroutine. Results travel over
// the events channel so per-session reports arrive before completion.
func (m ScanModel) startScan() tea.Cmd {
	run, ctx, events := m.run, m.ctx, m.events
	return func() tea.Msg {
		send := func(msg tea.Msg) {
			// Nobody drains events once the view has gone
			select {
			case events <- msg:
			case <-ctx.Done():
			}
		}
		devices, err := run(ctx, func(r discovery.SessionReport) {
			send(sessionDoneMsg{report: r})
		})
		send(scanCompleteMsg{devices: devices, err: err})
		return nil
	}
}

// waitForEvent delivers the next scan event to Update
func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// Update handles messages and updates the model
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, scanKeys.Quit) {
			m.cancel()
			m.Done = true
			m.Err = context.Canceled
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		m.Progress.SetWidth(m.Width)

	case sessionDoneMsg:
		m.Progress.Finish(msg.report.Interface.Name, msg.report.Devices, msg.report.Err)
		return m, waitForEvent(m.events)

	case scanCompleteMsg:
		m.cancel()
		m.Done = true
		m.Devices = msg.devices
		m.Err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the scanning display. Nothing is drawn once the scan is
// done; the caller prints the result.
func (m ScanModel) View() string {
	if m.Done {
		return ""
	}

	elapsed := time.Since(m.StartTime).Truncate(100 * time.Millisecond)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(TitleStyle.Render(fmt.Sprintf("  %s SEARCHING FOR CCUs", m.Spinner.View())))
	b.WriteString("\n\n")
	b.WriteString(m.Progress.Render())
	b.WriteString("\n\n")
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("  Elapsed: %s  •  %s %s",
		elapsed, scanKeys.Quit.Help().Key, scanKeys.Quit.Help().Desc)))
	b.WriteString("\n")

	return lipgloss.NewStyle().MaxWidth(m.Width).Render(b.String())
}

// RunScan runs the search behind the scanning display and returns its
// result. Cancelling from the keyboard yields context.Canceled.
func RunScan(ctx context.Context, out io.Writer, names []string, run ScanFunc) ([]discovery.Device, error) {
	model := NewScanModel(ctx, names, run)
	defer model.cancel()

	final, err := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx)).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("scan display failed: %w", err)
	}

	m, ok := final.(ScanModel)
	if !ok {
		return nil, errors.New("scan display returned an unexpected model")
	}
	return m.Devices, m.Err
}
