package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of one interface session
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Probing
	StepComplete                   // Finished without fault
	StepFailed                     // Ended by a setup or send fault
)

// Step is one row of the progress display, one per interface
type Step struct {
	Name    string     // Interface name
	Status  StepStatus // Current status
	Message string     // e.g., "2 replies", "bind: permission denied"
}

// Progress renders a bar plus one row per interface being searched
type Progress struct {
	Label     string  // e.g., "Searching 3 interfaces..."
	Steps     []Step  // One per interface, in enumeration order
	Percent   float64 // Fraction of finished sessions (0.0 - 1.0)
	Width     int     // Terminal width
	ShowBar   bool    // Whether to show progress bar
	ShowSteps bool    // Whether to show interface rows
	bar       progress.Model
}

// NewProgress creates a progress display with one pending row per name
func NewProgress(label string, names []string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Name: name, Status: StepPending}
	}

	p := &Progress{
		Label:     label,
		Steps:     steps,
		ShowBar:   true,
		ShowSteps: true,
	}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := width - 20 // room for percentage and counter
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// Start marks every pending row as running
func (p *Progress) Start() {
	for i := range p.Steps {
		if p.Steps[i].Status == StepPending {
			p.Steps[i].Status = StepRunning
		}
	}
}

// Finish records the outcome of the session on name
func (p *Progress) Finish(name string, replies int, err error) {
	for i := range p.Steps {
		if p.Steps[i].Name != name {
			continue
		}
		if err != nil {
			p.Steps[i].Status = StepFailed
			p.Steps[i].Message = err.Error()
		} else {
			p.Steps[i].Status = StepComplete
			p.Steps[i].Message = pluralize(replies, "reply", "replies")
		}
		break
	}
	p.Percent = float64(p.Done()) / float64(max(len(p.Steps), 1))
}

// Done returns the number of finished sessions
func (p *Progress) Done() int {
	done := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete || s.Status == StepFailed {
			done++
		}
	}
	return done
}

// Render returns the styled progress display as a string
func (p *Progress) Render() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}

	if p.ShowBar {
		b.WriteString(p.renderProgressBar())
		b.WriteString("\n\n")
	}

	if p.ShowSteps {
		lines := make([]string, 0, len(p.Steps))
		for _, step := range p.Steps {
			lines = append(lines, p.renderStepLine(step))
		}
		b.WriteString(strings.Join(lines, "\n"))
	}

	return b.String()
}

// renderProgressBar renders the bar with percentage and session counter
func (p *Progress) renderProgressBar() string {
	barView := p.bar.ViewAs(p.Percent)
	counter := fmt.Sprintf("[%d/%d]", p.Done(), len(p.Steps))
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(barView + "  " + counter)
}

// renderStepLine renders one interface row
func (p *Progress) renderStepLine(step Step) string {
	var (
		marker string
		style  lipgloss.Style
	)
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(style.Render(marker))
	b.WriteString(" ")
	b.WriteString(style.Render(padRight(step.Name, 16)))

	if step.Message != "" {
		b.WriteString(" ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}

	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
