package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/soundvis/internal/engine"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
)

// statusDisplay tracks what the status line and progress row show. It is
// refreshed from the engine on the progress tick.
type statusDisplay struct {
	state        engine.State
	elapsed      time.Duration
	duration     time.Duration
	progress     float64
	rate         int
	samples      int
	frameSize    int
	errorMessage string

	bar progress.Model
}

func newStatusDisplay() *statusDisplay {
	return &statusDisplay{
		state: engine.StateIdle,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithoutPercentage(),
		),
	}
}

// update copies the engine's view of playback. While a session runs the
// figures describe its buffer, otherwise the one the next Start plays.
func (s *statusDisplay) update(p Player) {
	s.state = p.State()
	s.elapsed = p.Elapsed()
	s.progress = p.Progress()
	s.frameSize = p.FrameSize()
	buf := p.Buffer()
	if s.state == engine.StatePlaying || s.state == engine.StatePaused {
		if playing := p.PlayingBuffer(); playing != nil {
			buf = playing
		}
	}
	if buf != nil {
		s.duration = buf.Duration()
		s.rate = buf.SampleRate()
		s.samples = buf.Len()
	}
	if err := p.Err(); err != nil {
		s.errorMessage = err.Error()
	}
}

func (s *statusDisplay) setError(err error) {
	if err == nil {
		s.errorMessage = ""
		return
	}
	s.errorMessage = err.Error()
}

// compactStatus is the state segment of the status bar.
func (s *statusDisplay) compactStatus() string {
	style := lipgloss.NewStyle().Foreground(s.stateColor())
	status := style.Render(fmt.Sprintf("%s %s", s.stateIcon(), s.state))

	if s.state == engine.StatePlaying || s.state == engine.StatePaused {
		status += dimStyle.Render(fmt.Sprintf(" %s/%s", formatDuration(s.elapsed), formatDuration(s.duration)))
	}
	return status
}

// detailedStatus describes the loaded buffer.
func (s *statusDisplay) detailedStatus(width int) string {
	var lines []string
	if s.samples > 0 {
		lines = append(lines, fmt.Sprintf("%s %s  %s %s Hz  %s %s  %s %s",
			labelStyle.Render("samples"), valueStyle.Render(humanize.Comma(int64(s.samples))),
			labelStyle.Render("rate"), valueStyle.Render(humanize.Comma(int64(s.rate))),
			labelStyle.Render("length"), valueStyle.Render(formatDuration(s.duration)),
			labelStyle.Render("frame"), valueStyle.Render(humanize.Comma(int64(s.frameSize))),
		))
	}
	if s.errorMessage != "" && width > 10 {
		msg := truncate.StringWithTail(s.errorMessage, uint(width-8), ellipsis) //nolint:gosec
		lines = append(lines, lipgloss.NewStyle().Foreground(red).Render("error: "+msg))
	}
	return strings.Join(lines, "\n")
}

// progressBar renders elapsed/duration at width cells.
func (s *statusDisplay) progressBar(width int) string {
	if width < 10 {
		return ""
	}
	s.bar.Width = width
	return s.bar.ViewAs(s.progress)
}

func (s *statusDisplay) stateColor() lipgloss.TerminalColor {
	switch s.state {
	case engine.StatePlaying:
		return green
	case engine.StatePaused:
		return amber
	case engine.StateStopped:
		return brightGray
	default:
		return gray
	}
}

func (s *statusDisplay) stateIcon() string {
	switch s.state {
	case engine.StatePlaying:
		return "▶"
	case engine.StatePaused:
		return "⏸"
	case engine.StateStopped:
		return "■"
	default:
		return "○"
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00.0"
	}

	minutes := int(d.Minutes())
	seconds := d.Seconds() - float64(minutes*60)

	return fmt.Sprintf("%d:%04.1f", minutes, seconds)
}
