package ui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/soundvis/internal/waveform"
)

// Volume slider range. The engine gain is slider/maxVolume.
const (
	maxVolume   = 200
	volumeStep  = 10
	sliderCells = 20
)

const (
	inputFrequency = iota
	inputDuration
	inputCount
)

// controls holds the editable sound parameters.
type controls struct {
	inputs [inputCount]textinput.Model
	focus  int // -1 when no input is focused
}

func newControls(p waveform.Params) controls {
	var c controls
	for i := range c.inputs {
		ti := textinput.New()
		ti.CharLimit = 10
		ti.Width = 10
		ti.PromptStyle = labelStyle
		ti.TextStyle = valueStyle
		ti.Cursor.Style = activeStyle
		c.inputs[i] = ti
	}
	c.inputs[inputFrequency].Prompt = "frequency "
	c.inputs[inputFrequency].Placeholder = formatFloat(waveform.DefaultFrequency)
	c.inputs[inputDuration].Prompt = "duration "
	c.inputs[inputDuration].Placeholder = formatFloat(waveform.DefaultDuration)
	c.focus = -1
	c.reset(p)
	return c
}

// reset shows p in the inputs, discarding any edit.
func (c *controls) reset(p waveform.Params) {
	c.inputs[inputFrequency].SetValue(formatFloat(p.Frequency))
	c.inputs[inputDuration].SetValue(formatFloat(p.Duration))
}

func (c *controls) editing() bool { return c.focus >= 0 }

// next moves focus to the following input, or out of the inputs after the
// last one. It reports whether editing finished.
func (c *controls) next() (tea.Cmd, bool) {
	if c.focus >= 0 {
		c.inputs[c.focus].Blur()
	}
	c.focus++
	if c.focus >= inputCount {
		c.focus = -1
		return nil, true
	}
	return c.inputs[c.focus].Focus(), false
}

func (c *controls) blur() {
	if c.focus >= 0 {
		c.inputs[c.focus].Blur()
	}
	c.focus = -1
}

func (c *controls) update(msg tea.Msg) tea.Cmd {
	if c.focus < 0 {
		return nil
	}
	var cmd tea.Cmd
	c.inputs[c.focus], cmd = c.inputs[c.focus].Update(msg)
	return cmd
}

// apply parses the inputs into p and substitutes out-of-range values. The
// inputs are rewritten to show what will be used.
func (c *controls) apply(p waveform.Params) waveform.Params {
	p.Frequency = parseFloat(c.inputs[inputFrequency].Value())
	p.Duration = parseFloat(c.inputs[inputDuration].Value())
	p = p.Normalize()
	c.reset(p)
	return p
}

func (c controls) view() string {
	return c.inputs[inputFrequency].View() + dimStyle.Render(" Hz") + "   " +
		c.inputs[inputDuration].View() + dimStyle.Render(" s")
}

// parseFloat returns NaN for anything that is not a number, which
// Normalize then replaces with the default.
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// clampVolume keeps a slider value in range.
func clampVolume(v int) int {
	return max(0, min(maxVolume, v))
}

// volumeView renders the slider as a bar with its value.
func volumeView(v int) string {
	filled := v * sliderCells / maxVolume
	bar := valueStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", sliderCells-filled))
	return labelStyle.Render("volume ") + bar + dimStyle.Render(fmt.Sprintf(" %d/%d", v, maxVolume))
}
