package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/soundvis/internal/waveform"
)

type keyMap struct {
	Play       key.Binding
	Stop       key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Rate       key.Binding
	Tone       key.Binding
	Design     key.Binding
	Browse     key.Binding
	Edit       key.Binding
	Reload     key.Binding
	Yank       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Play: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		VolumeUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "volume up"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "volume down"),
		),
		Rate: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5"),
			key.WithHelp("1-5", "sample rate"),
		),
		Tone: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "tone"),
		),
		Design: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "design"),
		),
		Browse: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "wav file"),
		),
		Edit: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "edit frequency/duration"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload file"),
		),
		Yank: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy points"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Stop, k.VolumeUp, k.VolumeDown, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Stop, k.VolumeUp, k.VolumeDown},
		{k.Tone, k.Design, k.Browse, k.Rate},
		{k.Edit, k.Reload, k.Yank, k.Help, k.Quit},
	}
}

// helpMarkdown is the long-form help shown in the help viewport.
func helpMarkdown(k keyMap) string {
	var b strings.Builder
	b.WriteString("# soundvis\n\n")
	b.WriteString("Plays a tone, a designed sound or a mono WAV file and plots the samples being played.\n\n")
	b.WriteString("## Keys\n\n| key | action |\n|---|---|\n")
	for _, col := range k.FullHelp() {
		for _, binding := range col {
			h := binding.Help()
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
	}
	b.WriteString("\n## Sample rates\n\n")
	for i, r := range waveform.SupportedRates {
		fmt.Fprintf(&b, "%d. %d Hz\n", i+1, r)
	}
	fmt.Fprintf(&b, "\nFrequencies outside %g to %g Hz fall back to %g Hz. Durations under %g s fall back to %g s.\n",
		waveform.MinFrequency, waveform.MaxFrequency, waveform.DefaultFrequency,
		waveform.MinDuration, waveform.DefaultDuration)
	return b.String()
}

// renderHelp renders the help markdown with glamour at width. On failure the
// raw markdown is returned.
func renderHelp(k keyMap, style string, width int) string {
	md := helpMarkdown(k)
	if style == "" || style == styles.AutoStyle {
		style = styles.DarkStyle
		if !hasDarkBackground() {
			style = styles.LightStyle
		}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		log.Error("error creating glamour renderer", "error", err)
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		log.Error("error rendering help", "error", err)
		return md
	}
	return out
}
