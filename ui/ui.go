// Package ui provides the terminal interface for soundvis: sound controls,
// a live waveform plot of what is playing, a progress bar and a WAV file
// browser.
package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/soundvis/internal/engine"
	"github.com/dgnsrekt/soundvis/internal/waveform"
	"github.com/mitchellh/go-homedir"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	te "github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "copied"
	progressInterval     = 250 * time.Millisecond
	ellipsis             = "…"
)

var hasDarkBackground = te.HasDarkBackground

// Player is the playback surface the UI drives. *engine.Engine implements
// it.
type Player interface {
	Generate(p waveform.Params) (sampleRate int, duration float64, err error)
	Buffer() *waveform.Buffer
	PlayingBuffer() *waveform.Buffer
	FrameSize() int
	Start() (time.Time, error)
	Toggle() error
	Stop()
	State() engine.State
	Done() <-chan struct{}
	Err() error
	SetVolume(v float64)
	Sample() (engine.Series, bool)
	Elapsed() time.Duration
	Progress() float64
	Quit(ctx context.Context)
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, p Player) *tea.Program {
	log.Debug(
		"Starting soundvis",
		"high_perf_pager",
		cfg.HighPerformancePager,
		"plot_height",
		cfg.PlotHeight,
	)
	return tea.NewProgram(newModel(cfg, p), tea.WithAltScreen())
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	sampleTickMsg   time.Time
	progressTickMsg time.Time

	startedMsg struct {
		session int
		done    <-chan struct{}
		err     error
	}
	playbackEndedMsg struct {
		session int
		err     error
	}
	loadedMsg struct {
		params   waveform.Params
		previous waveform.Params
		rate     int
		duration float64
		reload   bool
		err      error
	}
	statusMessageTimeoutMsg struct{}
)

// state is the top-level application state.
type state int

const (
	statePlayer state = iota
	stateBrowser
	stateHelp
)

func (s state) String() string {
	return map[state]string{
		statePlayer:  "showing player",
		stateBrowser: "showing file browser",
		stateHelp:    "showing help",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg    Config
	width  int
	height int
}

type statusMessage struct {
	message string
	isError bool
}

type model struct {
	common   *commonModel
	state    state
	player   Player
	fatalErr error
	quitting bool

	params   waveform.Params
	volume   int
	series   engine.Series
	session  int
	controls controls
	status   *statusDisplay

	keys     keyMap
	help     help.Model
	helpView viewport.Model

	message      statusMessage
	messageTimer *time.Timer

	browser browserModel
	watcher *fileWatcher
}

func newModel(cfg Config, p Player) model {
	sound, err := waveform.ParseSoundType(cfg.Sound)
	if err != nil {
		log.Warn("unknown sound type, using tone", "sound", cfg.Sound)
		sound = waveform.SoundTone
	}
	params := waveform.Params{
		Sound:      sound,
		Frequency:  cfg.Frequency,
		Duration:   cfg.Duration,
		SampleRate: cfg.SampleRate,
		Path:       cfg.Path,
	}.Normalize()

	if cfg.PlotHeight < minPlotHeight {
		cfg.PlotHeight = minPlotHeight
	}
	common := &commonModel{cfg: cfg}

	vp := viewport.New(0, 0)
	vp.HighPerformanceRendering = cfg.HighPerformancePager //nolint:staticcheck

	m := model{
		common:   common,
		state:    statePlayer,
		player:   p,
		params:   params,
		volume:   clampVolume(cfg.Volume),
		controls: newControls(params),
		status:   newStatusDisplay(),
		keys:     newKeyMap(),
		help:     help.New(),
		helpView: vp,
		browser:  newBrowserModel(common),
		watcher:  newFileWatcher(),
	}
	p.SetVolume(float64(m.volume) / maxVolume)
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{sampleTick(), progressTick(), m.watcher.watchCmd()}
	if m.params.Sound == waveform.SoundFile && m.params.Path != "" {
		cmds = append(cmds, loadCmd(m.player, m.params, m.params, false))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			cmd := m.quit()
			return m, cmd
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Ctrl+C always quits no matter where in the application you are.
		if msg.String() == "ctrl+c" {
			cmd := m.quit()
			return m, cmd
		}
		switch m.state {
		case stateBrowser:
			if msg.String() == "q" && !m.browser.filtering {
				cmd := m.quit()
				return m, cmd
			}
			var cmd tea.Cmd
			m.browser, cmd = m.browser.update(msg)
			return m, cmd
		case stateHelp:
			switch {
			case key.Matches(msg, m.keys.Help), msg.String() == "esc":
				m.state = statePlayer
				return m, nil
			case msg.String() == "q":
				cmd := m.quit()
				return m, cmd
			}
			var cmd tea.Cmd
			m.helpView, cmd = m.helpView.Update(msg)
			return m, cmd
		}
		return m.handleKey(msg)

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.help.Width = msg.Width
		m.browser.setSize(msg.Width, msg.Height)
		m.helpView.Width = msg.Width
		m.helpView.Height = max(0, msg.Height-statusBarHeight)
		m.helpView.SetContent(renderHelp(m.keys, m.common.cfg.GlamourStyle, msg.Width))
		if m.helpView.HighPerformanceRendering { //nolint:staticcheck
			cmds = append(cmds, viewport.Sync(m.helpView)) //nolint:staticcheck
		}

	case sampleTickMsg:
		if s, ok := m.player.Sample(); ok {
			m.series = s
		}
		cmds = append(cmds, sampleTick())

	case progressTickMsg:
		m.status.update(m.player)
		cmds = append(cmds, progressTick())

	case startedMsg:
		if msg.err != nil {
			m.status.setError(msg.err)
			cmds = append(cmds, m.showStatusMessage(statusMessage{"Play failed: " + msg.err.Error(), true}))
			break
		}
		m.status.setError(nil)
		m.series = engine.Series{}
		m.status.update(m.player)
		cmds = append(cmds, waitForEnd(msg.session, msg.done, m.player))

	case playbackEndedMsg:
		if msg.session != m.session {
			break
		}
		m.status.update(m.player)
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage(statusMessage{"Playback failed: " + msg.err.Error(), true}))
		}

	case loadedMsg:
		cmds = append(cmds, m.handleLoaded(msg))

	case fileChosenMsg:
		m.state = statePlayer
		previous := m.params
		m.params.Sound = waveform.SoundFile
		m.params.Path = msg.path
		cmds = append(cmds, loadCmd(m.player, m.params, previous, false))

	case browserClosedMsg:
		m.state = statePlayer

	case fileChangedMsg:
		if m.params.Sound == waveform.SoundFile && sameFile(msg.path, m.params.Path) {
			now, cmd := m.watcher.schedule(msg.path)
			if now {
				cmd = m.reload(msg.path)
			}
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, m.watcher.watchCmd())

	case reloadDueMsg:
		m.watcher.due()
		if m.params.Sound == waveform.SoundFile && sameFile(msg.path, m.params.Path) {
			cmds = append(cmds, m.reload(msg.path))
		}

	case statusMessageTimeoutMsg:
		m.message = statusMessage{}

	case errMsg:
		log.Error("fatal error", "error", msg.err)
		m.fatalErr = msg.err

	case initWavSearchMsg, foundWavMsg, wavSearchFinished, spinner.TickMsg:
		// Always pass these messages to the browser so it keeps filling
		// even while it is not on screen.
		var cmd tea.Cmd
		m.browser, cmd = m.browser.update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.controls.editing() {
		switch msg.String() {
		case "tab":
			cmd, done := m.controls.next()
			if done {
				m.params = m.controls.apply(m.params)
			}
			return m, cmd
		case "enter":
			m.controls.blur()
			m.params = m.controls.apply(m.params)
			return m, nil
		case "esc":
			m.controls.blur()
			m.controls.reset(m.params)
			return m, nil
		}
		cmd := m.controls.update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		cmd := m.quit()
		return m, cmd

	case key.Matches(msg, m.keys.Play):
		switch m.player.State() {
		case engine.StatePlaying, engine.StatePaused:
			if err := m.player.Toggle(); err != nil {
				cmd := m.showStatusMessage(statusMessage{err.Error(), true})
				return m, cmd
			}
			m.status.update(m.player)
			return m, nil
		}
		m.session++
		return m, playCmd(m.player, m.params, m.session)

	case key.Matches(msg, m.keys.Stop):
		m.player.Stop()
		m.status.update(m.player)

	case key.Matches(msg, m.keys.VolumeUp), key.Matches(msg, m.keys.VolumeDown):
		step := volumeStep
		if key.Matches(msg, m.keys.VolumeDown) {
			step = -step
		}
		m.volume = clampVolume(m.volume + step)
		m.player.SetVolume(float64(m.volume) / maxVolume)

	case key.Matches(msg, m.keys.Rate):
		i := int(msg.Runes[0] - '1')
		if i >= 0 && i < len(waveform.SupportedRates) {
			m.params.SampleRate = waveform.SupportedRates[i]
			cmd := m.showStatusMessage(statusMessage{fmt.Sprintf("Sample rate %d Hz", m.params.SampleRate), false})
			return m, cmd
		}

	case key.Matches(msg, m.keys.Tone):
		m.params.Sound = waveform.SoundTone
	case key.Matches(msg, m.keys.Design):
		m.params.Sound = waveform.SoundDesign

	case key.Matches(msg, m.keys.Browse):
		m.state = stateBrowser
		dir := m.common.cfg.WavDir
		if dir != "" {
			if expanded, err := homedir.Expand(dir); err == nil {
				dir = expanded
			}
		}
		m.browser.reset(dir)
		return m, tea.Batch(findWavFiles(dir), m.browser.spinner.Tick)

	case key.Matches(msg, m.keys.Edit):
		cmd, _ := m.controls.next()
		return m, cmd

	case key.Matches(msg, m.keys.Reload):
		if m.params.Sound == waveform.SoundFile && m.params.Path != "" {
			m.player.Stop()
			return m, loadCmd(m.player, m.params, m.params, true)
		}

	case key.Matches(msg, m.keys.Yank):
		if m.series.Len() == 0 {
			cmd := m.showStatusMessage(statusMessage{"Nothing to copy", true})
			return m, cmd
		}
		csv := seriesCSV(m.series)
		// Copy using OSC 52
		te.Copy(csv)
		// Copy using native system clipboard
		_ = clipboard.WriteAll(csv)
		cmd := m.showStatusMessage(statusMessage{fmt.Sprintf("Copied %d points", m.series.Len()), false})
		return m, cmd

	case key.Matches(msg, m.keys.Help):
		m.state = stateHelp
	}

	return m, nil
}

func (m *model) handleLoaded(msg loadedMsg) tea.Cmd {
	if msg.err != nil {
		m.params = msg.previous
		m.status.setError(msg.err)
		return m.showStatusMessage(statusMessage{"Load failed: " + msg.err.Error(), true})
	}
	m.params = msg.params
	m.status.setError(nil)
	m.status.update(m.player)
	m.watcher.follow(msg.params.Path)

	verb := "Loaded"
	if msg.reload {
		verb = "Reloaded"
	}
	return m.showStatusMessage(statusMessage{
		fmt.Sprintf("%s %s (%d Hz, %.2f s)", verb, filepath.Base(msg.params.Path), msg.rate, msg.duration),
		false,
	})
}

// reload stops playback and loads the current file again.
func (m *model) reload(path string) tea.Cmd {
	log.Info("reloading changed file", "path", path)
	m.player.Stop()
	return loadCmd(m.player, m.params, m.params, true)
}

// showStatusMessage shows msg in the status bar until it times out.
func (m *model) showStatusMessage(msg statusMessage) tea.Cmd {
	m.message = msg
	if m.messageTimer != nil {
		m.messageTimer.Stop()
	}
	m.messageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.messageTimer)
}

// quit stops playback and exits once the device is released or the grace
// period passes.
func (m *model) quit() tea.Cmd {
	if m.quitting {
		return nil
	}
	m.quitting = true
	m.watcher.close()
	p := m.player
	return func() tea.Msg {
		p.Quit(context.Background())
		return tea.Quit()
	}
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	switch m.state { //nolint:exhaustive
	case stateBrowser:
		return m.browser.view()
	case stateHelp:
		return m.helpView.View() + "\n" + m.statusBarView()
	default:
		return m.playerView()
	}
}

func (m model) playerView() string {
	var b strings.Builder
	width := max(m.common.width, minPlotWidth)

	fmt.Fprintln(&b, m.paramsView())
	fmt.Fprintln(&b, framedPlot(m.series, width, m.common.cfg.PlotHeight))
	fmt.Fprintln(&b, m.status.progressBar(width-2))
	fmt.Fprintln(&b, m.controls.view())
	fmt.Fprintln(&b, volumeView(m.volume))
	if detail := m.status.detailedStatus(width); detail != "" {
		fmt.Fprintln(&b, detail)
	}
	fmt.Fprintln(&b, m.statusBarView())
	fmt.Fprint(&b, m.help.View(m.keys))
	return b.String()
}

func (m model) paramsView() string {
	sound := m.params.Sound.String()
	if m.params.Sound == waveform.SoundFile {
		sound += " " + filepath.Base(m.params.Path)
	}
	parts := []string{
		labelStyle.Render("sound ") + activeStyle.Render(sound),
		labelStyle.Render("rate ") + valueStyle.Render(fmt.Sprintf("%d Hz", m.params.SampleRate)),
	}
	return strings.Join(parts, "   ")
}

const statusBarHeight = 1

func (m model) statusBarView() string {
	logo := logoView()
	helpNote := statusBarHelpStyle(" ? Help ")
	state := " " + m.status.compactStatus() + " "

	note := m.message.message
	style := statusBarNoteStyle
	if note != "" {
		style = statusBarMessageStyle
		if m.message.isError {
			style = statusBarErrorStyle
		}
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(state)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)

	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(state)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(helpNote),
	)

	return logo + statusBarNoteStyle(state) + style(note) + style(strings.Repeat(" ", padding)) + helpNote
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

func sampleTick() tea.Cmd {
	return tea.Tick(engine.DefaultTickInterval, func(t time.Time) tea.Msg {
		return sampleTickMsg(t)
	})
}

func progressTick() tea.Cmd {
	return tea.Tick(progressInterval, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

// playCmd generates the buffer for p and starts playing it.
func playCmd(player Player, p waveform.Params, session int) tea.Cmd {
	return func() tea.Msg {
		if _, _, err := player.Generate(p); err != nil {
			return startedMsg{session: session, err: err}
		}
		if _, err := player.Start(); err != nil {
			return startedMsg{session: session, err: err}
		}
		return startedMsg{session: session, done: player.Done()}
	}
}

func waitForEnd(session int, done <-chan struct{}, player Player) tea.Cmd {
	return func() tea.Msg {
		<-done
		return playbackEndedMsg{session: session, err: player.Err()}
	}
}

// loadCmd loads the WAV file named by p. previous is restored on failure.
func loadCmd(player Player, p, previous waveform.Params, reload bool) tea.Cmd {
	return func() tea.Msg {
		rate, dur, err := player.Generate(p)
		return loadedMsg{params: p, previous: previous, rate: rate, duration: dur, reload: reload, err: err}
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

// ETC

// seriesCSV formats the plotted points as time_ms,amplitude rows.
func seriesCSV(s engine.Series) string {
	var b strings.Builder
	b.WriteString("time_ms,amplitude\n")
	for p := range s.All() {
		fmt.Fprintf(&b, "%.4f,%.6f\n", p.TimeMS, p.Amplitude)
	}
	return b.String()
}

func sameFile(a, b string) bool {
	if a == b {
		return true
	}
	sa, errA := os.Stat(a)
	sb, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(sa, sb)
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
