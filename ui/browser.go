package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/gitcha"
	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"
)

var wavExtensions = []string{"*.wav", "*.WAV"}

const browserChrome = 6 // title, filter, blank, pagination, blank, help

type (
	initWavSearchMsg struct {
		dir string
		ch  chan gitcha.SearchResult
	}
	foundWavMsg       gitcha.SearchResult
	wavSearchFinished struct{}
	// fileChosenMsg is sent to the parent when a file is picked.
	fileChosenMsg struct{ path string }
	// browserClosedMsg is sent to the parent when the browser is dismissed.
	browserClosedMsg struct{}
)

// wavFile is a WAV file found under the browse directory.
type wavFile struct {
	path    string
	note    string // path relative to the browse directory
	size    int64
	modtime time.Time
}

type browserModel struct {
	common *commonModel

	dir      string
	files    []wavFile
	filtered []fuzzy.Match
	cursor   int
	loaded   bool
	finder   chan gitcha.SearchResult

	filter    textinput.Model
	filtering bool
	paginator paginator.Model
	spinner   spinner.Model
}

func newBrowserModel(common *commonModel) browserModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = activeStyle

	ti := textinput.New()
	ti.Prompt = "Find: "
	ti.PromptStyle = labelStyle
	ti.Cursor.Style = activeStyle
	ti.CharLimit = 64

	p := paginator.New()
	p.Type = paginator.Dots
	p.ActiveDot = activeStyle.Render("•")
	p.InactiveDot = dimStyle.Render("•")

	return browserModel{
		common:    common,
		filter:    ti,
		paginator: p,
		spinner:   sp,
	}
}

func (m *browserModel) setSize(_, h int) {
	m.paginator.PerPage = max(1, h-browserChrome)
	m.paginator.SetTotalPages(len(m.visible()))
}

// reset clears previous results before a new search.
func (m *browserModel) reset(dir string) {
	m.dir = dir
	m.files = nil
	m.filtered = nil
	m.cursor = 0
	m.loaded = false
	m.filtering = false
	m.filter.Reset()
	m.filter.Blur()
	m.paginator.Page = 0
	m.paginator.SetTotalPages(0)
}

func (m *browserModel) addFile(f wavFile) {
	m.files = append(m.files, f)
	m.applyFilter()
}

// applyFilter fuzzy-matches the filter text against relative paths.
func (m *browserModel) applyFilter() {
	term := strings.TrimSpace(m.filter.Value())
	if term == "" {
		m.filtered = nil
	} else {
		targets := make([]string, len(m.files))
		for i, f := range m.files {
			targets[i] = f.note
		}
		m.filtered = fuzzy.Find(term, targets)
	}
	m.paginator.SetTotalPages(len(m.visible()))
	if m.paginator.Page >= m.paginator.TotalPages {
		m.paginator.Page = max(0, m.paginator.TotalPages-1)
	}
	m.cursor = min(m.cursor, max(0, m.itemsOnPage()-1))
}

// visible returns the files in display order.
func (m browserModel) visible() []wavFile {
	if strings.TrimSpace(m.filter.Value()) == "" {
		return m.files
	}
	out := make([]wavFile, len(m.filtered))
	for i, match := range m.filtered {
		out[i] = m.files[match.Index]
	}
	return out
}

func (m browserModel) itemsOnPage() int {
	return m.paginator.ItemsOnPage(len(m.visible()))
}

// selected returns the file under the cursor.
func (m browserModel) selected() (wavFile, bool) {
	files := m.visible()
	start, _ := m.paginator.GetSliceBounds(len(files))
	i := start + m.cursor
	if i < 0 || i >= len(files) {
		return wavFile{}, false
	}
	return files[i], true
}

func (m browserModel) update(msg tea.Msg) (browserModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case initWavSearchMsg:
		m.finder = msg.ch
		m.dir = msg.dir
		cmds = append(cmds, findNextWav(m.finder))

	case foundWavMsg:
		m.addFile(wavFileFromResult(m.dir, gitcha.SearchResult(msg)))
		cmds = append(cmds, findNextWav(m.finder))

	case wavSearchFinished:
		m.loaded = true
		log.Debug("wav search finished", "dir", m.dir, "files", len(m.files))

	case spinner.TickMsg:
		if !m.loaded {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return browserClosedMsg{} }
		case "/":
			m.filtering = true
			m.cursor = 0
			cmd := m.filter.Focus()
			return m, cmd
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			} else if m.paginator.Page > 0 {
				m.paginator.PrevPage()
				m.cursor = m.itemsOnPage() - 1
			}
		case "down", "j":
			if m.cursor < m.itemsOnPage()-1 {
				m.cursor++
			} else if !m.paginator.OnLastPage() {
				m.paginator.NextPage()
				m.cursor = 0
			}
		case "left", "h", "right", "l":
			m.paginator, _ = m.paginator.Update(msg)
			m.cursor = min(m.cursor, max(0, m.itemsOnPage()-1))
		case "enter":
			if f, ok := m.selected(); ok {
				path := f.path
				return m, func() tea.Msg { return fileChosenMsg{path: path} }
			}
		}
	}

	return m, tea.Batch(cmds...)
}

func (m browserModel) updateFilter(msg tea.KeyMsg) (browserModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.filter.Reset()
		m.filter.Blur()
		m.applyFilter()
		return m, nil
	case "enter", "tab":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case "up", "down":
		m.filtering = false
		m.filter.Blur()
		return m.update(msg)
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	m.paginator.Page = 0
	m.applyFilter()
	return m, cmd
}

func (m browserModel) view() string {
	var b strings.Builder

	title := labelStyle.Render("WAV files in ") + valueStyle.Render(m.dir)
	if !m.loaded {
		title += " " + m.spinner.View()
	}
	fmt.Fprintln(&b, title)

	if m.filtering || m.filter.Value() != "" {
		fmt.Fprintln(&b, m.filter.View())
	} else {
		fmt.Fprintln(&b, dimStyle.Render(fmt.Sprintf("%d files", len(m.files))))
	}
	b.WriteString("\n")

	files := m.visible()
	if len(files) == 0 {
		if m.loaded {
			fmt.Fprintln(&b, subtleStyle.Render("  no wav files found"))
		}
	} else {
		start, end := m.paginator.GetSliceBounds(len(files))
		for i, f := range files[start:end] {
			fmt.Fprintln(&b, m.itemView(f, i == m.cursor))
		}
	}

	if m.paginator.TotalPages > 1 {
		fmt.Fprintln(&b, "\n  "+m.paginator.View())
	}
	fmt.Fprint(&b, "\n"+subtleStyle.Render("  enter load • / find • esc back"))
	return b.String()
}

func (m browserModel) itemView(f wavFile, selected bool) string {
	meta := fmt.Sprintf(" %s  %s", humanize.Bytes(uint64(max(f.size, 0))), humanize.Time(f.modtime)) //nolint:gosec
	width := max(0, m.common.width-len(meta)-4)
	name := truncate.StringWithTail(f.note, uint(width), ellipsis) //nolint:gosec

	if selected {
		return activeStyle.Render("│ "+name) + dimStyle.Render(meta)
	}
	return "  " + name + dimStyle.Render(meta)
}

// COMMANDS

func findWavFiles(dir string) tea.Cmd {
	return func() tea.Msg {
		var err error
		if dir == "" {
			dir, err = os.Getwd()
		} else {
			dir, err = filepath.Abs(dir)
		}
		if err != nil {
			log.Error("error finding wav files", "error", err)
			return errMsg{err}
		}

		log.Debug("searching for wav files", "dir", dir)
		ch, err := gitcha.FindFilesExcept(dir, wavExtensions, nil)
		if err != nil {
			log.Error("error finding wav files", "error", err)
			return errMsg{err}
		}
		return initWavSearchMsg{dir: dir, ch: ch}
	}
}

func findNextWav(ch chan gitcha.SearchResult) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if ok {
			return foundWavMsg(res)
		}
		return wavSearchFinished{}
	}
}

func wavFileFromResult(dir string, res gitcha.SearchResult) wavFile {
	f := wavFile{
		path: res.Path,
		note: stripAbsolutePath(res.Path, dir),
	}
	if res.Info != nil {
		f.size = res.Info.Size()
		f.modtime = res.Info.ModTime()
	}
	return f
}

func stripAbsolutePath(fullPath, cwd string) string {
	fp, _ := filepath.EvalSymlinks(fullPath)
	cp, _ := filepath.EvalSymlinks(cwd)
	if fp == "" || cp == "" {
		return fullPath
	}
	return strings.ReplaceAll(fp, cp+string(os.PathSeparator), "")
}
