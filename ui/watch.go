package ui

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// reloadInterval is the minimum time between two reloads of the same file.
// Editors and encoders often write a file in several bursts.
const reloadInterval = 500 * time.Millisecond

// fileChangedMsg reports a write to a watched WAV file.
type fileChangedMsg struct{ path string }

// reloadDueMsg fires when a reload deferred by the limiter may run.
type reloadDueMsg struct{ path string }

// fileWatcher follows the loaded WAV file. Only one watchCmd reads the
// event channel at a time; the model re-issues it after every message.
type fileWatcher struct {
	watcher *fsnotify.Watcher
	limiter *rate.Limiter
	dir     string
	pending bool
}

func newFileWatcher() *fileWatcher {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
	}
	return &fileWatcher{
		watcher: w,
		limiter: rate.NewLimiter(rate.Every(reloadInterval), 1),
	}
}

// follow switches the watch to the directory holding path.
func (w *fileWatcher) follow(path string) {
	if w.watcher == nil {
		return
	}
	dir := filepath.Dir(path)
	if dir == w.dir {
		return
	}
	w.unwatch()
	if err := w.watcher.Add(dir); err != nil {
		log.Error("error adding dir to fsnotify watcher", "dir", dir, "error", err)
		return
	}
	w.dir = dir
	log.Info("fsnotify watching dir", "dir", dir)
}

func (w *fileWatcher) unwatch() {
	if w.watcher == nil || w.dir == "" {
		return
	}
	if err := w.watcher.Remove(w.dir); err != nil {
		log.Debug("fsnotify fail to unwatch dir", "dir", w.dir, "error", err)
	}
	w.dir = ""
}

// schedule decides what to do with a write to path. It reports true when
// the file may be reloaded right away. Otherwise the returned command
// delivers a reloadDueMsg once the limiter allows it, so the last write of
// a burst is always loaded. Writes that arrive while a reload is pending
// are covered by it and return nil.
func (w *fileWatcher) schedule(path string) (bool, tea.Cmd) {
	if w.pending {
		return false, nil
	}
	r := w.limiter.Reserve()
	d := r.Delay()
	if d == 0 {
		return true, nil
	}
	w.pending = true
	log.Debug("deferring reload", "path", path, "delay", d)
	return false, tea.Tick(d, func(time.Time) tea.Msg {
		return reloadDueMsg{path: path}
	})
}

// due clears the pending reload.
func (w *fileWatcher) due() {
	w.pending = false
}

func (w *fileWatcher) close() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}

// watchCmd waits for the next write to a WAV file in the watched directory.
func (w *fileWatcher) watchCmd() tea.Cmd {
	if w.watcher == nil {
		return nil
	}
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return nil
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
				return fileChangedMsg{path: event.Name}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return nil
				}
				log.Debug("fsnotify error", "error", err)
			}
		}
	}
}
