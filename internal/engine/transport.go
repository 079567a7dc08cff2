package engine

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/soundvis/internal/waveform"
)

// Transport is the play/pause/stop state machine. It orchestrates the
// renderer, sampler and clock according to the transitions table; events
// that are not legal in the current state are ignored.
type Transport struct {
	renderer *Renderer
	sampler  *Sampler
	clock    *Clock

	mu      sync.Mutex
	state   State
	gen     uint64
	buf     *waveform.Buffer
	done    chan struct{}
	lastErr error
}

// NewTransport creates an idle transport.
func NewTransport(renderer *Renderer, sampler *Sampler, clock *Clock) *Transport {
	done := make(chan struct{})
	close(done)
	return &Transport{
		renderer: renderer,
		sampler:  sampler,
		clock:    clock,
		state:    StateIdle,
		done:     done,
	}
}

// State returns the current state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Buffer returns the buffer of the current or last session.
func (t *Transport) Buffer() *waveform.Buffer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf
}

// Done returns a channel closed when the current session reaches Stopped.
// Outside a session it is already closed.
func (t *Transport) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Err returns the device failure that ended the last session, if any.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Start plays buf from the beginning. It is ignored unless the transport is
// Idle or Stopped. If the device cannot be opened the state is unchanged and
// the error is returned.
func (t *Transport) Start(buf *waveform.Buffer) (time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	to, ok := next(t.state, EventStart)
	if !ok {
		t.ignore(EventStart)
		return time.Time{}, nil
	}
	if buf == nil {
		return time.Time{}, ErrNoBuffer
	}

	t.gen++
	gen := t.gen
	if err := t.renderer.Open(buf, func(err error) { t.end(gen, err) }); err != nil {
		log.Warn("transport: start failed", "state", t.state, "error", err)
		return time.Time{}, err
	}

	t.buf = buf
	t.lastErr = nil
	t.done = make(chan struct{})
	t.sampler.Arm()
	started := t.clock.Start()
	t.enter(to, EventStart)
	return started, nil
}

// Pause suspends the device. Ignored unless Playing.
func (t *Transport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	to, ok := next(t.state, EventPause)
	if !ok {
		t.ignore(EventPause)
		return
	}
	t.renderer.Suspend()
	t.clock.MarkPause()
	t.enter(to, EventPause)
}

// Resume restarts the device from where it paused. Ignored unless Paused.
func (t *Transport) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	to, ok := next(t.state, EventResume)
	if !ok {
		t.ignore(EventResume)
		return
	}
	t.renderer.Resume()
	t.clock.AccumulatePause()
	t.enter(to, EventResume)
}

// Stop closes the device and disarms the sampler. Stopping twice is the
// same as stopping once.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked(EventStop)
}

// end is the renderer's end-of-session hook.
func (t *Transport) end(gen uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		log.Debug("transport: stale session ended", "gen", gen, "current", t.gen)
		return
	}
	if err != nil {
		t.lastErr = err
	}
	t.stopLocked(EventEnd)
}

func (t *Transport) stopLocked(e Event) {
	to, ok := next(t.state, e)
	if !ok {
		t.ignore(e)
		return
	}
	if t.state == StateStopped {
		return
	}
	t.renderer.Close()
	t.sampler.Disarm()
	t.clock.Stop()
	t.enter(to, e)
	close(t.done)
}

func (t *Transport) enter(to State, e Event) {
	log.Debug("transport: transition", "from", t.state, "event", e, "to", to)
	t.state = to
}

func (t *Transport) ignore(e Event) {
	log.Debug("transport: ignored event", "state", t.state, "event", e)
}
