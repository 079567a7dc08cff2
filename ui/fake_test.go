package ui

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgnsrekt/soundvis/internal/engine"
	"github.com/dgnsrekt/soundvis/internal/waveform"
)

// fakePlayer records what the model asks of the engine.
type fakePlayer struct {
	mu sync.Mutex

	state     engine.State
	generated []waveform.Params
	genErr    error
	startErr  error
	buf       *waveform.Buffer
	playing   *waveform.Buffer
	done      chan struct{}
	volume    float64
	series    engine.Series
	hasSample bool
	elapsed   time.Duration

	starts, stops, toggles, quits int
}

func newFakePlayer() *fakePlayer {
	done := make(chan struct{})
	close(done)
	return &fakePlayer{done: done}
}

func (f *fakePlayer) Generate(p waveform.Params) (int, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated = append(f.generated, p)
	if f.genErr != nil {
		return 0, 0, f.genErr
	}
	buf, err := waveform.FromSamples(p.Sound, make([]float32, p.SampleRate), p.SampleRate, 1)
	if err != nil {
		return 0, 0, err
	}
	f.buf = buf
	return buf.SampleRate(), buf.Seconds(), nil
}

func (f *fakePlayer) Buffer() *waveform.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf
}

func (f *fakePlayer) PlayingBuffer() *waveform.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakePlayer) FrameSize() int { return engine.DefaultFrameSize }

func (f *fakePlayer) Start() (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buf == nil {
		return time.Time{}, errors.New("no buffer")
	}
	if f.startErr != nil {
		return time.Time{}, f.startErr
	}
	f.starts++
	f.playing = f.buf
	f.state = engine.StatePlaying
	f.done = make(chan struct{})
	return time.Now(), nil
}

func (f *fakePlayer) Toggle() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
	switch f.state {
	case engine.StatePlaying:
		f.state = engine.StatePaused
	case engine.StatePaused:
		f.state = engine.StatePlaying
	}
	return nil
}

func (f *fakePlayer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.state == engine.StatePlaying || f.state == engine.StatePaused {
		f.state = engine.StateStopped
		close(f.done)
	}
}

func (f *fakePlayer) State() engine.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakePlayer) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *fakePlayer) Err() error { return nil }

func (f *fakePlayer) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakePlayer) Sample() (engine.Series, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.series, f.hasSample
}

func (f *fakePlayer) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elapsed
}

func (f *fakePlayer) Progress() float64 { return 0 }

func (f *fakePlayer) Quit(context.Context) {
	f.Stop()
	f.mu.Lock()
	f.quits++
	f.mu.Unlock()
}
