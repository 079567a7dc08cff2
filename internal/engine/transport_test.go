package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/soundvis/internal/audio"
)

func newTestTransport(dev *fakeDevice, fc *fakeClock) (*Transport, *Renderer, *Sampler) {
	r := NewRenderer(dev, 256)
	r.SetVolume(DefaultVolume)
	s := NewSampler(r)
	return NewTransport(r, s, NewClock(fc.Now)), r, s
}

// TestTransportSequences tests command sequences against the transition
// table, including the ignored ones.
func TestTransportSequences(t *testing.T) {
	tests := []struct {
		name string
		ops  []string
		want State
	}{
		{"initial", nil, StateIdle},
		{"start", []string{"start"}, StatePlaying},
		{"pause", []string{"start", "pause"}, StatePaused},
		{"resume", []string{"start", "pause", "resume"}, StatePlaying},
		{"stop from playing", []string{"start", "stop"}, StateStopped},
		{"stop from paused", []string{"start", "pause", "stop"}, StateStopped},
		{"restart after stop", []string{"start", "stop", "start"}, StatePlaying},
		{"pause while idle", []string{"pause"}, StateIdle},
		{"resume while idle", []string{"resume"}, StateIdle},
		{"stop while idle", []string{"stop"}, StateIdle},
		{"resume while playing", []string{"start", "resume"}, StatePlaying},
		{"pause while paused", []string{"start", "pause", "pause"}, StatePaused},
		{"start while playing", []string{"start", "start"}, StatePlaying},
		{"start while paused", []string{"start", "pause", "start"}, StatePaused},
		{"pause while stopped", []string{"start", "stop", "pause"}, StateStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{}
			tr, _, _ := newTestTransport(dev, newFakeClock())
			buf := mustBuffer(t, ramp(4096), 4096)
			defer tr.Stop()

			for _, op := range tt.ops {
				switch op {
				case "start":
					if _, err := tr.Start(buf); err != nil {
						t.Fatalf("Start() error = %v", err)
					}
				case "pause":
					tr.Pause()
				case "resume":
					tr.Resume()
				case "stop":
					tr.Stop()
				}
			}
			if got := tr.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestTransportStartEffects tests what start does to the collaborators.
func TestTransportStartEffects(t *testing.T) {
	dev := &fakeDevice{}
	fc := newFakeClock()
	tr, r, s := newTestTransport(dev, fc)
	buf := mustBuffer(t, ramp(2048), 4096)

	started, err := tr.Start(buf)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Stop()

	if !started.Equal(fc.Now()) {
		t.Errorf("start time = %v, want %v", started, fc.Now())
	}
	if !s.armed.Load() {
		t.Error("sampler not armed")
	}
	if len(dev.streams) != 1 || !dev.last().IsActive() {
		t.Error("device not opened and started")
	}
	if r.Latest() != nil {
		t.Error("stale chunk visible after start")
	}
	if tr.Buffer() != buf {
		t.Error("Buffer() is not the playing buffer")
	}
	select {
	case <-tr.Done():
		t.Error("Done() closed while playing")
	default:
	}
}

// TestTransportStartCursorReset tests that every start replays from the
// first sample.
func TestTransportStartCursorReset(t *testing.T) {
	dev := &fakeDevice{}
	tr, _, _ := newTestTransport(dev, newFakeClock())
	buf := mustBuffer(t, ramp(2048), 4096)

	for i := 0; i < 2; i++ {
		if _, err := tr.Start(buf); err != nil {
			t.Fatal(err)
		}
		out, _ := dev.last().Pump()
		if out[0] != 0 {
			t.Errorf("run %d: first sample = %v, want 0", i, out[0])
		}
		dev.last().Pump()
		tr.Stop()
	}
}

// TestTransportStopIdempotent tests that a second stop changes nothing.
func TestTransportStopIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	fc := newFakeClock()
	tr, _, s := newTestTransport(dev, fc)

	if _, err := tr.Start(mustBuffer(t, ramp(2048), 4096)); err != nil {
		t.Fatal(err)
	}
	fc.Advance(time.Second)

	tr.Stop()
	state, elapsed, done := tr.State(), tr.clock.Elapsed(), tr.Done()
	eventually(t, time.Second, func() bool { return dev.last().closes.Load() == 1 }, "device closed")

	fc.Advance(time.Second)
	tr.Stop()

	if tr.State() != state || tr.clock.Elapsed() != elapsed || tr.Done() != done {
		t.Error("second Stop changed observable state")
	}
	if s.armed.Load() {
		t.Error("sampler armed after stop")
	}
	time.Sleep(10 * time.Millisecond)
	if got := dev.last().closes.Load(); got != 1 {
		t.Errorf("device closed %d times, want 1", got)
	}
	select {
	case <-done:
	default:
		t.Error("Done() not closed after stop")
	}
}

// TestTransportDeviceError tests that a failed open leaves the state alone.
func TestTransportDeviceError(t *testing.T) {
	dev := &fakeDevice{openErr: errors.New("no output device")}
	tr, _, s := newTestTransport(dev, newFakeClock())

	_, err := tr.Start(mustBuffer(t, ramp(1024), 4096))
	if !errors.Is(err, audio.ErrDevice) {
		t.Fatalf("Start() error = %v, want ErrDevice", err)
	}
	if tr.State() != StateIdle {
		t.Errorf("State() = %v, want idle", tr.State())
	}
	if s.armed.Load() {
		t.Error("sampler armed after failed start")
	}

	if _, err := tr.Start(nil); !errors.Is(err, ErrNoBuffer) {
		t.Errorf("Start(nil) error = %v, want ErrNoBuffer", err)
	}
}

// TestTransportEndOfStream tests the autonomous Playing -> Stopped move.
func TestTransportEndOfStream(t *testing.T) {
	dev := &fakeDevice{}
	tr, _, s := newTestTransport(dev, newFakeClock())

	if _, err := tr.Start(mustBuffer(t, ramp(1000), 4096)); err != nil {
		t.Fatal(err)
	}
	done := tr.Done()
	dev.last().Drain()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("transport did not stop at end of stream")
	}
	if tr.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", tr.State())
	}
	if s.armed.Load() {
		t.Error("sampler still armed")
	}
	if tr.Err() != nil {
		t.Errorf("Err() = %v, want nil", tr.Err())
	}
}

// TestTransportMidStreamFailure tests fallback to Stopped with the error
// retained.
func TestTransportMidStreamFailure(t *testing.T) {
	dev := &fakeDevice{}
	tr, _, _ := newTestTransport(dev, newFakeClock())

	if _, err := tr.Start(mustBuffer(t, ramp(8192), 4096)); err != nil {
		t.Fatal(err)
	}
	tr.Pause()
	dev.last().Finish(errors.New("underrun"))

	eventually(t, time.Second, func() bool { return tr.State() == StateStopped }, "stopped after failure")
	if !errors.Is(tr.Err(), audio.ErrDevice) {
		t.Errorf("Err() = %v, want ErrDevice", tr.Err())
	}
}

// TestTransportStaleEnd tests that the end of an old session does not stop
// a newer one.
func TestTransportStaleEnd(t *testing.T) {
	dev := &fakeDevice{}
	tr, _, _ := newTestTransport(dev, newFakeClock())
	buf := mustBuffer(t, ramp(1024), 4096)

	if _, err := tr.Start(buf); err != nil {
		t.Fatal(err)
	}
	tr.Stop()
	if _, err := tr.Start(buf); err != nil {
		t.Fatal(err)
	}

	gen := tr.gen
	tr.end(gen-1, nil)

	if tr.State() != StatePlaying {
		t.Errorf("State() = %v after stale end, want playing", tr.State())
	}
	tr.Stop()
}
