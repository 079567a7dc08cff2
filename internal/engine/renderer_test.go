package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/soundvis/internal/audio"
	"github.com/dgnsrekt/soundvis/internal/waveform"
)

func mustBuffer(t *testing.T, samples []float32, rate int) *waveform.Buffer {
	t.Helper()
	buf, err := waveform.FromSamples(waveform.SoundFile, samples, rate, 1)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

// TestRendererCursor tests chunk sizes, completion and publication.
func TestRendererCursor(t *testing.T) {
	tests := []struct {
		name      string
		samples   int
		frame     int
		wantCalls int
		lastLen   int
	}{
		{"exact multiple", 1024, 256, 4, 256},
		{"short final chunk", 1000, 256, 4, 232},
		{"shorter than a frame", 100, 256, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{}
			r := NewRenderer(dev, tt.frame)
			r.SetVolume(1)
			if err := r.Open(mustBuffer(t, ramp(tt.samples), 4096), nil); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer r.Close()

			s := dev.last()
			if s.frame != tt.frame || s.rate != 4096 {
				t.Errorf("stream opened at %d/%d", s.rate, s.frame)
			}

			calls, total := 0, 0
			var last []float32
			for {
				out, complete := s.Pump()
				calls++
				total += len(out)
				last = out
				if got := r.Latest(); got == nil || len(got.Samples) != len(out) {
					t.Fatalf("call %d: latest chunk does not match the callback output", calls)
				}
				if complete {
					break
				}
			}
			if calls != tt.wantCalls {
				t.Errorf("callbacks = %d, want %d", calls, tt.wantCalls)
			}
			if total != tt.samples {
				t.Errorf("samples emitted = %d, want %d", total, tt.samples)
			}
			if len(last) != tt.lastLen {
				t.Errorf("final chunk = %d samples, want %d", len(last), tt.lastLen)
			}
		})
	}
}

// TestRendererVolumeLinear tests that doubling the gain doubles every
// emitted sample exactly.
func TestRendererVolumeLinear(t *testing.T) {
	samples := ramp(512)
	for i := range samples {
		samples[i] = samples[i]*2 - 1
	}

	emit := func(volume float64) []float32 {
		dev := &fakeDevice{}
		r := NewRenderer(dev, 512)
		r.SetVolume(volume)
		if err := r.Open(mustBuffer(t, samples, 8192), nil); err != nil {
			t.Fatal(err)
		}
		defer r.Close()
		out, _ := dev.last().Pump()
		return out
	}

	for _, v := range []float64{0.1, 0.15, 0.25, 0.3, 0.5} {
		lo, hi := emit(v), emit(2*v)
		for i := range lo {
			if hi[i] != 2*lo[i] {
				t.Fatalf("volume %v: sample %d = %v, want exactly %v", v, i, hi[i], 2*lo[i])
			}
		}
	}
}

// TestRendererVolumeAppliedNextCallback tests that a volume change lands on
// the next chunk.
func TestRendererVolumeAppliedNextCallback(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRenderer(dev, 4)
	r.SetVolume(1)
	if err := r.Open(mustBuffer(t, []float32{1, 1, 1, 1, 1, 1, 1, 1}, 2048), nil); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	s := dev.last()
	out, _ := s.Pump()
	if out[0] != 1 {
		t.Errorf("first chunk = %v, want 1", out[0])
	}
	r.SetVolume(0.5)
	out, _ = s.Pump()
	if out[0] != 0.5 {
		t.Errorf("second chunk = %v, want 0.5", out[0])
	}
}

// TestRendererSetVolumeClamps tests the [0, 1] range.
func TestRendererSetVolumeClamps(t *testing.T) {
	r := NewRenderer(&fakeDevice{}, 256)
	tests := []struct {
		in, want float64
	}{
		{0.3, 0.3},
		{-1, 0},
		{1.7, 1},
	}
	for _, tt := range tests {
		r.SetVolume(tt.in)
		if got := r.Volume(); got != tt.want {
			t.Errorf("SetVolume(%v): Volume() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestRendererNoTornReads tests that concurrent readers only ever see whole
// chunks from a single callback.
func TestRendererNoTornReads(t *testing.T) {
	const (
		frame  = 256
		frames = 2000
	)
	samples := make([]float32, frame*frames)
	for i := range samples {
		samples[i] = float32(i/frame) / frames
	}

	dev := &fakeDevice{}
	r := NewRenderer(dev, frame)
	r.SetVolume(1)
	if err := r.Open(mustBuffer(t, samples, 32768), nil); err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	s := dev.last()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 4)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				c := r.Latest()
				if c == nil {
					continue
				}
				if len(c.Samples) != frame {
					errs <- errors.New("chunk has wrong length")
					return
				}
				for _, v := range c.Samples {
					if v != c.Samples[0] {
						errs <- errors.New("chunk mixes two callbacks")
						return
					}
				}
			}
		}()
	}

	for {
		if _, complete := s.Pump(); complete {
			break
		}
	}
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// TestRendererOpenErrors tests that device failures map to ErrDevice.
func TestRendererOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		dev  *fakeDevice
	}{
		{"open fails", &fakeDevice{openErr: errors.New("no such device")}},
		{"start fails", &fakeDevice{startErr: errors.New("device busy")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(tt.dev, 256)
			err := r.Open(mustBuffer(t, ramp(1024), 4096), nil)
			if !errors.Is(err, audio.ErrDevice) {
				t.Errorf("Open() error = %v, want ErrDevice", err)
			}
			if s := tt.dev.last(); s != nil && !s.closed.Load() {
				t.Error("stream left open after failed start")
			}
		})
	}
}

// TestRendererSuspendResume tests that the supervisor mirrors the running
// flag onto the device without moving the cursor.
func TestRendererSuspendResume(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRenderer(dev, 4)
	r.SetVolume(1)
	if err := r.Open(mustBuffer(t, ramp(64), 2048), nil); err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	s := dev.last()

	first, _ := s.Pump()

	r.Suspend()
	eventually(t, time.Second, func() bool { return !s.IsActive() }, "device stopped")
	r.Resume()
	eventually(t, time.Second, func() bool { return s.IsActive() }, "device restarted")

	second, _ := s.Pump()
	if second[0] <= first[len(first)-1] {
		t.Errorf("cursor moved backwards: %v then %v", first, second)
	}
	if s.starts.Load() != 2 || s.stops.Load() != 1 {
		t.Errorf("starts/stops = %d/%d, want 2/1", s.starts.Load(), s.stops.Load())
	}
}

// TestRendererCloseIdempotent tests repeated Close and Wait.
func TestRendererCloseIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRenderer(dev, 256)

	r.Close() // nothing open yet

	if err := r.Open(mustBuffer(t, ramp(1024), 4096), nil); err != nil {
		t.Fatal(err)
	}
	s := dev.last()

	r.Close()
	r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := s.closes.Load(); got != 1 {
		t.Errorf("device closed %d times, want 1", got)
	}
	if out, complete := s.Pump(); len(out) != 0 || !complete {
		t.Error("callback kept producing after Close")
	}
}

// TestRendererEndOfStream tests the end hook and device release.
func TestRendererEndOfStream(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRenderer(dev, 256)

	ended := make(chan error, 1)
	if err := r.Open(mustBuffer(t, ramp(1000), 4096), func(err error) { ended <- err }); err != nil {
		t.Fatal(err)
	}
	s := dev.last()
	s.Drain()

	select {
	case err := <-ended:
		if err != nil {
			t.Errorf("end error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("end hook not called")
	}
	if !s.closed.Load() {
		t.Error("device not closed at end of stream")
	}
}

// TestRendererStreamFailure tests that a mid-stream failure reaches the end
// hook as ErrDevice.
func TestRendererStreamFailure(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRenderer(dev, 256)

	ended := make(chan error, 1)
	if err := r.Open(mustBuffer(t, ramp(4096), 4096), func(err error) { ended <- err }); err != nil {
		t.Fatal(err)
	}
	dev.last().Pump()
	dev.last().Finish(errors.New("device unplugged"))

	select {
	case err := <-ended:
		if !errors.Is(err, audio.ErrDevice) {
			t.Errorf("end error = %v, want ErrDevice", err)
		}
	case <-time.After(time.Second):
		t.Fatal("end hook not called")
	}
}
