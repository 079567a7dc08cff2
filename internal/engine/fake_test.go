package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/soundvis/internal/audio"
)

// fakeDevice is a hand-driven audio device. Tests call Pump on the stream
// to simulate the device asking for a frame.
type fakeDevice struct {
	mu       sync.Mutex
	openErr  error
	startErr error
	streams  []*fakeStream
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) Open(sampleRate, frameSize int, cb audio.Callback) (audio.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeStream{
		rate:     sampleRate,
		frame:    frameSize,
		cb:       cb,
		startErr: d.startErr,
		done:     make(chan struct{}),
	}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevice) last() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

type fakeStream struct {
	rate     int
	frame    int
	cb       audio.Callback
	startErr error

	active atomic.Bool
	closed atomic.Bool
	starts atomic.Int32
	stops  atomic.Int32
	closes atomic.Int32

	mu       sync.Mutex
	err      error
	done     chan struct{}
	doneOnce sync.Once
}

func (s *fakeStream) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	if s.closed.Load() {
		return errors.New("closed")
	}
	s.starts.Add(1)
	s.active.Store(true)
	return nil
}

func (s *fakeStream) Stop() error {
	s.stops.Add(1)
	s.active.Store(false)
	return nil
}

func (s *fakeStream) Close() error {
	s.closes.Add(1)
	s.closed.Store(true)
	s.active.Store(false)
	return nil
}

func (s *fakeStream) IsActive() bool        { return s.active.Load() }
func (s *fakeStream) Done() <-chan struct{} { return s.done }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Pump invokes the callback once, as the device would.
func (s *fakeStream) Pump() ([]float32, bool) {
	return s.cb(s.frame)
}

// Drain pumps until the callback reports completion, then marks the
// stream played out.
func (s *fakeStream) Drain() int {
	n := 0
	for {
		n++
		if _, complete := s.Pump(); complete {
			s.Finish(nil)
			return n
		}
	}
}

// Finish closes Done, optionally with a device failure.
func (s *fakeStream) Finish(err error) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// eventually polls cond until it holds or the timeout passes.
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
