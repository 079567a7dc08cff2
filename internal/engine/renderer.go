package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/soundvis/internal/audio"
	"github.com/dgnsrekt/soundvis/internal/waveform"
)

// Chunk is the block of volume-scaled samples most recently handed to the
// device. A published chunk is never modified.
type Chunk struct {
	Samples    []float32
	SampleRate int
	// Seq counts chunks published since the renderer was created.
	Seq uint64
}

// Renderer owns the output device for one playback session at a time. The
// device callback reads the buffer at a private cursor, applies the buffer
// gain and the user volume, and publishes the result as the latest Chunk.
type Renderer struct {
	device    audio.Device
	frameSize int

	volume atomic.Uint64 // float64 bits
	chunk  atomic.Pointer[Chunk]
	seq    atomic.Uint64

	mu   sync.Mutex
	sess *session
}

// NewRenderer creates a renderer pulling frameSize samples per callback.
func NewRenderer(device audio.Device, frameSize int) *Renderer {
	return &Renderer{device: device, frameSize: frameSize}
}

// FrameSize returns the callback frame size.
func (r *Renderer) FrameSize() int { return r.frameSize }

// Volume returns the current gain in [0, 1].
func (r *Renderer) Volume() float64 {
	return math.Float64frombits(r.volume.Load())
}

// SetVolume clamps v to [0, 1] and applies it from the next callback on.
func (r *Renderer) SetVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = math.Max(0, math.Min(1, v))
	r.volume.Store(math.Float64bits(v))
}

// Latest returns the most recently published chunk, or nil.
func (r *Renderer) Latest() *Chunk {
	return r.chunk.Load()
}

// Open starts a new session playing buf from its first sample. onEnd is
// called from the supervisor goroutine when the session ends on its own,
// with a nil error at end of stream or the device failure otherwise. It is
// not called after Close.
func (r *Renderer) Open(buf *waveform.Buffer, onEnd func(error)) error {
	if buf == nil || buf.Len() == 0 {
		return ErrNoBuffer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess != nil {
		r.sess.stop()
	}
	r.chunk.Store(nil)

	s := newSession(r, buf, onEnd)
	stream, err := r.device.Open(buf.SampleRate(), r.frameSize, s.fill)
	if err != nil {
		return deviceError("open", err)
	}
	s.stream = stream

	s.running.Store(true)
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return deviceError("start", err)
	}

	r.sess = s
	go s.supervise()

	log.Debug("renderer: opened", "device", r.device.Name(), "rate", buf.SampleRate(), "frame", r.frameSize, "samples", buf.Len())
	return nil
}

// Suspend halts the device without moving the cursor.
func (r *Renderer) Suspend() {
	if s := r.current(); s != nil {
		s.setRunning(false)
	}
}

// Resume restarts the device from the cursor.
func (r *Renderer) Resume() {
	if s := r.current(); s != nil {
		s.setRunning(true)
	}
}

// Close stops the session and releases the device. It does not wait for the
// supervisor to finish; use Wait for that. Close is idempotent.
func (r *Renderer) Close() {
	if s := r.current(); s != nil {
		s.stop()
	}
}

// Wait blocks until the current session's supervisor has released the
// device, or ctx is done.
func (r *Renderer) Wait(ctx context.Context) error {
	s := r.current()
	if s == nil {
		return nil
	}
	select {
	case <-s.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Renderer) current() *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess
}

func (r *Renderer) publish(samples []float32, rate int) {
	r.chunk.Store(&Chunk{
		Samples:    samples,
		SampleRate: rate,
		Seq:        r.seq.Add(1),
	})
}

func deviceError(op string, err error) error {
	if errors.Is(err, audio.ErrDevice) {
		return fmt.Errorf("%s device: %w", op, err)
	}
	return fmt.Errorf("%s device: %w: %w", op, audio.ErrDevice, err)
}

// session is one pass over a buffer. The cursor is touched only by the
// device callback; the flags are atomics so the callback never takes a
// lock. The supervisor sleeps on cond until a flag changes.
type session struct {
	r      *Renderer
	buf    *waveform.Buffer
	stream audio.Stream
	onEnd  func(error)

	cursor int

	running atomic.Bool
	stopped atomic.Bool

	mu       sync.Mutex
	cond     *sync.Cond
	finished bool

	quit     chan struct{}
	quitOnce sync.Once
	exited   chan struct{}
}

func newSession(r *Renderer, buf *waveform.Buffer, onEnd func(error)) *session {
	s := &session{
		r:      r,
		buf:    buf,
		onEnd:  onEnd,
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// fill is the device callback.
func (s *session) fill(frames int) ([]float32, bool) {
	if s.stopped.Load() {
		return nil, true
	}

	window := s.buf.Window(s.cursor, frames)
	gain := float32(s.buf.Gain() * s.r.Volume())
	out := make([]float32, len(window))
	for i, v := range window {
		out[i] = v * gain
	}
	s.cursor += len(window)

	s.r.publish(out, s.buf.SampleRate())
	return out, s.cursor >= s.buf.Len()
}

func (s *session) setRunning(v bool) {
	s.mu.Lock()
	s.running.Store(v)
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *session) stop() {
	s.mu.Lock()
	s.stopped.Store(true)
	s.cond.Broadcast()
	s.mu.Unlock()
	s.quitOnce.Do(func() { close(s.quit) })
}

// supervise mirrors the running flag onto the device until the session is
// stopped, the stream plays out, or the device fails. It always closes the
// device on the way out.
func (s *session) supervise() {
	defer close(s.exited)

	go func() {
		select {
		case <-s.stream.Done():
			s.mu.Lock()
			s.finished = true
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-s.quit:
		}
	}()

	var failure error
	active := true

	s.mu.Lock()
	for {
		for !s.stopped.Load() && !s.finished && s.running.Load() == active {
			s.cond.Wait()
		}
		if s.stopped.Load() || s.finished {
			break
		}

		want := s.running.Load()
		s.mu.Unlock()
		var err error
		if want {
			err = s.stream.Start()
		} else {
			err = s.stream.Stop()
		}
		s.mu.Lock()

		if err != nil {
			failure = deviceError("toggle", err)
			break
		}
		active = want
		log.Debug("renderer: device toggled", "active", active)
	}
	finished := s.finished
	s.mu.Unlock()

	s.quitOnce.Do(func() { close(s.quit) })
	if err := s.stream.Close(); err != nil {
		log.Warn("renderer: closing device", "error", err)
	}

	if s.stopped.Load() {
		log.Debug("renderer: stopped")
		return
	}
	if finished && failure == nil {
		if err := s.stream.Err(); err != nil {
			failure = deviceError("stream", err)
		}
	}
	if failure != nil {
		log.Error("renderer: session failed", "error", failure)
	} else {
		log.Debug("renderer: end of stream")
	}
	if s.onEnd != nil {
		s.onEnd(failure)
	}
}
