//go:build portaudio

package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

var (
	paOnce sync.Once
	paErr  error
)

// PortAudio opens streams on the default PortAudio output device. Unlike
// oto it runs each stream at the buffer's own rate.
type PortAudio struct{}

// NewPortAudio initializes the PortAudio library once per process.
func NewPortAudio() (Device, error) {
	paOnce.Do(func() {
		if err := portaudio.Initialize(); err != nil {
			paErr = fmt.Errorf("%w: failed to initialize portaudio: %w", ErrDevice, err)
		}
	})
	if paErr != nil {
		return nil, paErr
	}
	return &PortAudio{}, nil
}

// Name implements Device.
func (*PortAudio) Name() string { return BackendPortAudio }

// Open implements Device.
func (*PortAudio) Open(sampleRate, frameSize int, cb Callback) (Stream, error) {
	if err := validateOpen(sampleRate, frameSize); err != nil {
		return nil, err
	}
	if cb == nil {
		return nil, fmt.Errorf("%w: nil callback", ErrDevice)
	}

	s := &paStream{cb: cb, done: make(chan struct{})}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), frameSize, s.process)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open stream: %w", ErrDevice, err)
	}
	s.stream = stream

	log.Debug("audio: opened portaudio stream", "rate", sampleRate, "frame", frameSize)
	return s, nil
}

type paStream struct {
	stream *portaudio.Stream
	cb     Callback

	active   atomic.Bool
	closed   atomic.Bool
	draining atomic.Bool

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

// process runs on the PortAudio thread. Once the final chunk has been
// handed over the next buffer is silence and marks the stream done.
func (s *paStream) process(out []float32) {
	if s.draining.Load() {
		clear(out)
		s.doneOnce.Do(func() { close(s.done) })
		return
	}

	samples, complete := s.cb(len(out))
	n := copy(out, samples)
	clear(out[n:])
	if complete {
		s.draining.Store(true)
	}
}

func (s *paStream) Start() error {
	if s.closed.Load() {
		return fmt.Errorf("%w: stream closed", ErrDevice)
	}
	if s.active.Load() {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("%w: error starting stream: %w", ErrDevice, err)
	}
	s.active.Store(true)
	return nil
}

func (s *paStream) Stop() error {
	if !s.active.Load() || s.closed.Load() {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("%w: error stopping stream: %w", ErrDevice, err)
	}
	s.active.Store(false)
	return nil
}

func (s *paStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if serr := s.Stop(); serr != nil {
			err = serr
		}
		s.closed.Store(true)
		if cerr := s.stream.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: error closing stream: %w", ErrDevice, cerr)
		}
	})
	return err
}

func (s *paStream) IsActive() bool        { return s.active.Load() }
func (s *paStream) Done() <-chan struct{} { return s.done }
func (s *paStream) Err() error            { return nil }
