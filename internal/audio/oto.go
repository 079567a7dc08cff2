//go:build !nocgo
// +build !nocgo

package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process with a fixed rate, so streams at
// other rates are resampled to it.
const (
	otoSampleRate   = 48000
	otoBufferSize   = 60 * time.Millisecond
	otoReadyTimeout = 5 * time.Second
	otoPollInterval = 20 * time.Millisecond
)

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func otoContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		options := &oto.NewContextOptions{
			SampleRate:   otoSampleRate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
			BufferSize:   otoBufferSize,
		}
		log.Debug("audio: creating oto context", "rate", options.SampleRate, "buffer", options.BufferSize)

		ctx, ready, err := oto.NewContext(options)
		if err != nil {
			otoErr = fmt.Errorf("%w: failed to create oto context: %w", ErrDevice, err)
			return
		}

		select {
		case <-ready:
			otoCtx = ctx
		case <-time.After(otoReadyTimeout):
			otoErr = fmt.Errorf("%w: oto context not ready after %v", ErrDevice, otoReadyTimeout)
		}
	})
	return otoCtx, otoErr
}

// Oto plays streams through the process-wide oto context.
type Oto struct {
	ctx *oto.Context
}

// NewOto initializes the oto context.
func NewOto() (Device, error) {
	ctx, err := otoContext()
	if err != nil {
		return nil, err
	}
	return &Oto{ctx: ctx}, nil
}

// Name implements Device.
func (*Oto) Name() string { return BackendOto }

// Open implements Device.
func (o *Oto) Open(sampleRate, frameSize int, cb Callback) (Stream, error) {
	if err := validateOpen(sampleRate, frameSize); err != nil {
		return nil, err
	}
	if cb == nil {
		return nil, fmt.Errorf("%w: nil callback", ErrDevice)
	}
	if err := o.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDevice, err)
	}

	rs := NewResampler(sampleRate, otoSampleRate)
	capacity := rs.OutputLen(frameSize)
	r := &otoReader{
		cb:        cb,
		frameSize: frameSize,
		rs:        rs,
		scratch:   make([]float32, 0, capacity),
		bytes:     make([]byte, 0, 4*capacity),
	}
	s := &otoStream{
		player: o.ctx.NewPlayer(r),
		reader: r,
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.monitor()

	log.Debug("audio: opened oto stream", "rate", sampleRate, "frame", frameSize)
	return s, nil
}

// otoReader adapts the pull callback to the io.Reader oto consumes. Read is
// only ever called from oto's mixing goroutine.
type otoReader struct {
	cb        Callback
	frameSize int
	rs        *Resampler

	complete bool
	eof      atomic.Bool
	pending  []byte
	scratch  []float32
	bytes    []byte
}

func (r *otoReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.complete {
			r.eof.Store(true)
			return 0, io.EOF
		}

		samples, complete := r.cb(r.frameSize)
		r.complete = complete || len(samples) == 0

		r.scratch = r.rs.Resample(samples, r.scratch[:0])
		r.bytes = encodeFloat32LE(r.scratch, r.bytes[:0])
		r.pending = r.bytes
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func encodeFloat32LE(samples []float32, dst []byte) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}

type otoStream struct {
	player *oto.Player
	reader *otoReader

	active atomic.Bool
	closed atomic.Bool

	mu  sync.Mutex
	err error

	done      chan struct{}
	doneOnce  sync.Once
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// monitor watches the player for the end of the stream and for errors. oto
// offers no completion notification, so it polls.
func (s *otoStream) monitor() {
	defer s.wg.Done()

	ticker := time.NewTicker(otoPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			if err := s.player.Err(); err != nil {
				s.finish(fmt.Errorf("%w: %w", ErrDevice, err))
				return
			}
			if s.active.Load() && s.reader.eof.Load() && !s.player.IsPlaying() {
				s.finish(nil)
				return
			}
		}
	}
}

func (s *otoStream) finish(err error) {
	s.doneOnce.Do(func() {
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			log.Error("audio: oto stream failed", "error", err)
		}
		close(s.done)
	})
}

func (s *otoStream) Start() error {
	if s.closed.Load() {
		return fmt.Errorf("%w: stream closed", ErrDevice)
	}
	s.active.Store(true)
	s.player.Play()
	return nil
}

func (s *otoStream) Stop() error {
	if s.closed.Load() {
		return nil
	}
	s.active.Store(false)
	s.player.Pause()
	return nil
}

func (s *otoStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.active.Store(false)
		close(s.quit)
		s.wg.Wait()
		s.player.Pause()
		if cerr := s.player.Close(); cerr != nil {
			err = fmt.Errorf("%w: %w", ErrDevice, cerr)
		}
	})
	return err
}

func (s *otoStream) IsActive() bool        { return s.active.Load() }
func (s *otoStream) Done() <-chan struct{} { return s.done }

func (s *otoStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
