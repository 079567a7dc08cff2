package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Null is a software device that paces callbacks on the wall clock at the
// stream's sample rate and discards the samples. It is used when no sound
// hardware is available and in tests.
type Null struct{}

// NewNull returns a null device.
func NewNull() *Null { return &Null{} }

// Name implements Device.
func (*Null) Name() string { return BackendNull }

// Open implements Device.
func (*Null) Open(sampleRate, frameSize int, cb Callback) (Stream, error) {
	if err := validateOpen(sampleRate, frameSize); err != nil {
		return nil, err
	}
	if cb == nil {
		return nil, fmt.Errorf("%w: nil callback", ErrDevice)
	}

	s := &nullStream{
		cb:        cb,
		frameSize: frameSize,
		period:    time.Duration(frameSize) * time.Second / time.Duration(sampleRate),
		done:      make(chan struct{}),
		quit:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

type nullStream struct {
	cb        Callback
	frameSize int
	period    time.Duration

	active atomic.Bool
	closed atomic.Bool

	done      chan struct{}
	doneOnce  sync.Once
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// run simulates a device pulling one frame per period. After the final
// read it waits one more period for the tail to "play" before closing Done.
func (s *nullStream) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	draining := false
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			if !s.active.Load() {
				continue
			}
			if draining {
				s.doneOnce.Do(func() { close(s.done) })
				return
			}
			_, complete := s.cb(s.frameSize)
			draining = complete
		}
	}
}

func (s *nullStream) Start() error {
	if s.closed.Load() {
		return fmt.Errorf("%w: stream closed", ErrDevice)
	}
	s.active.Store(true)
	return nil
}

func (s *nullStream) Stop() error {
	s.active.Store(false)
	return nil
}

func (s *nullStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.active.Store(false)
		close(s.quit)
		s.wg.Wait()
	})
	return nil
}

func (s *nullStream) IsActive() bool        { return s.active.Load() }
func (s *nullStream) Done() <-chan struct{} { return s.done }
func (s *nullStream) Err() error            { return nil }
