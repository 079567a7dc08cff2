package audio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrDevice is returned when an output device cannot be opened or fails
// while streaming.
var ErrDevice = errors.New("audio device error")

// Callback is invoked by the device whenever it needs more audio. It
// returns at most frames mono samples and reports whether this was the
// final read. It must not block.
type Callback func(frames int) (samples []float32, complete bool)

// Device opens output streams.
type Device interface {
	// Open creates a stopped stream at sampleRate that pulls frameSize
	// samples per callback.
	Open(sampleRate, frameSize int, cb Callback) (Stream, error)
	// Name identifies the backend.
	Name() string
}

// Stream is an open output stream.
type Stream interface {
	// Start begins or resumes pulling from the callback.
	Start() error
	// Stop halts the stream without losing the callback position.
	Stop() error
	// Close releases the stream. It is safe to call more than once.
	Close() error
	// IsActive reports whether the stream is started.
	IsActive() bool
	// Done is closed once the final samples have played out or the stream
	// failed.
	Done() <-chan struct{}
	// Err returns the failure that closed Done, if any.
	Err() error
}

// Backend names accepted by New.
const (
	BackendAuto      = "auto"
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
	BackendNull      = "null"
)

// New returns the device for backend. BackendAuto tries oto and falls back
// to the null device when no sound hardware is available.
func New(backend string) (Device, error) {
	switch strings.ToLower(backend) {
	case BackendOto:
		return NewOto()
	case BackendPortAudio:
		return NewPortAudio()
	case BackendNull:
		return NewNull(), nil
	case BackendAuto, "":
		dev, err := NewOto()
		if err != nil {
			log.Warn("audio: falling back to null device", "error", err)
			return NewNull(), nil
		}
		return dev, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrDevice, backend)
	}
}

func validateOpen(sampleRate, frameSize int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrDevice, sampleRate)
	}
	if frameSize <= 0 {
		return fmt.Errorf("%w: frame size must be positive, got %d", ErrDevice, frameSize)
	}
	return nil
}
