package waveform

import "errors"

// Errors returned while building a sample buffer.
var (
	// ErrInvalidParameter is returned for a non-positive frequency, duration
	// or sample rate, or an unknown sound type.
	ErrInvalidParameter = errors.New("invalid waveform parameter")
	// ErrFileInvalid is returned when a file cannot be decoded as mono
	// 8-bit or 16-bit PCM WAV.
	ErrFileInvalid = errors.New("invalid PCM wav file")
)
