package engine

import (
	"errors"

	"github.com/dgnsrekt/soundvis/internal/audio"
	"github.com/dgnsrekt/soundvis/internal/waveform"
)

// Errors surfaced to the UI. Operations that are invalid for the current
// transport state are ignored rather than reported.
var (
	ErrInvalidParameter = waveform.ErrInvalidParameter
	ErrFileInvalid      = waveform.ErrFileInvalid
	ErrDevice           = audio.ErrDevice

	// ErrNoBuffer is returned by Start before anything has been generated.
	ErrNoBuffer = errors.New("no waveform generated")
)
