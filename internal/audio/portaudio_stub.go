//go:build !portaudio

package audio

import "fmt"

// NewPortAudio is unavailable unless built with -tags portaudio.
func NewPortAudio() (Device, error) {
	return nil, fmt.Errorf("%w: portaudio support not enabled (build with -tags portaudio)", ErrDevice)
}
