// Package waveform builds the immutable mono sample buffers played by the
// engine: pure tones, the fixed three-tone design, and decoded PCM wav files.
package waveform

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Defaults substituted for missing or out-of-range user input.
const (
	DefaultFrequency  = 223.0
	MinFrequency      = 10.0
	MaxFrequency      = 10000.0
	DefaultDuration   = 5.0
	MinDuration       = 1.0
	DefaultSampleRate = 4096
)

// Output gains applied by the renderer on top of the user volume. The design
// buffer is left un-normalized (peak 1.1) and is tamed here instead.
const (
	ToneGain   = 1.0
	DesignGain = 0.5
	FileGain   = 1.0
)

// SupportedRates lists the sample rates the UI offers.
var SupportedRates = []int{2048, 4096, 8192, 16384, 32768}

// IsSupportedRate reports whether rate is one of SupportedRates.
func IsSupportedRate(rate int) bool {
	for _, r := range SupportedRates {
		if r == rate {
			return true
		}
	}
	return false
}

// SoundType selects how a buffer is produced.
type SoundType int

const (
	// SoundTone is a single sine at a user frequency.
	SoundTone SoundType = iota
	// SoundDesign is the fixed 325/330/340 Hz superposition.
	SoundDesign
	// SoundFile is a decoded mono PCM wav file.
	SoundFile
)

// String returns the string representation of the sound type.
func (s SoundType) String() string {
	switch s {
	case SoundTone:
		return "tone"
	case SoundDesign:
		return "design"
	case SoundFile:
		return "file"
	default:
		return "unknown"
	}
}

// ParseSoundType parses the names returned by SoundType.String.
func ParseSoundType(s string) (SoundType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tone", "":
		return SoundTone, nil
	case "design":
		return SoundDesign, nil
	case "file":
		return SoundFile, nil
	default:
		return 0, fmt.Errorf("%w: unknown sound type %q", ErrInvalidParameter, s)
	}
}

// Buffer is an immutable block of mono float32 samples. It is shared
// read-only between the UI and the audio callback and replaced wholesale
// whenever the sound changes.
type Buffer struct {
	samples []float32
	rate    int
	gain    float64
	sound   SoundType
}

// FromSamples wraps samples in a new Buffer. The buffer owns samples from
// then on; callers must not modify the slice.
func FromSamples(sound SoundType, samples []float32, sampleRate int, gain float64) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidParameter, sampleRate)
	}
	return &Buffer{samples: samples, rate: sampleRate, gain: gain, sound: sound}, nil
}

// Len returns the number of samples.
func (b *Buffer) Len() int { return len(b.samples) }

// SampleRate returns the rate in Hz.
func (b *Buffer) SampleRate() int { return b.rate }

// Gain returns the fixed output gain for this buffer.
func (b *Buffer) Gain() float64 { return b.gain }

// Sound returns how the buffer was produced.
func (b *Buffer) Sound() SoundType { return b.sound }

// At returns sample i.
func (b *Buffer) At(i int) float32 { return b.samples[i] }

// Window returns up to n samples starting at offset. The returned slice
// aliases the buffer and must not be modified.
func (b *Buffer) Window(offset, n int) []float32 {
	if offset >= len(b.samples) || n <= 0 {
		return nil
	}
	end := offset + n
	if end > len(b.samples) {
		end = len(b.samples)
	}
	return b.samples[offset:end:end]
}

// Seconds returns frames / sample rate.
func (b *Buffer) Seconds() float64 {
	return float64(len(b.samples)) / float64(b.rate)
}

// Duration returns Seconds as a time.Duration.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// Peak returns the largest absolute sample value.
func (b *Buffer) Peak() float64 {
	var peak float64
	for _, s := range b.samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

// Params describes the buffer the user asked for.
type Params struct {
	Sound      SoundType
	Frequency  float64
	Duration   float64
	SampleRate int
	Path       string
}

// Normalize substitutes defaults for out-of-range input: a frequency
// outside [MinFrequency, MaxFrequency], a duration under MinDuration and an
// unsupported sample rate.
func (p Params) Normalize() Params {
	if p.Frequency < MinFrequency || p.Frequency > MaxFrequency || math.IsNaN(p.Frequency) {
		p.Frequency = DefaultFrequency
	}
	if p.Duration < MinDuration || math.IsNaN(p.Duration) || math.IsInf(p.Duration, 0) {
		p.Duration = DefaultDuration
	}
	if !IsSupportedRate(p.SampleRate) {
		p.SampleRate = DefaultSampleRate
	}
	return p
}

// Generate builds the buffer described by p. For SoundFile the sample rate
// and duration come from the file.
func Generate(p Params) (*Buffer, error) {
	switch p.Sound {
	case SoundTone:
		return GenerateTone(p.Frequency, p.SampleRate, p.Duration)
	case SoundDesign:
		return GenerateDesign(p.SampleRate, p.Duration)
	case SoundFile:
		buf, _, _, err := LoadFile(p.Path)
		return buf, err
	default:
		return nil, fmt.Errorf("%w: sound type %d", ErrInvalidParameter, int(p.Sound))
	}
}
