package waveform

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"
)

// design partials: frequency in Hz and weight.
var designPartials = [...]struct {
	freq   float64
	weight float64
}{
	{325, 0.5},
	{330, 0.1},
	{340, 0.5},
}

// GenerateTone returns floor(sampleRate*duration) samples of a unit sine at
// frequency.
func GenerateTone(frequency float64, sampleRate int, duration float64) (*Buffer, error) {
	if frequency <= 0 || math.IsNaN(frequency) {
		return nil, fmt.Errorf("%w: frequency %v", ErrInvalidParameter, frequency)
	}
	n, err := sampleCount(sampleRate, duration)
	if err != nil {
		return nil, err
	}

	samples := make([]float32, n)
	step := 2 * math.Pi * frequency / float64(sampleRate)
	for i := range samples {
		samples[i] = float32(math.Sin(step * float64(i)))
	}

	log.Debug("waveform: generated tone", "frequency", frequency, "rate", sampleRate, "samples", n)
	return FromSamples(SoundTone, samples, sampleRate, ToneGain)
}

// GenerateDesign returns the fixed 325/330/340 Hz superposition. The sum of
// the weights is 1.1 and the result is not renormalized.
func GenerateDesign(sampleRate int, duration float64) (*Buffer, error) {
	n, err := sampleCount(sampleRate, duration)
	if err != nil {
		return nil, err
	}

	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		var v float64
		for _, p := range designPartials {
			v += p.weight * math.Sin(2*math.Pi*p.freq*t)
		}
		samples[i] = float32(v)
	}

	log.Debug("waveform: generated design", "rate", sampleRate, "samples", n)
	return FromSamples(SoundDesign, samples, sampleRate, DesignGain)
}

func sampleCount(sampleRate int, duration float64) (int, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("%w: sample rate %d", ErrInvalidParameter, sampleRate)
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0, fmt.Errorf("%w: duration %v", ErrInvalidParameter, duration)
	}
	return int(math.Floor(float64(sampleRate) * duration)), nil
}
