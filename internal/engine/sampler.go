package engine

import (
	"iter"
	"slices"
	"sync/atomic"
)

// Point is one plotted sample: milliseconds from the start of the chunk and
// the volume-scaled amplitude.
type Point struct {
	TimeMS    float64
	Amplitude float64
}

// Series is a lazy view of one published chunk as plot points. It can be
// iterated any number of times.
type Series struct {
	samples []float32
	rate    int
}

// NewSeries views samples recorded at rate as a series. The slice is not
// copied.
func NewSeries(samples []float32, rate int) Series {
	return Series{samples: samples, rate: rate}
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.samples) }

// At returns point i. Times follow linspace(0, 1000*len/rate, len).
func (s Series) At(i int) Point {
	n := len(s.samples)
	var t float64
	if n > 1 {
		span := 1000 * float64(n) / float64(s.rate)
		t = span * float64(i) / float64(n-1)
	}
	return Point{TimeMS: t, Amplitude: float64(s.samples[i])}
}

// All yields every point in order.
func (s Series) All() iter.Seq[Point] {
	return func(yield func(Point) bool) {
		for i := range s.samples {
			if !yield(s.At(i)) {
				return
			}
		}
	}
}

// Points collects the series into a slice.
func (s Series) Points() []Point {
	return slices.Collect(s.All())
}

// chunkSource is the renderer side the sampler reads from.
type chunkSource interface {
	Latest() *Chunk
}

// Sampler turns the latest published chunk into plot points. It is polled
// by the UI on a fixed tick and keeps no state between calls.
type Sampler struct {
	source chunkSource
	armed  atomic.Bool
}

// NewSampler creates a disarmed sampler over source.
func NewSampler(source chunkSource) *Sampler {
	return &Sampler{source: source}
}

// Arm enables sampling.
func (s *Sampler) Arm() { s.armed.Store(true) }

// Disarm disables sampling; Sample reports nothing until re-armed.
func (s *Sampler) Disarm() { s.armed.Store(false) }

// Sample returns the latest chunk as a series. It reports false when
// disarmed or when no chunk has been published yet, in which case the
// caller should keep the previous plot.
func (s *Sampler) Sample() (Series, bool) {
	if !s.armed.Load() {
		return Series{}, false
	}
	c := s.source.Latest()
	if c == nil || len(c.Samples) == 0 || c.SampleRate <= 0 {
		return Series{}, false
	}
	return Series{samples: c.Samples, rate: c.SampleRate}, true
}
