package audio

// Resampler converts a mono stream between sample rates with linear
// interpolation. It carries the last input sample across calls so chunk
// boundaries do not click.
type Resampler struct {
	ratio  float64 // input frames per output frame
	pos    float64 // read position relative to the current chunk; -1 is the carried sample
	last   float32
	primed bool
}

// NewResampler creates a resampler from inRate to outRate.
func NewResampler(inRate, outRate int) *Resampler {
	return &Resampler{ratio: float64(inRate) / float64(outRate)}
}

// Resample appends the resampled form of in to out and returns it.
func (r *Resampler) Resample(in, out []float32) []float32 {
	if len(in) == 0 {
		return out
	}
	if r.ratio == 1 {
		return append(out, in...)
	}
	if !r.primed {
		r.last = in[0]
		r.pos = 0
		r.primed = true
	}

	at := func(i int) float32 {
		if i < 0 {
			return r.last
		}
		return in[i]
	}

	limit := float64(len(in) - 1)
	for r.pos < limit {
		i := int(r.pos)
		if r.pos < 0 {
			i = -1
		}
		frac := float32(r.pos - float64(i))
		s0, s1 := at(i), at(i+1)
		out = append(out, s0+(s1-s0)*frac)
		r.pos += r.ratio
	}

	r.pos -= float64(len(in))
	r.last = in[len(in)-1]
	return out
}

// OutputLen estimates how many samples Resample produces for n inputs.
func (r *Resampler) OutputLen(n int) int {
	return int(float64(n)/r.ratio) + 1
}
