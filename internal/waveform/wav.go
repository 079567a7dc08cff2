package waveform

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// LoadFile decodes a mono 8-bit unsigned or 16-bit signed PCM wav file and
// peak-normalizes it so the largest absolute sample is exactly 1.0. It
// returns the buffer, its sample rate and its duration in seconds. Any
// failure yields ErrFileInvalid and no buffer.
func LoadFile(path string) (*Buffer, int, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %w", ErrFileInvalid, err)
	}
	defer f.Close() //nolint:errcheck

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		if derr := d.Err(); derr != nil {
			return nil, 0, 0, fmt.Errorf("%w: %s: %w", ErrFileInvalid, path, derr)
		}
		return nil, 0, 0, fmt.Errorf("%w: %s: not a wav file", ErrFileInvalid, path)
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, 0, 0, fmt.Errorf("%w: %s: audio format %d is not PCM", ErrFileInvalid, path, d.WavAudioFormat)
	}
	if d.NumChans != 1 {
		return nil, 0, 0, fmt.Errorf("%w: %s: %d channels, want mono", ErrFileInvalid, path, d.NumChans)
	}
	if d.BitDepth != 8 && d.BitDepth != 16 {
		return nil, 0, 0, fmt.Errorf("%w: %s: %d-bit samples, want 8 or 16", ErrFileInvalid, path, d.BitDepth)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %s: %w", ErrFileInvalid, path, err)
	}
	if pcm == nil || len(pcm.Data) == 0 {
		return nil, 0, 0, fmt.Errorf("%w: %s: no frames", ErrFileInvalid, path)
	}
	bytesPerSample := int(d.BitDepth) / 8
	if want := d.PCMSize / bytesPerSample; len(pcm.Data) != want {
		return nil, 0, 0, fmt.Errorf("%w: %s: truncated, read %d of %d frames", ErrFileInvalid, path, len(pcm.Data), want)
	}

	rate := int(d.SampleRate)
	samples := normalize(pcm.Data, int(d.BitDepth))
	buf, err := FromSamples(SoundFile, samples, rate, FileGain)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %s: %w", ErrFileInvalid, path, err)
	}

	log.Debug("waveform: loaded file", "path", path, "rate", rate, "bits", d.BitDepth, "frames", len(samples))
	return buf, rate, buf.Seconds(), nil
}

// normalize converts decoded integer samples to float32 scaled so the peak
// magnitude is 1.0. Unsigned 8-bit samples are centered on zero first. A
// silent buffer is returned as zeros.
func normalize(data []int, bitDepth int) []float32 {
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		f := float64(v - offset)
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	peak := math.Max(math.Abs(lo), math.Abs(hi))

	out := make([]float32, len(data))
	if peak == 0 {
		return out
	}
	for i, v := range data {
		out[i] = float32(float64(v-offset) / peak)
	}
	return out
}

// WriteFile encodes buf as 16-bit mono PCM wav with its output gain applied
// and clipped to [-1, 1].
func WriteFile(path string, buf *Buffer) (err error) {
	if buf == nil || buf.Len() == 0 {
		return errors.New("nothing to write")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("unable to close file: %w", cerr)
		}
	}()

	data := make([]int, buf.Len())
	for i, s := range buf.samples {
		v := math.Max(-1, math.Min(1, float64(s)*buf.gain))
		data[i] = int(math.Round(v * math.MaxInt16))
	}

	enc := wav.NewEncoder(f, buf.rate, 16, 1, wavFormatPCM)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: buf.rate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		return fmt.Errorf("unable to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("unable to finalize wav: %w", err)
	}

	log.Debug("waveform: wrote file", "path", path, "rate", buf.rate, "frames", buf.Len())
	return nil
}
