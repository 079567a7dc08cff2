// Package engine synchronizes audio playback with a live waveform plot. An
// Engine composes a Renderer (device callback and chunk publication), a
// Sampler (plot points for the UI tick), a Clock (elapsed time across
// pauses) and a Transport (the state machine driving them).
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/soundvis/internal/audio"
	"github.com/dgnsrekt/soundvis/internal/cache"
	"github.com/dgnsrekt/soundvis/internal/waveform"
)

// Defaults for Config.
const (
	DefaultFrameSize    = 2048
	MinFrameSize        = 256
	MaxFrameSize        = 8192
	DefaultQuitGrace    = time.Second
	DefaultTickInterval = 100 * time.Millisecond
	DefaultVolume       = 0.25
)

// Config configures an Engine.
type Config struct {
	// FrameSize is the number of samples pulled per device callback.
	FrameSize int
	// QuitGrace bounds how long Quit waits for the device to close.
	QuitGrace time.Duration
	// Volume is the initial gain in [0, 1].
	Volume float64
	// CacheBytes bounds the memory kept for generated tones and designs.
	CacheBytes int64
	// Now overrides the clock source. Tests only.
	Now func() time.Time
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FrameSize:  DefaultFrameSize,
		QuitGrace:  DefaultQuitGrace,
		Volume:     DefaultVolume,
		CacheBytes: cache.DefaultCapacity,
	}
}

func (c Config) withDefaults() Config {
	if c.FrameSize < MinFrameSize || c.FrameSize > MaxFrameSize {
		if c.FrameSize != 0 {
			log.Warn("engine: frame size out of range, using default", "frame", c.FrameSize, "default", DefaultFrameSize)
		}
		c.FrameSize = DefaultFrameSize
	}
	if c.QuitGrace <= 0 {
		c.QuitGrace = DefaultQuitGrace
	}
	if c.CacheBytes <= 0 {
		c.CacheBytes = cache.DefaultCapacity
	}
	return c
}

// Engine is the surface the UI drives. It holds no UI state and is safe for
// concurrent use.
type Engine struct {
	cfg       Config
	renderer  *Renderer
	sampler   *Sampler
	clock     *Clock
	transport *Transport
	buffers   *cache.BufferCache

	mu  sync.RWMutex
	buf *waveform.Buffer
}

// New creates an idle engine playing through device.
func New(device audio.Device, cfg Config) *Engine {
	cfg = cfg.withDefaults()

	renderer := NewRenderer(device, cfg.FrameSize)
	renderer.SetVolume(cfg.Volume)
	sampler := NewSampler(renderer)
	clock := NewClock(cfg.Now)

	return &Engine{
		cfg:       cfg,
		renderer:  renderer,
		sampler:   sampler,
		clock:     clock,
		transport: NewTransport(renderer, sampler, clock),
		buffers:   cache.New(cfg.CacheBytes),
	}
}

// Generate builds the buffer for the next Start. On failure the previous
// buffer and any playback in progress are left untouched. A session that
// is already playing keeps its own buffer.
func (e *Engine) Generate(p waveform.Params) (sampleRate int, duration float64, err error) {
	buf, err := e.buffers.GetOrGenerate(p)
	if err != nil {
		log.Warn("engine: generate failed", "sound", p.Sound, "error", err)
		return 0, 0, err
	}

	e.mu.Lock()
	e.buf = buf
	e.mu.Unlock()

	stats := e.buffers.Stats()
	log.Info("engine: generated", "sound", p.Sound, "rate", buf.SampleRate(), "seconds", buf.Seconds())
	log.Debug("engine: buffer cache", "items", stats.ItemCount, "bytes", stats.Size,
		"evictions", stats.Evictions, "hit_rate", stats.HitRate())
	return buf.SampleRate(), buf.Seconds(), nil
}

// Buffer returns the last generated buffer, or nil.
func (e *Engine) Buffer() *waveform.Buffer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.buf
}

// PlayingBuffer returns the buffer of the current or last session, or nil
// before the first Start. It differs from Buffer once a new sound has been
// generated while the previous one plays.
func (e *Engine) PlayingBuffer() *waveform.Buffer { return e.transport.Buffer() }

// Start plays the generated buffer from the beginning and returns the
// playback start time. It is ignored while Playing or Paused, in which case
// the zero time is returned.
func (e *Engine) Start() (time.Time, error) {
	buf := e.Buffer()
	if buf == nil {
		return time.Time{}, ErrNoBuffer
	}
	return e.transport.Start(buf)
}

// Pause suspends playback. Ignored unless Playing.
func (e *Engine) Pause() { e.transport.Pause() }

// Resume continues playback. Ignored unless Paused.
func (e *Engine) Resume() { e.transport.Resume() }

// Toggle starts, pauses or resumes depending on the state.
func (e *Engine) Toggle() error {
	switch e.transport.State() {
	case StateIdle, StateStopped:
		_, err := e.Start()
		return err
	case StatePlaying:
		e.Pause()
	case StatePaused:
		e.Resume()
	}
	return nil
}

// Stop ends playback. Idempotent.
func (e *Engine) Stop() { e.transport.Stop() }

// State returns the transport state.
func (e *Engine) State() State { return e.transport.State() }

// Done is closed when the current session reaches Stopped.
func (e *Engine) Done() <-chan struct{} { return e.transport.Done() }

// Err returns the device failure that ended the last session, if any.
func (e *Engine) Err() error { return e.transport.Err() }

// SetVolume sets the gain, clamped to [0, 1].
func (e *Engine) SetVolume(v float64) { e.renderer.SetVolume(v) }

// Volume returns the gain.
func (e *Engine) Volume() float64 { return e.renderer.Volume() }

// FrameSize returns the callback frame size.
func (e *Engine) FrameSize() int { return e.renderer.FrameSize() }

// Sample returns the latest chunk as plot points. It reports false unless
// Playing with a chunk published.
func (e *Engine) Sample() (Series, bool) {
	if e.transport.State() != StatePlaying {
		return Series{}, false
	}
	return e.sampler.Sample()
}

// Elapsed returns playback time excluding pauses.
func (e *Engine) Elapsed() time.Duration { return e.clock.Elapsed() }

// Progress returns Elapsed as a fraction of the playing buffer's duration.
func (e *Engine) Progress() float64 {
	buf := e.transport.Buffer()
	if buf == nil || buf.Duration() <= 0 {
		return 0
	}
	p := float64(e.Elapsed()) / float64(buf.Duration())
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// Quit stops playback and waits up to the configured grace period for the
// device to close. It returns once the device is closed or the wait times
// out; it never blocks longer than the grace period.
func (e *Engine) Quit(ctx context.Context) {
	e.Stop()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.QuitGrace)
	defer cancel()

	if err := e.renderer.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("engine: device did not close within grace period", "grace", e.cfg.QuitGrace)
			return
		}
		log.Warn("engine: quit wait interrupted", "error", err)
		return
	}
	log.Debug("engine: quit")
}
