package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Initial sound parameters, already substituted by the caller.
	Sound      string
	Frequency  float64
	Duration   float64
	SampleRate int
	// Volume is the slider position, 0 to 200.
	Volume int
	// Path is the WAV file for the file sound, if any.
	Path string

	HomeDir      string `env:"HOME"`
	GlamourStyle string `env:"GLAMOUR_STYLE" envDefault:"auto"`

	// WavDir is where the file browser looks for WAV files. Defaults to the
	// working directory.
	WavDir string `env:"SOUNDVIS_WAV_DIR"`
	// PlotHeight is the number of terminal rows the waveform plot uses.
	PlotHeight int `env:"SOUNDVIS_PLOT_HEIGHT" envDefault:"12"`

	// For debugging the UI
	HighPerformancePager bool `env:"SOUNDVIS_HIGH_PERFORMANCE_PAGER" envDefault:"false"`
}
