// Package main provides the entry point for the soundvis CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/soundvis/internal/audio"
	"github.com/dgnsrekt/soundvis/internal/engine"
	"github.com/dgnsrekt/soundvis/internal/waveform"
	"github.com/dgnsrekt/soundvis/ui"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// headlessInterval is how often progress is logged without a terminal.
const headlessInterval = 250 * time.Millisecond

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	sound      string
	frequency  float64
	duration   float64
	sampleRate int
	frameSize  int
	volume     int
	backend    string

	rootCmd = &cobra.Command{
		Use:   "soundvis [FILE]",
		Short: "Play a sound and watch its waveform in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nPlay a tone, a designed sound or a WAV file and %s as it plays.", keyword("watch the waveform")),
		),
		Example:          paragraph("soundvis\nsoundvis --frequency 440 --rate 8192\nsoundvis samples/voice.wav"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"wav", "WAV"}, cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// config edits the file, so it may not exist yet.
			if cmd != configCmd && cmd.Flags().Changed("config") {
				if err := readConfigFile(configFile); err != nil {
					return err
				}
			}
			return validateOptions()
		},
		RunE: execute,
	}
)

// readConfigFile replaces the config found in the default places with path.
func readConfigFile(path string) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("unable to expand config path: %w", err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config file %s: %w", path, err)
	}
	log.Debug("Using configuration file", "path", path)
	return nil
}

func validateOptions() error {
	// grab config values from Viper
	sound = viper.GetString("sound")
	frequency = viper.GetFloat64("frequency")
	duration = viper.GetFloat64("duration")
	sampleRate = viper.GetInt("rate")
	frameSize = viper.GetInt("frame-size")
	volume = viper.GetInt("volume")
	backend = viper.GetString("backend")

	if _, err := waveform.ParseSoundType(sound); err != nil {
		return err
	}
	if frameSize < engine.MinFrameSize || frameSize > engine.MaxFrameSize {
		return fmt.Errorf("frame size must be between %d and %d, got %d", engine.MinFrameSize, engine.MaxFrameSize, frameSize)
	}
	if volume < 0 || volume > 200 {
		return fmt.Errorf("volume must be between 0 and 200, got %d", volume)
	}
	switch backend {
	case audio.BackendAuto, audio.BackendOto, audio.BackendPortAudio, audio.BackendNull:
	default:
		return fmt.Errorf("unknown audio backend %q", backend)
	}
	return nil
}

// soundParams builds the sound to play from flags and an optional file
// argument. A file argument always selects the file sound.
func soundParams(args []string) (waveform.Params, error) {
	st, err := waveform.ParseSoundType(sound)
	if err != nil {
		return waveform.Params{}, err
	}
	p := waveform.Params{
		Sound:      st,
		Frequency:  frequency,
		Duration:   duration,
		SampleRate: sampleRate,
	}
	if len(args) > 0 {
		p.Sound = waveform.SoundFile
		p.Path = args[0]
	}
	if p.Path != "" {
		path, err := homedir.Expand(p.Path)
		if err != nil {
			return waveform.Params{}, fmt.Errorf("unable to expand path: %w", err)
		}
		if p.Path, err = filepath.Abs(path); err != nil {
			return waveform.Params{}, fmt.Errorf("unable to get absolute path: %w", err)
		}
	}
	if p.Sound == waveform.SoundFile && p.Path == "" {
		return waveform.Params{}, errors.New("the file sound needs a WAV file argument")
	}

	normalized := p.Normalize()
	if normalized.Frequency != p.Frequency || normalized.Duration != p.Duration || normalized.SampleRate != p.SampleRate {
		log.Warn("substituted defaults for out-of-range input",
			"frequency", normalized.Frequency, "duration", normalized.Duration, "rate", normalized.SampleRate)
	}
	return normalized, nil
}

func newEngine() (*engine.Engine, error) {
	dev, err := audio.New(backend)
	if err != nil {
		return nil, err
	}
	log.Info("using audio device", "device", dev.Name())
	return engine.New(dev, engine.Config{
		FrameSize: frameSize,
		QuitGrace: engine.DefaultQuitGrace,
		Volume:    float64(volume) / 200,
	}), nil
}

func execute(_ *cobra.Command, args []string) error {
	p, err := soundParams(args)
	if err != nil {
		return err
	}
	eng, err := newEngine()
	if err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runHeadless(eng, p)
	}
	return runTUI(eng, p)
}

func runTUI(eng *engine.Engine, p waveform.Params) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	if cfg.GlamourStyle != styles.AutoStyle && styles.DefaultStyles[cfg.GlamourStyle] == nil {
		log.Warn("unknown glamour style, using auto", "style", cfg.GlamourStyle)
		cfg.GlamourStyle = styles.AutoStyle
	}

	cfg.Sound = p.Sound.String()
	cfg.Frequency = p.Frequency
	cfg.Duration = p.Duration
	cfg.SampleRate = p.SampleRate
	cfg.Volume = volume
	cfg.Path = p.Path

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, eng).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// runHeadless plays p once without a UI, logging progress until playback
// ends or the process is interrupted.
func runHeadless(eng *engine.Engine, p waveform.Params) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rate, dur, err := eng.Generate(p)
	if err != nil {
		return err
	}
	if _, err := eng.Start(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "playing %s at %d Hz for %.2f s\n", p.Sound, rate, dur)

	ticker := time.NewTicker(headlessInterval)
	defer ticker.Stop()

	defer func() {
		quitCtx, cancel := context.WithTimeout(context.Background(), engine.DefaultQuitGrace)
		defer cancel()
		eng.Quit(quitCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("interrupted")
			return nil
		case <-eng.Done():
			if err := eng.Err(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "done after %s\n", eng.Elapsed().Round(time.Millisecond))
			return nil
		case <-ticker.C:
			log.Debug("progress", "elapsed", eng.Elapsed(), "progress", eng.Progress())
		}
	}
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	defaultConfigFile := tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", defaultConfigFile, "config file")
	rootCmd.PersistentFlags().StringVar(&sound, "sound", "tone", "sound to play: tone, design or file")
	rootCmd.PersistentFlags().Float64VarP(&frequency, "frequency", "f", waveform.DefaultFrequency, "tone frequency in Hz")
	rootCmd.PersistentFlags().Float64VarP(&duration, "duration", "d", waveform.DefaultDuration, "sound length in seconds")
	rootCmd.PersistentFlags().IntVarP(&sampleRate, "rate", "r", waveform.DefaultSampleRate, "sample rate in Hz (2048, 4096, 8192, 16384 or 32768)")
	rootCmd.Flags().IntVar(&frameSize, "frame-size", engine.DefaultFrameSize, "samples per audio callback")
	rootCmd.Flags().IntVarP(&volume, "volume", "v", 50, "volume from 0 to 200")
	rootCmd.Flags().StringVarP(&backend, "backend", "b", audio.BackendAuto, "audio backend: auto, oto, portaudio or null")

	// Config bindings
	_ = viper.BindPFlag("sound", rootCmd.PersistentFlags().Lookup("sound"))
	_ = viper.BindPFlag("frequency", rootCmd.PersistentFlags().Lookup("frequency"))
	_ = viper.BindPFlag("duration", rootCmd.PersistentFlags().Lookup("duration"))
	_ = viper.BindPFlag("rate", rootCmd.PersistentFlags().Lookup("rate"))
	_ = viper.BindPFlag("frame-size", rootCmd.Flags().Lookup("frame-size"))
	_ = viper.BindPFlag("volume", rootCmd.Flags().Lookup("volume"))
	_ = viper.BindPFlag("backend", rootCmd.Flags().Lookup("backend"))

	viper.SetDefault("sound", "tone")
	viper.SetDefault("frequency", waveform.DefaultFrequency)
	viper.SetDefault("duration", waveform.DefaultDuration)
	viper.SetDefault("rate", waveform.DefaultSampleRate)
	viper.SetDefault("frame-size", engine.DefaultFrameSize)
	viper.SetDefault("volume", 50)
	viper.SetDefault("backend", audio.BackendAuto)

	rootCmd.AddCommand(configCmd, manCmd, exportCmd)
}

// tryLoadConfigFromDefaultPlaces reads the first soundvis.yml found and
// returns its path, or the path where a default one was written.
func tryLoadConfigFromDefaultPlaces() string {
	scope := gap.NewScope(gap.User, "soundvis")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "soundvis")}, dirs...)
	}

	if c := os.Getenv("SOUNDVIS_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("soundvis")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("soundvis")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return used
	}

	configFile = filepath.Join(dirs[0], "soundvis.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
	return configFile
}
