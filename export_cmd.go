package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/soundvis/internal/waveform"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export OUTPUT",
	Short:   "Write the generated sound to a WAV file",
	Long:    paragraph(fmt.Sprintf("\n%s the tone or designed sound as 16-bit mono PCM WAV, with the output gain applied.", keyword("Export"))),
	Example: paragraph("soundvis export tone.wav\nsoundvis export --sound design --rate 8192 design.wav"),
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := soundParams(nil)
		if err != nil {
			return err
		}
		out, err := exportSound(p, args[0])
		if err != nil {
			return err
		}
		cmd.Println("Wrote", out)
		return nil
	},
}

// exportSound generates p and writes it to path. It returns the absolute
// path written.
func exportSound(p waveform.Params, path string) (string, error) {
	if p.Sound == waveform.SoundFile {
		return "", errors.New("only tone and design sounds can be exported")
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("unable to expand path: %w", err)
	}
	if path, err = filepath.Abs(path); err != nil {
		return "", fmt.Errorf("unable to get absolute path: %w", err)
	}

	buf, err := waveform.Generate(p)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	if err := waveform.WriteFile(path, buf); err != nil {
		return "", err //nolint:wrapcheck
	}
	log.Info("exported sound", "path", path, "sound", p.Sound, "rate", buf.SampleRate(), "seconds", buf.Seconds())
	return path, nil
}
