package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/audiolibrelab/reelcapture/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	pipeline     string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "reelcapture",
	Short: "Segmented recording session tracker for short-form video",
	Long: `ReelCapture tracks a segmented recording session the way a short-form
video camera screen does: record, pause, resume, undo and redo segments
within a fixed maximum length, then hand the capture over for editing.

Sessions can be driven from the terminal (record), scripted (run -p) or
controlled remotely over HTTP (serve). Finished captures are stored as
YAML ledgers in the output directory.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel)

		explicit := cfgFile != ""
		if !explicit {
			cfgFile = os.ExpandEnv("$HOME/.config/reelcapture.yaml")
		}

		// Without a config file the built-in defaults apply, unless the
		// file was asked for explicitly.
		if _, err := os.Stat(cfgFile); errors.Is(err, fs.ErrNotExist) && !explicit {
			slog.Debug("No config file found, using built-in defaults", "path", cfgFile)
			cfg = config.Default()
			return validatePipeline()
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Validate pipeline if provided
		return validatePipeline()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/reelcapture.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=debug with source locations")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(capturesCmd)
	rootCmd.AddCommand(infoCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	slog.SetDefault(slog.New(newLogHandler(os.Stderr, level)))
}

func newLogHandler(w *os.File, level int) slog.Handler {
	var slogLevel slog.Level
	switch level {
	case 0:
		slogLevel = slog.LevelInfo
	case 1, 2:
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level:     slogLevel,
		AddSource: level >= 2,
	}
	return slog.NewTextHandler(w, opts)
}
