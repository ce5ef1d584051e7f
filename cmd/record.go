package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/audiolibrelab/reelcapture/internal/capture"
	"github.com/audiolibrelab/reelcapture/internal/service"
	"github.com/audiolibrelab/reelcapture/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Open the interactive capture screen",
	Long: `Open the terminal capture screen. Space starts a session and toggles
pause, u/r undo and redo the last segment, s stops, n hands the capture
over and g opens the gallery before recording starts.

Quitting in the middle of a session stops it so the capture is stored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The screen owns the terminal, so logs go to a file next to the captures.
		logFile, err := openSessionLog(cfg.Output.Directory)
		if err != nil {
			return err
		}
		defer logFile.Close()
		slog.SetDefault(slog.New(newLogHandler(logFile, verboseLevel)))

		svc := service.New(cfg, cfgFile)
		defer svc.Close()

		slog.Info("Record command started", "profile", cfg.Profile, "max_duration", cfg.MaxDuration())

		program := tea.NewProgram(tui.New(svc, cfg.TickInterval()), tea.WithAltScreen())
		final, err := program.Run()
		if err != nil {
			return fmt.Errorf("capture screen failed: %w", err)
		}

		status := svc.GetStatus()
		if status.Phase == capture.PhaseRecording || status.Phase == capture.PhasePaused {
			if err := svc.StopRecording(); err != nil {
				return fmt.Errorf("failed to stop recording: %w", err)
			}
			status = svc.GetStatus()
		}

		if m, ok := final.(tui.Model); ok && m.LastCapture() != nil {
			fmt.Printf("Continue with capture %s (%s)\n", m.LastCapture().ID, m.LastCapture().Duration)
		} else if status.LastCaptureID != "" {
			fmt.Printf("Capture saved: %s (%s)\n", status.LastCaptureID, capture.FormatTime(status.TotalElapsedSeconds))
		}
		return nil
	},
}

func openSessionLog(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, "reelcapture.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}
