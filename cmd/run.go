package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/audiolibrelab/reelcapture/internal/capture"
	"github.com/audiolibrelab/reelcapture/internal/service"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive a capture session from a scripted list of steps",
	Long: `Execute the steps given with -p in order, waiting --interval between
them so recording time accrues. Steps: ` + validStepsHelp + `.

Example: reelcapture run -p stttx --interval 2s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pipeline == "" {
			return fmt.Errorf("no pipeline specified, use -p flag (e.g., -p stx)")
		}
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 0 {
			return fmt.Errorf("--interval must not be negative")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := service.New(cfg, cfgFile)
		defer svc.Close()

		return runPipeline(ctx, svc, strings.ToLower(pipeline), interval)
	},
}

func runPipeline(ctx context.Context, svc service.Service, steps string, interval time.Duration) error {
	runes := []rune(steps)
	for i, step := range runes {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("pipeline interrupted before step %d: %w", i+1, ctx.Err())
			case <-time.After(interval):
			}
		}

		fmt.Printf("Pipeline: executing step %d/%d: '%c' (%s)...\n", i+1, len(runes), step, stepNames[step])
		outcome, err := executeStep(svc, step)
		if err != nil {
			return fmt.Errorf("pipeline step '%c' failed: %w", step, err)
		}
		fmt.Printf("Pipeline: %s\n", outcome)
	}

	status := svc.GetStatus()
	fmt.Printf("Pipeline: done, %s %s / %s\n", status.Phase,
		capture.FormatTime(status.TotalElapsedSeconds), capture.FormatTime(status.MaxDurationSeconds))
	return nil
}

func init() {
	runCmd.Flags().StringVarP(&pipeline, "pipeline", "p", "", "pipeline steps: "+validStepsHelp+" (e.g., 'sttx')")
	runCmd.Flags().Duration("interval", time.Second, "wait between steps")
}
