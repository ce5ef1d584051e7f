package cmd

import (
	"fmt"
	"time"

	"github.com/audiolibrelab/reelcapture/internal/capture"
	"github.com/audiolibrelab/reelcapture/internal/service"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <capture-id>",
	Short: "Show the segments of a stored capture",
	Long:  `Display a stored capture: when it was made, how long it is and the span of every segment on the progress ring.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := service.New(cfg, cfgFile)
		defer svc.Close()

		record, err := svc.GetCapture(args[0])
		if err != nil {
			return err
		}

		maxDuration := time.Duration(record.MaxDurationSeconds * float64(time.Second))

		fmt.Printf("=== CAPTURE ===\n")
		fmt.Printf("id: %s\n", record.ID)
		fmt.Printf("created_at: %s\n", record.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("duration: %s / %s\n", record.Duration, capture.FormatTime(record.MaxDurationSeconds))
		fmt.Printf("finished: %t\n", record.Finished)

		fmt.Printf("\n=== SEGMENTS (%d) ===\n", len(record.Segments))
		var offset float64
		for i, seg := range record.Segments {
			seconds := seg.Duration(maxDuration)
			fmt.Printf("%d. %6.2f%% -> %6.2f%%  %s  (starts at %s)\n",
				i+1, seg.StartPercent, seg.EndPercent, capture.FormatTime(seconds), capture.FormatTime(offset))
			offset += seconds
		}
		return nil
	},
}
