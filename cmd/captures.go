package cmd

import (
	"fmt"

	"github.com/audiolibrelab/reelcapture/internal/service"

	"github.com/spf13/cobra"
)

var capturesCmd = &cobra.Command{
	Use:   "captures",
	Short: "List stored captures",
	Long:  `List the capture ledgers stored in the output directory, newest first.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := service.New(cfg, cfgFile)
		defer svc.Close()

		captures, err := svc.ListCaptures()
		if err != nil {
			return err
		}

		fmt.Printf("Captures in %s (%d found)\n", cfg.Output.Directory, len(captures))
		fmt.Printf("═══════════════════════════════════════\n\n")
		for i, c := range captures {
			state := "paused"
			if c.Finished {
				state = "finished"
			}
			fmt.Printf("  %d. %s  %s  %d segment(s)  %s  %s\n",
				i+1, c.ID, c.Duration, c.SegmentCount, state, c.ModTimeHuman)
		}
		return nil
	},
}
