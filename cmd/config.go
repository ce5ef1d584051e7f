package cmd

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/reelcapture/internal/config"

	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage ReelCapture configuration profiles.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long:  `Display the resolved configuration with inheritance indicators. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if raw, _ := cmd.Flags().GetBool("yaml"); raw {
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("error marshaling config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		}

		inh := cfg.Inheritance
		if inh == nil {
			inh = &config.InheritanceInfo{}
		}

		fmt.Printf("=== RESOLVED CONFIGURATION (%s) ===\n", cfg.Profile)

		fmt.Printf("\n[Recording]\n")
		fmt.Printf("max_duration_seconds: %.1f %s\n", cfg.Recording.MaxDurationSeconds, getInheritanceIndicator(inh.Recording.MaxDuration))
		fmt.Printf("tick_interval_ms: %d %s\n", cfg.Recording.TickIntervalMs, getInheritanceIndicator(inh.Recording.TickInterval))
		fmt.Printf("retain_redo: %t %s\n", cfg.Recording.RetainRedo, getInheritanceIndicator(inh.Recording.RetainRedo))

		fmt.Printf("\n[Output]\n")
		fmt.Printf("directory: %s %s\n", cfg.Output.Directory, getInheritanceIndicator(inh.Output.Directory))

		fmt.Printf("\n[Server]\n")
		fmt.Printf("port: %s %s\n", cfg.Server.Port, getInheritanceIndicator(inh.Server.Port))
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configuration profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := config.ListProfiles(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to list profiles: %w", err)
		}
		for _, name := range profiles {
			marker := "  "
			if name == cfg.Profile {
				marker = "* "
			}
			fmt.Println(marker + name)
		}
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use <profile>",
	Short: "Make a profile the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.ToLower(args[0])
		if err := config.UpdateActiveConfig(cfgFile, name); err != nil {
			return fmt.Errorf("failed to activate profile: %w", err)
		}
		fmt.Printf("Active profile is now '%s'\n", name)
		return nil
	},
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	case "global":
		return "[global]"
	case "":
		return "[built-in]"
	default:
		return "[unknown]"
	}
}

func init() {
	configShowCmd.Flags().Bool("yaml", false, "print the resolved configuration as YAML")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configUseCmd)
}
