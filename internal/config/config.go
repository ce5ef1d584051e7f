package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMaxDurationSeconds = 60.0
	DefaultTickIntervalMs     = 100
	DefaultPort               = "8080"

	maxAllowedDurationSeconds = 600.0
	minTickIntervalMs         = 10
	maxTickIntervalMs         = 1000
)

type GlobalsConfig struct {
	Output GlobalOutputConfig `mapstructure:"output" yaml:"output"`
}

type GlobalOutputConfig struct {
	CapturesDirectory string `mapstructure:"captures_directory" yaml:"captures_directory"`
}

type RootConfig struct {
	ActiveConfig string                    `mapstructure:"active_config" yaml:"active_config"`
	Globals      *GlobalsConfig            `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Configs      map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
}

// ConfigProfile is a named profile as written in the file. Unset fields are
// inherited from the default profile.
type ConfigProfile struct {
	Recording RecordingProfile `mapstructure:"recording" yaml:"recording"`
	Output    OutputConfig     `mapstructure:"output" yaml:"output"`
	Server    ServerConfig     `mapstructure:"server" yaml:"server"`
}

type RecordingProfile struct {
	MaxDurationSeconds float64 `mapstructure:"max_duration_seconds" yaml:"max_duration_seconds,omitempty"`
	TickIntervalMs     int     `mapstructure:"tick_interval_ms" yaml:"tick_interval_ms,omitempty"`
	RetainRedo         *bool   `mapstructure:"retain_redo,omitempty" yaml:"retain_redo,omitempty"`
}

// Config is the resolved configuration for one profile.
type Config struct {
	Profile   string          `mapstructure:"-" yaml:"profile"`
	Recording RecordingConfig `mapstructure:"recording" yaml:"recording"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`

	// Internal field to track inheritance information for the info command
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`
}

type RecordingConfig struct {
	MaxDurationSeconds float64 `mapstructure:"max_duration_seconds" yaml:"max_duration_seconds"`
	TickIntervalMs     int     `mapstructure:"tick_interval_ms" yaml:"tick_interval_ms"`
	RetainRedo         bool    `mapstructure:"retain_redo" yaml:"retain_redo"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

type InheritanceInfo struct {
	Recording struct {
		MaxDuration  string // "inherited" or "profile-specific"
		TickInterval string
		RetainRedo   string
	}
	Output struct {
		Directory string
	}
	Server struct {
		Port string
	}
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	return &Config{
		Profile: "default",
		Recording: RecordingConfig{
			MaxDurationSeconds: DefaultMaxDurationSeconds,
			TickIntervalMs:     DefaultTickIntervalMs,
		},
		Output: OutputConfig{
			Directory: filepath.Join(os.Getenv("HOME"), "Videos", "ReelCapture"),
		},
		Server: ServerConfig{Port: DefaultPort},
	}
}

// MaxDuration returns the recording limit as a duration.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Recording.MaxDurationSeconds * float64(time.Second))
}

// TickInterval returns the progress tick interval as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Recording.TickIntervalMs) * time.Millisecond
}

func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	// Profiles inherit from "default" when present, then from built-ins.
	base := Default()
	if configName != "default" {
		if defaultProfile, ok := rootConfig.Configs["default"]; ok {
			base = mergeConfigs(base, defaultProfile)
		}
	}
	selectedConfig := mergeConfigs(base, selectedProfile)
	selectedConfig.Profile = configName

	// Global captures directory takes priority over profile-specific directory
	if rootConfig.Globals != nil && rootConfig.Globals.Output.CapturesDirectory != "" {
		selectedConfig.Output.Directory = rootConfig.Globals.Output.CapturesDirectory
		selectedConfig.Inheritance.Output.Directory = "global"
	}

	selectedConfig.Output.Directory = expandPath(selectedConfig.Output.Directory)

	if err := Validate(selectedConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selectedConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return err
	}
	if _, ok := rootConfig.Configs[newActiveConfig]; !ok {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// ListProfiles returns the profile names defined in the config file, sorted.
func ListProfiles(configFile string) ([]string, error) {
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, err
	}

	profiles := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		profiles = append(profiles, name)
	}
	sort.Strings(profiles)
	return profiles, nil
}

// mergeConfigs applies a profile on top of a resolved base. Zero values in
// the profile mean "inherit".
func mergeConfigs(base *Config, profile *ConfigProfile) *Config {
	result := *base
	result.Inheritance = &InheritanceInfo{}
	result.Inheritance.Recording.MaxDuration = "inherited"
	result.Inheritance.Recording.TickInterval = "inherited"
	result.Inheritance.Recording.RetainRedo = "inherited"
	result.Inheritance.Output.Directory = "inherited"
	result.Inheritance.Server.Port = "inherited"

	if profile == nil {
		return &result
	}

	if profile.Recording.MaxDurationSeconds != 0 {
		result.Recording.MaxDurationSeconds = profile.Recording.MaxDurationSeconds
		result.Inheritance.Recording.MaxDuration = "profile-specific"
	}
	if profile.Recording.TickIntervalMs != 0 {
		result.Recording.TickIntervalMs = profile.Recording.TickIntervalMs
		result.Inheritance.Recording.TickInterval = "profile-specific"
	}
	if profile.Recording.RetainRedo != nil {
		result.Recording.RetainRedo = *profile.Recording.RetainRedo
		result.Inheritance.Recording.RetainRedo = "profile-specific"
	}
	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
		result.Inheritance.Output.Directory = "profile-specific"
	}
	if profile.Server.Port != "" {
		result.Server.Port = profile.Server.Port
		result.Inheritance.Server.Port = "profile-specific"
	}

	return &result
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Validate checks a resolved configuration.
func Validate(cfg *Config) error {
	if cfg.Recording.MaxDurationSeconds <= 0 {
		return fmt.Errorf("recording.max_duration_seconds must be > 0, got: %.2f", cfg.Recording.MaxDurationSeconds)
	}
	if cfg.Recording.MaxDurationSeconds > maxAllowedDurationSeconds {
		return fmt.Errorf("recording.max_duration_seconds must be <= %.0f, got: %.2f", maxAllowedDurationSeconds, cfg.Recording.MaxDurationSeconds)
	}
	if cfg.Recording.TickIntervalMs < minTickIntervalMs || cfg.Recording.TickIntervalMs > maxTickIntervalMs {
		return fmt.Errorf("recording.tick_interval_ms must be between %d and %d, got: %d", minTickIntervalMs, maxTickIntervalMs, cfg.Recording.TickIntervalMs)
	}
	if strings.TrimSpace(cfg.Output.Directory) == "" {
		return fmt.Errorf("output.directory is required")
	}
	if cfg.Server.Port != "" && !isNumeric(cfg.Server.Port) {
		return fmt.Errorf("server.port must be numeric, got: %s", cfg.Server.Port)
	}
	return nil
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("REELCAPTURE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if len(rootConfig.Configs) == 0 {
		return nil, fmt.Errorf("configs section is required and cannot be empty")
	}

	for name, profile := range rootConfig.Configs {
		if err := validateProfile(profile); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", name, err)
		}
	}

	return &rootConfig, nil
}

// validateProfile checks the values a profile sets explicitly.
func validateProfile(profile *ConfigProfile) error {
	if profile == nil {
		return nil
	}
	if profile.Recording.MaxDurationSeconds < 0 {
		return fmt.Errorf("recording.max_duration_seconds must be > 0, got: %.2f", profile.Recording.MaxDurationSeconds)
	}
	if profile.Recording.TickIntervalMs < 0 {
		return fmt.Errorf("recording.tick_interval_ms must be > 0, got: %d", profile.Recording.TickIntervalMs)
	}
	return nil
}
