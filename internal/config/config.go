package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxDeviceNameLen is the longest advertised device name the link accepts.
const MaxDeviceNameLen = 31

// Config holds all application configuration.
type Config struct {
	DeviceName string     `yaml:"device_name"`
	Link       LinkConfig `yaml:"link"`
	LogLevel   string     `yaml:"log_level"`
}

// LinkConfig holds transport timing and fragmentation settings.
type LinkConfig struct {
	FragmentSize    int `yaml:"fragment_size"`     // bytes per notify fragment
	FragmentDelayMs int `yaml:"fragment_delay_ms"` // pacing between fragments
	DebounceMs      int `yaml:"debounce_ms"`       // connect/disconnect debounce
	PollIntervalMs  int `yaml:"poll_interval_ms"`  // lifecycle poll cadence
	StatusIntervalS int `yaml:"status_interval_s"` // periodic status message
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "blelink")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		DeviceName: "BLE-LINK",
		Link: LinkConfig{
			FragmentSize:    20,
			FragmentDelayMs: 2,
			DebounceMs:      300,
			PollIntervalMs:  5,
			StatusIntervalS: 5,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// WriteDefault writes a commented default config file to the default path,
// creating the directory if needed. Returns the path written.
func WriteDefault() (string, error) {
	dir := DefaultConfigDir()
	if dir == "" {
		return "", fmt.Errorf("cannot determine home directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	path := DefaultConfigPath()
	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("marshaling default config: %w", err)
	}
	content := "# blelink configuration\n" + string(data)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.DeviceName == "" {
		return fmt.Errorf("device_name must not be empty")
	}
	if len(c.DeviceName) > MaxDeviceNameLen {
		return fmt.Errorf("device_name must be at most %d bytes, got %d",
			MaxDeviceNameLen, len(c.DeviceName))
	}
	if c.Link.FragmentSize <= 0 {
		return fmt.Errorf("link.fragment_size must be > 0")
	}
	if c.Link.FragmentDelayMs < 0 {
		return fmt.Errorf("link.fragment_delay_ms must be >= 0")
	}
	if c.Link.DebounceMs <= 0 {
		return fmt.Errorf("link.debounce_ms must be > 0")
	}
	if c.Link.PollIntervalMs <= 0 {
		return fmt.Errorf("link.poll_interval_ms must be > 0")
	}
	if c.Link.StatusIntervalS <= 0 {
		return fmt.Errorf("link.status_interval_s must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}
	return nil
}

// PollInterval returns the lifecycle poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Link.PollIntervalMs) * time.Millisecond
}

// StatusInterval returns the periodic status cadence as a duration.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Link.StatusIntervalS) * time.Second
}
