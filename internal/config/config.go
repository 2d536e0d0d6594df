package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the persisted CLI defaults. Flags and environment variables
// take precedence over it at runtime.
type Config struct {
	AWSProfile string `yaml:"aws_profile,omitempty"`
	AWSRegion  string `yaml:"aws_region,omitempty"`

	// ConvergeTimeout is the default wait timeout for elb register and
	// deregister, as a duration string ("5m", "90s").
	ConvergeTimeout string `yaml:"converge_timeout,omitempty"`
}

// ConvergeTimeoutValue parses the saved converge timeout. Zero means no
// saved default.
func (c *Config) ConvergeTimeoutValue() time.Duration {
	if c.ConvergeTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.ConvergeTimeout)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// GetConfigPath returns the config file path (~/.stratus/config.yaml)
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".stratus", "config.yaml")
	}
	return filepath.Join(home, ".stratus", "config.yaml")
}

// LoadConfig loads the configuration from ~/.stratus/config.yaml. A missing
// file loads as an empty config.
func LoadConfig() (*Config, error) {
	data, err := os.ReadFile(GetConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to ~/.stratus/config.yaml
func SaveConfig(cfg *Config) error {
	path := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SetProfile updates the saved AWS profile, keeping the other settings
func SetProfile(profileName string) error {
	cfg, err := LoadConfig()
	if err != nil {
		cfg = &Config{}
	}

	cfg.AWSProfile = profileName
	return SaveConfig(cfg)
}

// GetSavedProfile returns the saved AWS profile, or empty when none is set
func GetSavedProfile() string {
	cfg, err := LoadConfig()
	if err != nil {
		return ""
	}
	return cfg.AWSProfile
}
