// Package appconfig manages application configuration: the config
// directory and loading and saving config.yaml.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UIConfig contains TUI display settings.
type UIConfig struct {
	RefreshSeconds int `yaml:"refresh_seconds"`
}

// BindPolicy controls whether local forward listeners may bind non-loopback
// addresses.
type BindPolicy string

const (
	BindPolicyLoopbackOnly BindPolicy = "loopback_only"
	BindPolicyAllowPublic  BindPolicy = "allow_public"
)

// NormalizeBindPolicy maps an arbitrary config value to a known BindPolicy,
// falling back to the safe default for anything unrecognized.
func NormalizeBindPolicy(raw string) BindPolicy {
	if BindPolicy(raw) == BindPolicyAllowPublic {
		return BindPolicyAllowPublic
	}
	return BindPolicyLoopbackOnly
}

// HostKeyPolicy controls how sshsession verifies a remote host's SSH key.
type HostKeyPolicy string

const (
	HostKeyPolicyStrict   HostKeyPolicy = "strict"
	HostKeyPolicyInsecure HostKeyPolicy = "insecure"
)

// NormalizeHostKeyPolicy maps an arbitrary config value to a known
// HostKeyPolicy, falling back to the safe default for anything unrecognized.
func NormalizeHostKeyPolicy(raw string) HostKeyPolicy {
	if HostKeyPolicy(raw) == HostKeyPolicyInsecure {
		return HostKeyPolicyInsecure
	}
	return HostKeyPolicyStrict
}

// SecurityConfig holds the user-facing safety knobs: whether forwards may
// bind beyond loopback, how strictly remote host keys are checked, and
// whether displayed errors should redact local paths and hostnames.
type SecurityConfig struct {
	BindPolicy    BindPolicy    `yaml:"bind_policy"`
	HostKeyPolicy HostKeyPolicy `yaml:"host_key_policy"`
	RedactErrors  bool          `yaml:"redact_errors"`
}

// DiscoveryConfig controls the remote agent deployment.
type DiscoveryConfig struct {
	// AgentPath overrides the agent binary resolution order with an
	// explicit local file, for development against an unreleased agent.
	AgentPath string `yaml:"agent_path"`
}

// Config holds application-level configuration.
type Config struct {
	DefaultHealthCommand string          `yaml:"default_health_command"`
	UI                   UIConfig        `yaml:"ui"`
	Security             SecurityConfig  `yaml:"security"`
	Discovery            DiscoveryConfig `yaml:"discovery"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DefaultHealthCommand: "uptime",
		UI:                   UIConfig{RefreshSeconds: 3},
		Security: SecurityConfig{
			BindPolicy:    BindPolicyLoopbackOnly,
			HostKeyPolicy: HostKeyPolicyStrict,
			RedactErrors:  true,
		},
	}
}

// ConfigDir returns the application config directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/sshfwd.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sshfwd"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".config", "sshfwd"), nil
}

// Load reads config.yaml from the config directory.
// If the file doesn't exist, creates it with defaults.
func Load() (Config, error) {
	d, err := ConfigDir()
	if err != nil {
		return Config{}, err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return Config{}, err
	}
	path := filepath.Join(d, "config.yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.UI.RefreshSeconds <= 0 {
		cfg.UI.RefreshSeconds = 3
	}
	if cfg.DefaultHealthCommand == "" {
		cfg.DefaultHealthCommand = "uptime"
	}
	cfg.Security.BindPolicy = NormalizeBindPolicy(string(cfg.Security.BindPolicy))
	cfg.Security.HostKeyPolicy = NormalizeHostKeyPolicy(string(cfg.Security.HostKeyPolicy))
	return cfg, nil
}

// Save writes config to config.yaml.
func Save(cfg Config) error {
	d, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return err
	}
	path := filepath.Join(d, "config.yaml")
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
