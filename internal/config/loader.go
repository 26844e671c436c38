package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DeviceConfig describes the device profile when platform detection is not
// available (non-Android hosts, tests). Zero values mean "unspecified".
type DeviceConfig struct {
	SoCVendor      string   `json:"soc_vendor" yaml:"soc_vendor" toml:"soc_vendor"`
	GPU            string   `json:"gpu" yaml:"gpu" toml:"gpu"`
	Class          string   `json:"class" yaml:"class" toml:"class"`
	TotalRAMMB     int      `json:"total_ram_mb" yaml:"total_ram_mb" toml:"total_ram_mb"`
	AvailableRAMMB int      `json:"available_ram_mb" yaml:"available_ram_mb" toml:"available_ram_mb"`
	AndroidAPI     int      `json:"android_api" yaml:"android_api" toml:"android_api"`
	Cores          int      `json:"cores" yaml:"cores" toml:"cores"`
	Capabilities   []string `json:"capabilities" yaml:"capabilities" toml:"capabilities"`
}

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`

	// Generation / session tunables.
	SystemPrompt        string `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	WindowTokens        int    `json:"sliding_window_tokens" yaml:"sliding_window_tokens" toml:"sliding_window_tokens"`
	SafetyInterval      int    `json:"safety_check_interval" yaml:"safety_check_interval" toml:"safety_check_interval"`
	ContextSize         int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads             int    `json:"threads" yaml:"threads" toml:"threads"`
	ThermalPollSeconds  int    `json:"thermal_poll_seconds" yaml:"thermal_poll_seconds" toml:"thermal_poll_seconds"`
	CriticalCooldownSec int    `json:"critical_cooldown_seconds" yaml:"critical_cooldown_seconds" toml:"critical_cooldown_seconds"`
	BenchmarkTTLHours   int    `json:"benchmark_ttl_hours" yaml:"benchmark_ttl_hours" toml:"benchmark_ttl_hours"`

	// Safety blocklist terms for the built-in filter; empty disables it.
	SafetyBlocklist []string `json:"safety_blocklist" yaml:"safety_blocklist" toml:"safety_blocklist"`

	// HTTP surface.
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	// Logging.
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	Device DeviceConfig `json:"device" yaml:"device" toml:"device"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
