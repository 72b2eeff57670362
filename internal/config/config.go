// YAML settings loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Alert modes understood by the detector.
const (
	AlertModeValue = "value"
	AlertModeEdge  = "edge"
)

// RunConfig describes one simulated load run. It must not change once the run starts.
type RunConfig struct {
	Target   string
	Workers  int
	Duration time.Duration
}

// Validate reports a *ConfigError for input that cannot start a run.
func (c RunConfig) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return &ConfigError{Field: "target", Reason: "is required"}
	}
	if c.Workers <= 0 {
		return &ConfigError{Field: "threads", Reason: fmt.Sprintf("must be positive, got %d", c.Workers)}
	}
	if c.Duration <= 0 {
		return &ConfigError{Field: "duration", Reason: fmt.Sprintf("must be positive, got %s", c.Duration)}
	}
	return nil
}

// Settings holds the tunables that the original tool hard-coded.
type Settings struct {
	AlertThreshold    uint64        `yaml:"alert_threshold"`
	AlertMode         string        `yaml:"alert_mode"`
	LogCapacity       int           `yaml:"log_capacity"`
	RecentEvents      int           `yaml:"recent_events"`
	RecentAlerts      int           `yaml:"recent_alerts"`
	RefreshInterval   time.Duration `yaml:"refresh_interval"`
	JitterBase        time.Duration `yaml:"jitter_base"`
	JitterSpread      time.Duration `yaml:"jitter_spread"`
	PacketIntervalMin time.Duration `yaml:"packet_interval_min"`
	PacketIntervalMax time.Duration `yaml:"packet_interval_max"`
	AnomalyRate       float64       `yaml:"anomaly_rate"`
	Seed              int64         `yaml:"seed"`
	DBPath            string        `yaml:"db_path"`
	MirrorBuffer      int           `yaml:"mirror_buffer"`
}

// DefaultSettings returns the values the tool ships with.
func DefaultSettings() Settings {
	return Settings{
		AlertThreshold:    100,
		AlertMode:         AlertModeValue,
		LogCapacity:       50,
		RecentEvents:      5,
		RecentAlerts:      5,
		RefreshInterval:   2 * time.Second,
		JitterBase:        50 * time.Millisecond,
		JitterSpread:      100 * time.Millisecond,
		PacketIntervalMin: 100 * time.Millisecond,
		PacketIntervalMax: 500 * time.Millisecond,
		AnomalyRate:       0.05,
		DBPath:            "osint_tool.db",
		MirrorBuffer:      256,
	}
}

// Validate checks cross-field constraints the schema cannot express.
func (s Settings) Validate() error {
	switch s.AlertMode {
	case AlertModeValue, AlertModeEdge:
	default:
		return &ConfigError{Field: "alert_mode", Reason: fmt.Sprintf("unknown mode %q", s.AlertMode)}
	}
	if s.LogCapacity <= 0 {
		return &ConfigError{Field: "log_capacity", Reason: "must be positive"}
	}
	if s.RecentEvents <= 0 || s.RecentAlerts <= 0 {
		return &ConfigError{Field: "recent_events", Reason: "window sizes must be positive"}
	}
	if s.RefreshInterval <= 0 {
		return &ConfigError{Field: "refresh_interval", Reason: "must be positive"}
	}
	if s.JitterBase < 0 || s.JitterSpread < 0 || s.JitterBase+s.JitterSpread == 0 {
		return &ConfigError{Field: "jitter_base", Reason: "jitter interval must be positive"}
	}
	if s.PacketIntervalMin <= 0 || s.PacketIntervalMax <= s.PacketIntervalMin {
		return &ConfigError{Field: "packet_interval_max", Reason: "must be greater than packet_interval_min"}
	}
	if s.AnomalyRate < 0 || s.AnomalyRate > 1 {
		return &ConfigError{Field: "anomaly_rate", Reason: "must be within [0, 1]"}
	}
	if s.MirrorBuffer <= 0 {
		return &ConfigError{Field: "mirror_buffer", Reason: "must be positive"}
	}
	return nil
}

// Load reads a YAML settings file on top of the defaults. The file is
// validated against the CUE schema first; an empty schemaPath selects the
// embedded schema. An empty configPath yields the defaults.
func Load(configPath, schemaPath string) (Settings, error) {
	cfg := DefaultSettings()
	if configPath == "" {
		return cfg, nil
	}
	if err := ValidateWithCue(configPath, schemaPath); err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot decode settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
