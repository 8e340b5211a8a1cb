// Package config loads flowagent's YAML configuration, backfilling defaults
// the way the teacher's telemetry-agent config loader does.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CollectorConfig describes one wire-protocol collector to instantiate.
type CollectorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// ThresholdsConfig seeds LatencyMonitor's runtime parameters.
type ThresholdsConfig struct {
	ThresholdMS     float64 `yaml:"threshold_ms"`
	WindowSeconds   int     `yaml:"window_seconds"`
	MinSamples      int     `yaml:"min_samples"`
	CooldownSeconds int     `yaml:"cooldown_seconds"`
}

// BaselineConfig seeds the baseline-anomaly capability's runtime parameters.
type BaselineConfig struct {
	WindowSeconds    int     `yaml:"window_seconds"`
	MinSamplesPerKey int     `yaml:"min_samples_per_key"`
	Alpha            float64 `yaml:"alpha"`
	ZThreshold       float64 `yaml:"z_threshold"`
	MinUpdates       int     `yaml:"min_updates"`
	GroupMode        string  `yaml:"group_mode"`
	CooldownSeconds  int     `yaml:"cooldown_seconds"`
	ShiftThreshold   float64 `yaml:"shift_threshold"`
	ShiftMinTotal    int     `yaml:"shift_min_total"`
}

// ArchiveConfig points flowagent's best-effort archiver at a Postgres
// instance. Archiving is disabled (and never blocks the analysis loop)
// when Enabled is false.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	PoolSize int    `yaml:"pool_size"`
}

// Config is flowagent's top-level configuration shape.
type Config struct {
	Collectors struct {
		SFlow   CollectorConfig `yaml:"sflow"`
		NetFlow CollectorConfig `yaml:"netflow"`
		IPFIX   CollectorConfig `yaml:"ipfix"`
		JFlow   CollectorConfig `yaml:"jflow"`
		JSON    CollectorConfig `yaml:"json"`
	} `yaml:"collectors"`

	Store struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"store"`

	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Baseline   BaselineConfig   `yaml:"baseline"`
	Archive    ArchiveConfig    `yaml:"archive"`

	Monitoring struct {
		AnalysisIntervalSeconds int `yaml:"analysis_interval_seconds"`
	} `yaml:"monitoring"`
}

// Load reads and parses the YAML file at path, then fills in defaults for
// any zero-valued field a fresh deployment would otherwise trip over.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Capacity == 0 {
		cfg.Store.Capacity = 200_000
	}

	if cfg.Thresholds.WindowSeconds == 0 {
		cfg.Thresholds.WindowSeconds = 60
	}
	if cfg.Thresholds.MinSamples == 0 {
		cfg.Thresholds.MinSamples = 5
	}
	if cfg.Thresholds.CooldownSeconds == 0 {
		cfg.Thresholds.CooldownSeconds = 300
	}
	if cfg.Thresholds.ThresholdMS == 0 {
		cfg.Thresholds.ThresholdMS = 150
	}

	if cfg.Baseline.WindowSeconds == 0 {
		cfg.Baseline.WindowSeconds = 60
	}
	if cfg.Baseline.MinSamplesPerKey == 0 {
		cfg.Baseline.MinSamplesPerKey = 20
	}
	if cfg.Baseline.Alpha == 0 {
		cfg.Baseline.Alpha = 0.2
	}
	if cfg.Baseline.ZThreshold == 0 {
		cfg.Baseline.ZThreshold = 3.0
	}
	if cfg.Baseline.MinUpdates == 0 {
		cfg.Baseline.MinUpdates = 5
	}
	if cfg.Baseline.GroupMode == "" {
		cfg.Baseline.GroupMode = "pair"
	}
	if cfg.Baseline.CooldownSeconds == 0 {
		cfg.Baseline.CooldownSeconds = 300
	}
	if cfg.Baseline.ShiftThreshold == 0 {
		cfg.Baseline.ShiftThreshold = 0.3
	}
	if cfg.Baseline.ShiftMinTotal == 0 {
		cfg.Baseline.ShiftMinTotal = 20
	}

	if cfg.Archive.PoolSize == 0 {
		cfg.Archive.PoolSize = 4
	}

	if cfg.Monitoring.AnalysisIntervalSeconds == 0 {
		cfg.Monitoring.AnalysisIntervalSeconds = 30
	}
}
