// Package config loads process-wide configuration from a YAML file with
// sensible defaults. Fees here are the fixed per-statement amounts; the
// per-listing commission percentage lives in the listing catalog and is
// bulk-importable via CSV.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`

	// Fixed fees applied once per statement with activity.
	TechFee      float64 `yaml:"tech_fee"`
	InsuranceFee float64 `yaml:"insurance_fee"`

	// Default commission percentage for listings without one configured.
	DefaultPMFeePercent float64 `yaml:"default_pm_fee_percent"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`

	// Wall-clock trigger: hour of day in the given IANA timezone.
	Timezone    string `yaml:"timezone"`
	TriggerHour int    `yaml:"trigger_hour"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port:                8080,
		DBPath:              "statements.db",
		TechFee:             0,
		InsuranceFee:        0,
		DefaultPMFeePercent: 15,
		Scheduler: SchedulerConfig{
			Enabled:     true,
			Timezone:    "America/New_York",
			TriggerHour: 6,
		},
	}
}

// Load reads a YAML config file, overlaying it on the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Port <= 0 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.Scheduler.TriggerHour < 0 || cfg.Scheduler.TriggerHour > 23 {
		return cfg, fmt.Errorf("invalid scheduler trigger_hour %d", cfg.Scheduler.TriggerHour)
	}
	return cfg, nil
}

// TechFeeAmount returns the tech fee as a decimal amount.
func (c Config) TechFeeAmount() decimal.Decimal { return decimal.NewFromFloat(c.TechFee) }

// InsuranceFeeAmount returns the insurance fee as a decimal amount.
func (c Config) InsuranceFeeAmount() decimal.Decimal {
	return decimal.NewFromFloat(c.InsuranceFee)
}
