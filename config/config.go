// Package config loads the allocator configuration from YAML or JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/allocator/risk"
)

// Config represents the complete allocator configuration
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Rules   risk.Config   `json:"rules" yaml:"rules"`
	Data    DataConfig    `json:"data" yaml:"data"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	Name         string   `json:"name" yaml:"name"`
	StartingCash float64  `json:"starting_cash" yaml:"starting_cash"`
	Benchmark    string   `json:"benchmark,omitempty" yaml:"benchmark,omitempty"`
	Watchlist    []string `json:"watchlist" yaml:"watchlist"`
}

// DataConfig points at the bar history on disk
type DataConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	// DBPath is the SQLite file; empty disables journaling.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if (len(path) > 5 && path[len(path)-5:] == ".yaml") || (len(path) > 4 && path[len(path)-4:] == ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.StartingCash <= 0 {
		return fmt.Errorf("account.starting_cash must be positive")
	}
	if len(c.Account.Watchlist) == 0 {
		return fmt.Errorf("account.watchlist is required")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Name:         "SIM-001",
			StartingCash: 10_000,
			Benchmark:    "SPY",
			Watchlist:    []string{"VTI", "VOO", "QQQ"},
		},
		Rules: risk.Config{
			MaxPositionPct:     0.20,
			MinCashPct:         0.10,
			StopLossPct:        0.12,
			MaxDrawdownPct:     0.20,
			MaxTradesPerCycle:  5,
			MinHoldingDays:     7,
			MinLiquidityVolume: 1_000_000,
			MinPrice:           5,
		},
		Data: DataConfig{
			Dir: "./data",
		},
		Journal: JournalConfig{
			DBPath: "./allocator.db",
		},
	}
}
