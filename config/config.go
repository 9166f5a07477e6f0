package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/simex/sim"
)

// Config represents the complete emulator configuration
type Config struct {
	Account    AccountConfig    `json:"account" yaml:"account"`
	Trading    TradingConfig    `json:"trading" yaml:"trading"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Data       DataConfig       `json:"data" yaml:"data"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	Balance float64 `json:"balance" yaml:"balance"`
}

// TradingConfig contains the fee and leverage model
type TradingConfig struct {
	DefaultLeverage int            `json:"default_leverage" yaml:"default_leverage"`
	MaxLeverage     int            `json:"max_leverage" yaml:"max_leverage"`
	CommissionRate  float64        `json:"commission_rate" yaml:"commission_rate"`
	MinCommission   float64        `json:"min_commission" yaml:"min_commission"`
	Slippage        []SlippageTier `json:"slippage" yaml:"slippage"`
}

// SlippageTier maps a notional threshold to a slippage fraction
type SlippageTier struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Fraction  float64 `json:"fraction" yaml:"fraction"`
}

// SimulationConfig contains clock parameters
type SimulationConfig struct {
	Start           string `json:"start,omitempty" yaml:"start,omitempty"` // RFC3339; empty = earliest bar in the data
	StepMinutes     int    `json:"step_minutes" yaml:"step_minutes"`
	AutoSaveSeconds int    `json:"auto_save_seconds" yaml:"auto_save_seconds"`
}

// DataConfig contains file locations
type DataConfig struct {
	KlinesDir string `json:"klines_dir" yaml:"klines_dir"`
	StatePath string `json:"state_path" yaml:"state_path"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	FillsFile  string `json:"fills_file,omitempty" yaml:"fills_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// ServerConfig contains the API listener address
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LoadFromFile loads configuration from a file (YAML or JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

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

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Trading.DefaultLeverage < 1 {
		return fmt.Errorf("trading.default_leverage must be at least 1")
	}
	if c.Trading.MaxLeverage > 0 && c.Trading.MaxLeverage < c.Trading.DefaultLeverage {
		return fmt.Errorf("trading.max_leverage below default_leverage")
	}
	if c.Trading.CommissionRate < 0 || c.Trading.MinCommission < 0 {
		return fmt.Errorf("trading commission settings must be non-negative")
	}
	for _, tier := range c.Trading.Slippage {
		if tier.Threshold < 0 || tier.Fraction < 0 {
			return fmt.Errorf("slippage tiers must be non-negative")
		}
	}
	if c.Simulation.StepMinutes < 1 {
		return fmt.Errorf("simulation.step_minutes must be at least 1")
	}
	if c.Simulation.Start != "" {
		if _, err := time.Parse(time.RFC3339, c.Simulation.Start); err != nil {
			return fmt.Errorf("simulation.start: %w", err)
		}
	}
	if c.Data.KlinesDir == "" {
		return fmt.Errorf("data.klines_dir is required")
	}
	if c.Data.StatePath == "" {
		return fmt.Errorf("data.state_path is required")
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.FillsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal fills_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// EngineConfig converts the file representation into engine parameters.
// start fills the simulation start when the config leaves it empty.
func (c *Config) EngineConfig(start time.Time) sim.Config {
	if c.Simulation.Start != "" {
		// Validate() already checked the format.
		t, _ := time.Parse(time.RFC3339, c.Simulation.Start)
		start = t
	}

	tiers := make([]sim.SlippageTier, 0, len(c.Trading.Slippage))
	for _, tier := range c.Trading.Slippage {
		tiers = append(tiers, sim.SlippageTier{Threshold: tier.Threshold, Fraction: tier.Fraction})
	}

	return sim.Config{
		StartingBalance: c.Account.Balance,
		DefaultLeverage: c.Trading.DefaultLeverage,
		MaxLeverage:     c.Trading.MaxLeverage,
		Start:           start,
		Step:            time.Duration(c.Simulation.StepMinutes) * time.Minute,
		Ledger: sim.LedgerConfig{
			CommissionRate: c.Trading.CommissionRate,
			MinCommission:  c.Trading.MinCommission,
			Slippage:       tiers,
		},
	}
}

// Default returns a configuration with the stock emulator parameters
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Balance: 1000,
		},
		Trading: TradingConfig{
			DefaultLeverage: 10,
			MaxLeverage:     100,
			CommissionRate:  0.0007,
			MinCommission:   0.04,
			Slippage: []SlippageTier{
				{Threshold: 0, Fraction: 0.0001},
				{Threshold: 100, Fraction: 0.0005},
				{Threshold: 1000, Fraction: 0.001},
				{Threshold: 10000, Fraction: 0.002},
			},
		},
		Simulation: SimulationConfig{
			StepMinutes:     1,
			AutoSaveSeconds: 60,
		},
		Data: DataConfig{
			KlinesDir: "./klines_data",
			StatePath: "./data/state.json",
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
	}
}
