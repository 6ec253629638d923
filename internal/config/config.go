package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfort/riskgov/internal/domain/evolve"
	"github.com/quantfort/riskgov/internal/domain/governor"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	Governor  governor.Config `yaml:"governor"`
	Flow      FlowConfig      `yaml:"flow"`
	Evolution EvolutionConfig `yaml:"evolution"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the PostgreSQL connection. An empty DSN runs
// the service on in-memory repositories, which is the tooling default.
type DatabaseConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// RedisConfig configures the flow state cache backend. When disabled the
// classifier uses the in-process store.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

// LogConfig configures zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// FlowConfig configures the flow state classifier.
type FlowConfig struct {
	KeyPrefix string        `yaml:"key_prefix"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// EvolutionConfig configures the evolution engine.
type EvolutionConfig struct {
	LearningRate  float64             `yaml:"learning_rate"`
	MinWeight     float64             `yaml:"min_weight"`
	BaselineArmed float64             `yaml:"baseline_armed"`
	Baseline      evolve.WeightVector `yaml:"baseline"`
}

// Default returns the shipped configuration. Every field has a usable
// value so a config file only needs to state what it changes.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8090",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          "",
			MaxOpenConns: 10,
			QueryTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
		Governor: governor.DefaultConfig(),
		Flow: FlowConfig{
			KeyPrefix: "riskgov",
			CacheTTL:  6 * time.Hour,
		},
		Evolution: EvolutionConfig{
			LearningRate:  0.5,
			MinWeight:     0.02,
			BaselineArmed: 60,
			Baseline:      evolve.DefaultWeights(),
		},
	}
}

// Load reads a YAML file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Flow.CacheTTL <= 0 {
		return fmt.Errorf("flow.cache_ttl must be positive")
	}
	if c.Evolution.LearningRate <= 0 || c.Evolution.LearningRate > 1 {
		return fmt.Errorf("evolution.learning_rate %.2f outside (0, 1]", c.Evolution.LearningRate)
	}
	if c.Evolution.MinWeight < 0 || c.Evolution.MinWeight > 0.1 {
		return fmt.Errorf("evolution.min_weight %.3f outside [0, 0.1]", c.Evolution.MinWeight)
	}
	if c.Evolution.BaselineArmed < 50 || c.Evolution.BaselineArmed > 90 {
		return fmt.Errorf("evolution.baseline_armed %.0f outside [50, 90]", c.Evolution.BaselineArmed)
	}
	if err := c.Evolution.Baseline.Validate(); err != nil {
		return fmt.Errorf("evolution.baseline: %w", err)
	}
	if c.Governor.StaleToleranceSec <= 0 {
		return fmt.Errorf("governor.stale_tolerance_sec must be positive")
	}
	return nil
}
