// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/tuning"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
	MonitorAddr string `yaml:"monitor_addr"`
}

// Simulation configures the market model and the sell program.
type Simulation struct {
	TotalShares       float64   `yaml:"total_shares"`
	TimeHorizon       int       `yaml:"time_horizon"`
	StartPrice        float64   `yaml:"start_price"`
	Drift             float64   `yaml:"drift"`
	Volatility        float64   `yaml:"volatility"`
	PermImpact        float64   `yaml:"perm_impact"`
	TempImpact        float64   `yaml:"temp_impact"`
	RiskAversion      float64   `yaml:"risk_aversion"`
	Seed              int64     `yaml:"seed"`
	ActionMultipliers []float64 `yaml:"action_multipliers"`
}

// RL configures the agent and the training loop.
type RL struct {
	Gamma        float64 `yaml:"gamma"`
	LR           float64 `yaml:"lr"`
	BatchSize    int     `yaml:"batch_size"`
	MemorySize   int     `yaml:"memory_size"`
	Episodes     int     `yaml:"episodes"`
	EpsilonStart float64 `yaml:"epsilon_start"`
	EpsilonEnd   float64 `yaml:"epsilon_end"`
	EpsilonDecay float64 `yaml:"epsilon_decay"`
	TargetUpdate int     `yaml:"target_update"`
	HiddenSize   int     `yaml:"hidden_size"`
}

// Evaluation configures the held-out comparison against TWAP.
type Evaluation struct {
	Episodes int   `yaml:"episodes"`
	Seed     int64 `yaml:"seed"`
}

// Tuning configures the hyperparameter search study.
type Tuning struct {
	StudyName     string             `yaml:"study_name"`
	Trials        int                `yaml:"trials"`
	StartupTrials int                `yaml:"startup_trials"`
	ReportEvery   int                `yaml:"report_every"`
	Seed          int64              `yaml:"seed"`
	Space         tuning.SearchSpace `yaml:"space"`
	BestPath      string             `yaml:"best_path"`
}

// Storage selects persistence backends. Empty DSNs fall back to in-memory
// stores.
type Storage struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App        App        `yaml:"app"`
	Simulation Simulation `yaml:"simulation"`
	RL         RL         `yaml:"rl"`
	Evaluation Evaluation `yaml:"evaluation"`
	Tuning     Tuning     `yaml:"tuning"`
	Storage    Storage    `yaml:"storage"`
}

// Default returns a runnable configuration mirroring the sell program the
// lab was built around: 100 shares over 10 steps.
func Default() *Config {
	return &Config{
		App: App{
			Name:     "order-exec-lab",
			LogLevel: "info",
		},
		Simulation: Simulation{
			TotalShares:       100,
			TimeHorizon:       10,
			StartPrice:        50,
			Drift:             0.01,
			Volatility:        0.1,
			PermImpact:        0.005,
			TempImpact:        0.01,
			RiskAversion:      0.1,
			Seed:              42,
			ActionMultipliers: domain.DefaultActionMultipliers,
		},
		RL: RL{
			Gamma:        0.99,
			LR:           1e-3,
			BatchSize:    32,
			MemorySize:   10000,
			Episodes:     500,
			EpsilonStart: 1.0,
			EpsilonEnd:   0.05,
			EpsilonDecay: 0.995,
			TargetUpdate: 10,
			HiddenSize:   64,
		},
		Evaluation: Evaluation{
			Episodes: 100,
			Seed:     1_000_000,
		},
		Tuning: Tuning{
			StudyName:     "order-exec",
			Trials:        20,
			StartupTrials: 5,
			ReportEvery:   100,
			Seed:          7,
			Space: tuning.SearchSpace{
				LRMin:      1e-5,
				LRMax:      1e-2,
				GammaMin:   0.9,
				GammaMax:   0.999,
				BatchSizes: []int{16, 32, 64, 128},
			},
			BestPath: "best_params.yaml",
		},
	}
}

// SimulationParams converts the simulation section to domain parameters.
func (c *Config) SimulationParams() domain.SimulationParams {
	return domain.SimulationParams{
		TotalShares:       c.Simulation.TotalShares,
		TimeHorizon:       c.Simulation.TimeHorizon,
		StartPrice:        c.Simulation.StartPrice,
		Drift:             c.Simulation.Drift,
		Volatility:        c.Simulation.Volatility,
		PermImpact:        c.Simulation.PermImpact,
		TempImpact:        c.Simulation.TempImpact,
		RiskAversion:      c.Simulation.RiskAversion,
		Seed:              c.Simulation.Seed,
		ActionMultipliers: c.Simulation.ActionMultipliers,
	}
}

// Hyperparams converts the RL section to domain hyperparameters.
func (c *Config) Hyperparams() domain.Hyperparams {
	return domain.Hyperparams{
		Gamma:        c.RL.Gamma,
		LR:           c.RL.LR,
		BatchSize:    c.RL.BatchSize,
		MemorySize:   c.RL.MemorySize,
		Episodes:     c.RL.Episodes,
		EpsilonStart: c.RL.EpsilonStart,
		EpsilonEnd:   c.RL.EpsilonEnd,
		EpsilonDecay: c.RL.EpsilonDecay,
		TargetUpdate: c.RL.TargetUpdate,
		HiddenSize:   c.RL.HiddenSize,
	}
}

// Validate checks the domain sections through their own validators.
func (c *Config) Validate() error {
	if err := c.SimulationParams().Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if err := c.Hyperparams().Validate(); err != nil {
		return fmt.Errorf("rl: %w", err)
	}
	if c.Evaluation.Episodes <= 0 {
		return fmt.Errorf("evaluation: episodes must be positive, got %d", c.Evaluation.Episodes)
	}
	return nil
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
