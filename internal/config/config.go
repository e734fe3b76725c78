// Package config loads check-time settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vela-lang/vela/internal/solver"
)

// SolverConfig selects and tunes the satisfiability backend.
type SolverConfig struct {
	// Kind names the backend: "builtin" or "smtlib".
	Kind string `yaml:"kind"`

	// Path and Args locate the external solver for the smtlib backend.
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`

	// TimeoutMS bounds one satisfiability query.
	TimeoutMS int `yaml:"timeout_ms"`

	// PoolSize caps concurrent solver contexts.
	PoolSize int `yaml:"pool_size"`

	// CPUSeconds and MemoryBytes confine the external solver process.
	// Zero leaves the corresponding limit unset.
	CPUSeconds  uint64 `yaml:"cpu_seconds"`
	MemoryBytes uint64 `yaml:"memory_bytes"`
}

// Config holds every tunable of a check run.
type Config struct {
	Solver SolverConfig `yaml:"solver"`

	// StrictUnknown promotes inconclusive solver results from warnings
	// to errors.
	StrictUnknown bool `yaml:"strict_unknown"`

	// MaxErrors caps collected error diagnostics. Zero disables the
	// cap.
	MaxErrors int `yaml:"max_errors"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Solver: SolverConfig{
			Kind:      "builtin",
			TimeoutMS: int(solver.DefaultQueryTimeout / time.Millisecond),
			PoolSize:  runtime.NumCPU(),
		},
	}
}

// Load reads a YAML configuration file. A missing file yields the
// defaults; a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Solver.Kind {
	case "", "builtin", "smtlib":
	default:
		return fmt.Errorf("unknown solver kind: %s", c.Solver.Kind)
	}

	if c.Solver.TimeoutMS < 0 {
		return fmt.Errorf("negative solver timeout: %d", c.Solver.TimeoutMS)
	}

	if c.MaxErrors < 0 {
		return fmt.Errorf("negative max_errors: %d", c.MaxErrors)
	}

	return nil
}

// Timeout returns the per-query solver timeout.
func (c *Config) Timeout() time.Duration {
	if c.Solver.TimeoutMS <= 0 {
		return solver.DefaultQueryTimeout
	}

	return time.Duration(c.Solver.TimeoutMS) * time.Millisecond
}

// Backend builds the configured solver backend.
func (c *Config) Backend() solver.Backend {
	if c.Solver.Kind == "smtlib" {
		return &solver.SMTLibBackend{
			Path:        c.Solver.Path,
			Args:        c.Solver.Args,
			CPULimit:    time.Duration(c.Solver.CPUSeconds) * time.Second,
			MemoryLimit: c.Solver.MemoryBytes,
		}
	}

	return &solver.BuiltinBackend{}
}

// Pool builds the solver pool described by the configuration.
func (c *Config) Pool() *solver.Pool {
	size := c.Solver.PoolSize
	if size <= 0 {
		size = runtime.NumCPU()
	}

	return solver.NewPool(c.Backend(), size, c.Timeout())
}
