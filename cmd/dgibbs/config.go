package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/n0madic/go-diffusive-gibbs/chain"
	"github.com/n0madic/go-diffusive-gibbs/density"
	dgibbs "github.com/n0madic/go-diffusive-gibbs/diffusive-gibbs"
	"github.com/n0madic/go-diffusive-gibbs/mala"
)

// Config is the full CLI configuration.
type Config struct {
	Target   TargetConfig  `yaml:"target"`
	Sampler  SamplerConfig `yaml:"sampler"`
	Run      chain.Config  `yaml:"run"`
	LogLevel string        `yaml:"log_level"`
}

// TargetConfig selects the distribution to sample.
type TargetConfig struct {
	Kind  string    `yaml:"kind"` // normal or mixture
	Dim   int       `yaml:"dim"`
	Mean  float64   `yaml:"mean"`
	Sigma float64   `yaml:"sigma"`
	Means []float64 `yaml:"means"` // mixture component means
}

// SamplerConfig holds the Diffusive Gibbs settings.
type SamplerConfig struct {
	NSteps   int            `yaml:"n_steps"`
	StepSize float64        `yaml:"step_size"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// ScheduleConfig selects the noise schedule.
type ScheduleConfig struct {
	Kind        string  `yaml:"kind"` // constant or variance_preserving
	Contraction float64 `yaml:"contraction"`
	Sigma       float64 `yaml:"sigma"`
	SigmaMax    float64 `yaml:"sigma_max"`
	SigmaMin    float64 `yaml:"sigma_min"`
	Horizon     int     `yaml:"horizon"`
}

// DefaultConfig mirrors the library defaults on a 1-d standard normal.
func DefaultConfig() Config {
	run := chain.DefaultConfig()
	run.Chains = 4
	run.Transitions = 5000
	run.Burnin = 500
	return Config{
		Target: TargetConfig{
			Kind:  "normal",
			Dim:   1,
			Mean:  0,
			Sigma: 1,
			Means: []float64{-3, 3},
		},
		Sampler: SamplerConfig{
			NSteps:   dgibbs.DefaultNSteps,
			StepSize: mala.DefaultStepSize,
			Schedule: ScheduleConfig{
				Kind:        "constant",
				Contraction: 0.9,
				Sigma:       0.1,
				SigmaMax:    0.9,
				SigmaMin:    0.1,
				Horizon:     1000,
			},
		},
		Run:      run,
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// BuildTarget returns the configured target density.
func (c Config) BuildTarget() (density.Model, error) {
	if c.Target.Dim <= 0 {
		return nil, fmt.Errorf("target dim must be positive, got %d", c.Target.Dim)
	}
	if c.Target.Sigma <= 0 {
		return nil, fmt.Errorf("target sigma must be positive, got %g", c.Target.Sigma)
	}

	switch strings.ToLower(c.Target.Kind) {
	case "normal", "":
		return density.IsotropicNormal{Mean: c.Target.Mean, Sigma: c.Target.Sigma}, nil
	case "mixture":
		if len(c.Target.Means) == 0 {
			return nil, fmt.Errorf("mixture target needs at least one mean")
		}
		return density.GaussianMixture{Means: c.Target.Means, Sigma: c.Target.Sigma}, nil
	default:
		return nil, fmt.Errorf("unknown target kind %q", c.Target.Kind)
	}
}

// BuildSchedule returns the configured schedule.
func (c Config) BuildSchedule() (dgibbs.Schedule, error) {
	s := c.Sampler.Schedule
	switch strings.ToLower(s.Kind) {
	case "constant", "":
		return dgibbs.ConstantSchedule(s.Contraction, s.Sigma), nil
	case "variance_preserving":
		if s.SigmaMax <= 0 || s.SigmaMax >= 1 || s.SigmaMin <= 0 || s.SigmaMin >= 1 {
			return nil, fmt.Errorf("variance preserving sigmas must lie in (0, 1), got %g and %g", s.SigmaMax, s.SigmaMin)
		}
		return dgibbs.VariancePreservingSchedule(s.SigmaMax, s.SigmaMin, s.Horizon), nil
	default:
		return nil, fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
}

// NewSampler builds the Diffusive Gibbs sampler described by c.
func (c Config) NewSampler() (*dgibbs.Sampler, error) {
	target, err := c.BuildTarget()
	if err != nil {
		return nil, err
	}
	schedule, err := c.BuildSchedule()
	if err != nil {
		return nil, err
	}
	return dgibbs.New(target,
		dgibbs.WithNSteps(c.Sampler.NSteps),
		dgibbs.WithStepSize(c.Sampler.StepSize),
		dgibbs.WithSchedule(schedule),
	)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
