package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	dgibbs "github.com/n0madic/go-diffusive-gibbs/diffusive-gibbs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
target:
  kind: mixture
  means: [-2, 2]
sampler:
  n_steps: 4
run:
  chains: 2
  seed: 7
log_level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "mixture", cfg.Target.Kind)
	assert.Equal(t, []float64{-2, 2}, cfg.Target.Means)
	assert.Equal(t, 4, cfg.Sampler.NSteps)
	assert.Equal(t, 2, cfg.Run.Chains)
	assert.Equal(t, uint64(7), cfg.Run.Seed)
	assert.Equal(t, slog.LevelDebug, parseLevel(cfg.LogLevel))

	// untouched keys keep their defaults
	def := DefaultConfig()
	assert.Equal(t, def.Target.Sigma, cfg.Target.Sigma)
	assert.Equal(t, def.Sampler.Schedule, cfg.Sampler.Schedule)
	assert.Equal(t, def.Run.Transitions, cfg.Run.Transitions)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "target: [not, a, map]"))
	assert.Error(t, err)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestBuildSampler(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"mixture", func(c *Config) { c.Target.Kind = "mixture" }, false},
		{"variance preserving", func(c *Config) { c.Sampler.Schedule.Kind = "variance_preserving" }, false},
		{"unknown target", func(c *Config) { c.Target.Kind = "banana" }, true},
		{"empty mixture", func(c *Config) { c.Target.Kind = "mixture"; c.Target.Means = nil }, true},
		{"zero dim", func(c *Config) { c.Target.Dim = 0 }, true},
		{"zero sigma", func(c *Config) { c.Target.Sigma = 0 }, true},
		{"unknown schedule", func(c *Config) { c.Sampler.Schedule.Kind = "cosine" }, true},
		{"vp sigma out of range", func(c *Config) {
			c.Sampler.Schedule.Kind = "variance_preserving"
			c.Sampler.Schedule.SigmaMax = 1.5
		}, true},
		{"zero steps", func(c *Config) { c.Sampler.NSteps = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			s, err := cfg.NewSampler()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestConfigCommandPrintsDefaults(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config"})
	require.NoError(t, root.Execute())

	var cfg Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &cfg))
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestRunCommandCheckpointAndResume(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
sampler:
  n_steps: 2
run:
  chains: 2
  transitions: 20
  burnin: 5
log_level: error
`)
	checkpointPath := filepath.Join(dir, "states.gob")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"run", "--config", path, "--checkpoint", checkpointPath})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "coord"))

	states, err := readCheckpoint(checkpointPath)
	require.NoError(t, err)
	require.Len(t, states, 2)
	for _, st := range states {
		assert.Equal(t, 20, st.Count)
	}

	resumedPath := filepath.Join(dir, "resumed.gob")
	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"run", "--config", path, "--resume", checkpointPath, "--checkpoint", resumedPath, "--transitions", "10"})
	require.NoError(t, root.Execute())

	f, err := os.Open(resumedPath)
	require.NoError(t, err)
	defer f.Close()
	resumed, err := dgibbs.LoadStates(f)
	require.NoError(t, err)
	for _, st := range resumed {
		assert.Equal(t, 30, st.Count)
	}
}
