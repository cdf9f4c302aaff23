// Package chain drives independent Diffusive Gibbs chains in parallel and
// collects their samples.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	dgibbs "github.com/n0madic/go-diffusive-gibbs/diffusive-gibbs"
	"github.com/n0madic/go-diffusive-gibbs/rngkey"
	"github.com/n0madic/go-diffusive-gibbs/tree"
)

var ErrInvalidConfig = errors.New("invalid chain config")

// Sampler is the transition kernel a Runner advances
type Sampler interface {
	Init(position tree.Tree) dgibbs.GibbsState
	Step(key rngkey.Key, state dgibbs.GibbsState) dgibbs.GibbsState
	Schedule() dgibbs.Schedule
}

// Config controls a run
type Config struct {
	Chains      int    `yaml:"chains"`
	Transitions int    `yaml:"transitions"` // per chain, burn-in included
	Burnin      int    `yaml:"burnin"`
	Thin        int    `yaml:"thin"`
	Seed        uint64 `yaml:"seed"`
}

// DefaultConfig returns a single-chain, 1000-transition configuration
func DefaultConfig() Config {
	return Config{
		Chains:      1,
		Transitions: 1000,
		Burnin:      0,
		Thin:        1,
		Seed:        42,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch {
	case c.Chains <= 0:
		return fmt.Errorf("%w: chains must be positive, got %d", ErrInvalidConfig, c.Chains)
	case c.Transitions <= 0:
		return fmt.Errorf("%w: transitions must be positive, got %d", ErrInvalidConfig, c.Transitions)
	case c.Burnin < 0 || c.Burnin >= c.Transitions:
		return fmt.Errorf("%w: burnin must be in [0, %d), got %d", ErrInvalidConfig, c.Transitions, c.Burnin)
	case c.Thin <= 0:
		return fmt.Errorf("%w: thin must be positive, got %d", ErrInvalidConfig, c.Thin)
	}
	return nil
}

// Trace is the output of one chain
type Trace struct {
	Samples []tree.Tree
	Final   dgibbs.GibbsState
}

// Result holds every chain's trace, indexed like the initial positions
type Result struct {
	Traces []Trace
}

// FinalStates returns the last state of every chain
func (r *Result) FinalStates() []dgibbs.GibbsState {
	states := make([]dgibbs.GibbsState, len(r.Traces))
	for i, tr := range r.Traces {
		states[i] = tr.Final
	}
	return states
}

// Runner runs chains of a Sampler
type Runner struct {
	sampler Sampler
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the logger. Defaults to slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMetrics records progress into m
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// NewRunner creates a Runner
func NewRunner(sampler Sampler, cfg Config, options ...Option) (*Runner, error) {
	if sampler == nil {
		return nil, fmt.Errorf("%w: sampler is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		sampler: sampler,
		cfg:     cfg,
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Run starts one chain per initial position, which must number cfg.Chains
func (r *Runner) Run(ctx context.Context, initial []tree.Tree) (*Result, error) {
	states := make([]dgibbs.GibbsState, len(initial))
	for i, position := range initial {
		states[i] = r.sampler.Init(position)
	}
	return r.Resume(ctx, states)
}

// Resume continues one chain from each state. Chain i always draws from the
// i-th key split off the configured seed, advanced past the state's Count, so
// results do not depend on goroutine scheduling and a resumed chain matches
// an uninterrupted one.
//
// Every state must carry the noise parameters the sampler's schedule gives
// for its Count.
func (r *Runner) Resume(ctx context.Context, states []dgibbs.GibbsState) (*Result, error) {
	if len(states) != r.cfg.Chains {
		return nil, fmt.Errorf("%w: expected %d initial states, got %d", ErrInvalidConfig, r.cfg.Chains, len(states))
	}
	if err := checkSchedule(r.sampler.Schedule(), states); err != nil {
		return nil, err
	}

	start := time.Now()
	r.logger.Info("starting chains",
		"chains", r.cfg.Chains,
		"transitions", r.cfg.Transitions,
		"burnin", r.cfg.Burnin,
		"thin", r.cfg.Thin,
		"seed", r.cfg.Seed)

	keys := rngkey.New(r.cfg.Seed).Split(r.cfg.Chains)
	result := &Result{Traces: make([]Trace, r.cfg.Chains)}

	g, gCtx := errgroup.WithContext(ctx)
	for i := range states {
		g.Go(func() error {
			trace, err := r.runChain(gCtx, i, keys[i], states[i])
			if err != nil {
				return fmt.Errorf("chain %d: %w", i, err)
			}
			result.Traces[i] = trace
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.logger.Warn("run aborted", "error", err, "elapsed", time.Since(start))
		return nil, err
	}

	r.logger.Info("chains finished", "elapsed", time.Since(start))
	return result, nil
}

func (r *Runner) runChain(ctx context.Context, idx int, key rngkey.Key, state dgibbs.GibbsState) (Trace, error) {
	if r.metrics != nil {
		r.metrics.activeChains.Inc()
		defer r.metrics.activeChains.Dec()
	}

	// skip the sub-keys consumed before this state was reached
	for range state.Count {
		key, _ = key.Split2()
	}

	kept := (r.cfg.Transitions - r.cfg.Burnin + r.cfg.Thin - 1) / r.cfg.Thin
	samples := make([]tree.Tree, 0, kept)

	for t := 0; t < r.cfg.Transitions; t++ {
		if err := ctx.Err(); err != nil {
			return Trace{}, err
		}

		var sub rngkey.Key
		key, sub = key.Split2()

		begin := time.Now()
		state = r.sampler.Step(sub, state)
		if r.metrics != nil {
			r.metrics.transitions.Inc()
			r.metrics.latency.Observe(time.Since(begin).Seconds())
		}

		if t >= r.cfg.Burnin && (t-r.cfg.Burnin)%r.cfg.Thin == 0 {
			samples = append(samples, state.Position)
		}
	}

	r.logger.Debug("chain finished", "chain", idx, "samples", len(samples), "count", state.Count)
	return Trace{Samples: samples, Final: state}, nil
}

func checkSchedule(schedule dgibbs.Schedule, states []dgibbs.GibbsState) error {
	for i, st := range states {
		contraction, sigma := schedule(st.Count)
		if st.NoiseContraction != contraction || st.NoiseSigma != sigma {
			return fmt.Errorf("%w: state %d has noise (%g, %g), schedule gives (%g, %g) at count %d",
				ErrInvalidConfig, i, st.NoiseContraction, st.NoiseSigma, contraction, sigma, st.Count)
		}
	}
	return nil
}
