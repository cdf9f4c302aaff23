package dgibbs

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/n0madic/go-diffusive-gibbs/density"
	"github.com/n0madic/go-diffusive-gibbs/mala"
	"github.com/n0madic/go-diffusive-gibbs/rngkey"
	"github.com/n0madic/go-diffusive-gibbs/tree"
)

// DefaultNSteps is the number of MALA refinement steps per transition
const DefaultNSteps = 10

var (
	ErrNilTarget       = errors.New("target log-density is required")
	ErrNilSchedule     = errors.New("schedule is required")
	ErrInvalidNSteps   = errors.New("number of denoising steps must be positive")
	ErrInvalidStepSize = errors.New("MALA step size must be positive")
)

// Sampler is the Diffusive Gibbs sampling algorithm: a target, a schedule
// and the refinement settings, fixed at construction.
//
// Init and Step are safe for concurrent use; the returned states are never
// shared between calls.
type Sampler struct {
	target   density.Model
	nSteps   int
	schedule Schedule
	stepSize float64

	nTransitions uint64 // atomic
	nAccepted    uint64 // atomic, initializer acceptances
}

// Option configures a Sampler
type Option func(*Sampler)

// WithNSteps sets the number of MALA refinement steps per transition
func WithNSteps(n int) Option {
	return func(s *Sampler) {
		s.nSteps = n
	}
}

// WithSchedule sets the noise schedule
func WithSchedule(schedule Schedule) Option {
	return func(s *Sampler) {
		s.schedule = schedule
	}
}

// WithStepSize sets the MALA step size used during refinement
func WithStepSize(stepSize float64) Option {
	return func(s *Sampler) {
		s.stepSize = stepSize
	}
}

// New creates a Diffusive Gibbs sampler for target
func New(target density.Model, options ...Option) (*Sampler, error) {
	if target == nil {
		return nil, ErrNilTarget
	}

	s := &Sampler{
		target:   target,
		nSteps:   DefaultNSteps,
		schedule: DefaultSchedule(),
		stepSize: mala.DefaultStepSize,
	}

	for _, opt := range options {
		opt(s)
	}

	if s.nSteps <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidNSteps, s.nSteps)
	}
	if s.stepSize <= 0 {
		return nil, fmt.Errorf("%w, got %g", ErrInvalidStepSize, s.stepSize)
	}
	if s.schedule == nil {
		return nil, ErrNilSchedule
	}

	return s, nil
}

// Init creates the initial state at position
func (s *Sampler) Init(position tree.Tree) GibbsState {
	return InitState(position, s.target, s.schedule)
}

// Step performs one transition. The result depends only on key, state and
// the sampler configuration.
func (s *Sampler) Step(key rngkey.Key, state GibbsState) GibbsState {
	next, accepted := kernel(key, state, s.target, config{
		nSteps:   s.nSteps,
		schedule: s.schedule,
		stepSize: s.stepSize,
	})

	atomic.AddUint64(&s.nTransitions, 1)
	if accepted {
		atomic.AddUint64(&s.nAccepted, 1)
	}
	return next
}

// Schedule returns the configured schedule
func (s *Sampler) Schedule() Schedule {
	return s.schedule
}

// GetStats returns counters accumulated over every Step call
func (s *Sampler) GetStats() map[string]any {
	transitions := atomic.LoadUint64(&s.nTransitions)
	accepted := atomic.LoadUint64(&s.nAccepted)

	rate := 0.0
	if transitions > 0 {
		rate = float64(accepted) / float64(transitions)
	}

	return map[string]any{
		"n_transitions":        transitions,
		"n_init_accepted":      accepted,
		"init_acceptance_rate": rate,
		"n_steps":              s.nSteps,
		"step_size":            s.stepSize,
	}
}
