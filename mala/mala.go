// Package mala implements the Metropolis-adjusted Langevin algorithm.
package mala

import (
	"math"

	"github.com/n0madic/go-diffusive-gibbs/density"
	"github.com/n0madic/go-diffusive-gibbs/rngkey"
	"github.com/n0madic/go-diffusive-gibbs/tree"
)

// DefaultStepSize is the step size used when none is given
const DefaultStepSize = 1e-2

// State is the position of a MALA chain together with the log-density and
// gradient evaluated there.
type State struct {
	Position       tree.Tree
	LogDensity     float64
	LogDensityGrad tree.Tree
}

// CurrentPosition returns the chain position
func (s State) CurrentPosition() tree.Tree {
	return s.Position
}

// Info describes one transition
type Info struct {
	AcceptanceRate float64
	IsAccepted     bool
}

// Sampler performs MALA transitions against a fixed target
type Sampler struct {
	target   density.Model
	stepSize float64
}

// New creates a MALA sampler. A non-positive stepSize selects DefaultStepSize
func New(target density.Model, stepSize float64) *Sampler {
	if stepSize <= 0 {
		stepSize = DefaultStepSize
	}
	return &Sampler{target: target, stepSize: stepSize}
}

// StepSize returns the Langevin step size
func (s *Sampler) StepSize() float64 {
	return s.stepSize
}

// Init evaluates the target at position. The key is accepted for interface
// compatibility and not consumed.
func (s *Sampler) Init(position tree.Tree, _ rngkey.Key) State {
	logdensity, grad := s.target.ValueAndGrad(position)
	return State{Position: position, LogDensity: logdensity, LogDensityGrad: grad}
}

// Step proposes x' = x + ε∇log π(x) + √(2ε)ξ and accepts it with the
// Metropolis-Hastings ratio of the Langevin proposal.
func (s *Sampler) Step(key rngkey.Key, state State) (State, Info) {
	noiseKey, acceptKey := key.Split2()

	noise := tree.GaussianNoise(noiseKey.Source(), state.Position, 0, math.Sqrt(2*s.stepSize))
	proposal := tree.Add(tree.AddScaled(state.Position, s.stepSize, state.LogDensityGrad), noise)
	logdensity, grad := s.target.ValueAndGrad(proposal)
	next := State{Position: proposal, LogDensity: logdensity, LogDensityGrad: grad}

	logAccept := next.LogDensity - state.LogDensity +
		s.transitionLogProb(state, next) - s.transitionLogProb(next, state)
	p := density.AcceptanceProbability(logAccept)

	if acceptKey.Bernoulli(p) {
		return next, Info{AcceptanceRate: p, IsAccepted: true}
	}
	return state, Info{AcceptanceRate: p, IsAccepted: false}
}

// transitionLogProb is log q(to | from) up to a constant shared by both
// directions.
func (s *Sampler) transitionLogProb(to, from State) float64 {
	mean := tree.AddScaled(from.Position, s.stepSize, from.LogDensityGrad)
	return density.GaussianTerm(to.Position, mean, math.Sqrt(2*s.stepSize))
}
