// Package dgibbs implements the Diffusive Gibbs MCMC kernel.
//
// Each transition:
// - noises the current position with the forward diffusion kernel
// - proposes a single reverse-diffusion jump and corrects it with an exact
//   Metropolis-Hastings test
// - refines the result with a short MALA chain on the target tethered to the
//   noised position
// - advances the schedule counter
package dgibbs

import (
	"errors"

	"github.com/n0madic/go-diffusive-gibbs/density"
	"github.com/n0madic/go-diffusive-gibbs/mala"
	"github.com/n0madic/go-diffusive-gibbs/rngkey"
	"github.com/n0madic/go-diffusive-gibbs/tree"
)

// ErrNegativeNSteps is the panic value of Denoise and Kernel for a negative
// number of refinement steps.
var ErrNegativeNSteps = errors.New("dgibbs: negative number of denoising steps")

// GibbsState is the state carried between Diffusive Gibbs transitions.
//
// LogDensity and LogDensityGrad are evaluated at the position the producing
// transition started from, not at Position: after a Step they lag the
// returned position by one transition. Only the state built by Init has a
// matching pair.
type GibbsState struct {
	Position         tree.Tree
	LogDensity       float64
	LogDensityGrad   tree.Tree
	NoiseContraction float64 // alpha, in (0, 1)
	NoiseSigma       float64 // standard deviation of the added noise
	Count            int     // completed transitions
}

// InitState builds the state at position with the schedule evaluated at 0
func InitState(position tree.Tree, target density.Model, schedule Schedule) GibbsState {
	logdensity, grad := target.ValueAndGrad(position)
	contraction, sigma := schedule(0)
	return GibbsState{
		Position:         position,
		LogDensity:       logdensity,
		LogDensityGrad:   grad,
		NoiseContraction: contraction,
		NoiseSigma:       sigma,
		Count:            0,
	}
}

// Noise applies the forward diffusion kernel: alpha*position + N(0, sigma²)
func Noise(key rngkey.Key, state GibbsState) tree.Tree {
	noise := tree.GaussianNoise(key.Source(), state.Position, 0, state.NoiseSigma)
	return tree.Add(tree.Scale(state.NoiseContraction, state.Position), noise)
}

// NoiserLogPDF is the log-density of noised given clean under the forward
// kernel of state.
func NoiserLogPDF(state GibbsState, noised, clean tree.Tree) float64 {
	return density.NormalLogPDF(noised, tree.Scale(state.NoiseContraction, clean), state.NoiseSigma)
}

// InitDenoising proposes a single reverse-diffusion jump from noised and
// returns it if accepted, the state position otherwise.
func InitDenoising(key rngkey.Key, noised tree.Tree, state GibbsState, target density.Model) tree.Tree {
	position, _ := initDenoising(key, noised, state, target)
	return position
}

// proposeDenoised draws noised/alpha + N(0, (sigma/alpha)²)
func proposeDenoised(key rngkey.Key, noised tree.Tree, alpha, sigma float64) tree.Tree {
	noise := tree.GaussianNoise(key.Source(), noised, 0, sigma/alpha)
	return tree.Add(unscale(noised, alpha), noise)
}

func unscale(t tree.Tree, alpha float64) tree.Tree {
	return tree.Map(t, func(x float64) float64 { return x / alpha })
}

// denoisingLogAccept is the Metropolis-Hastings log ratio for moving from
// position to proposal given the noised observation.
func denoisingLogAccept(position, proposal, noised tree.Tree, alpha, sigma float64, target density.Model) float64 {
	scaledNoised := unscale(noised, alpha)
	reverseScale := sigma / alpha

	// reverse proposal kernel, un-diffused space
	proposalLogRatio := density.GaussianTerm(position, scaledNoised, reverseScale) -
		density.GaussianTerm(proposal, scaledNoised, reverseScale)

	// forward noising kernel, diffused space
	noisingLogRatio := density.GaussianTerm(tree.Scale(alpha, proposal), noised, sigma) -
		density.GaussianTerm(tree.Scale(alpha, position), noised, sigma)

	delta := target.LogDensity(proposal) - target.LogDensity(position)
	return delta + proposalLogRatio + noisingLogRatio
}

func initDenoising(key rngkey.Key, noised tree.Tree, state GibbsState, target density.Model) (tree.Tree, bool) {
	proposalKey, acceptKey := key.Split2()
	alpha, sigma := state.NoiseContraction, state.NoiseSigma

	proposal := proposeDenoised(proposalKey, noised, alpha, sigma)
	logAccept := denoisingLogAccept(state.Position, proposal, noised, alpha, sigma, target)
	accepted := acceptKey.Bernoulli(density.AcceptanceProbability(logAccept))

	return tree.Select(accepted, proposal, state.Position), accepted
}

// PositionState is any sampler state exposing its position
type PositionState interface {
	CurrentPosition() tree.Tree
}

// Denoiser is the inner sampler driven by Denoise
type Denoiser[S PositionState, I any] interface {
	Init(position tree.Tree, key rngkey.Key) S
	Step(key rngkey.Key, state S) (S, I)
}

// Denoise runs nSteps transitions of denoiser from position and returns the
// final position. Per-step infos are discarded. It panics with
// ErrNegativeNSteps if nSteps is negative.
func Denoise[S PositionState, I any](key rngkey.Key, position tree.Tree, denoiser Denoiser[S, I], nSteps int) tree.Tree {
	if nSteps < 0 {
		panic(ErrNegativeNSteps)
	}
	keys := key.Split(nSteps + 1)
	state := denoiser.Init(position, keys[0])
	for _, k := range keys[1:] {
		state, _ = denoiser.Step(k, state)
	}
	return state.CurrentPosition()
}

// tethered is the target penalized by a quadratic tie between alpha*x and
// the noised observation.
type tethered struct {
	target density.Model
	noised tree.Tree
	alpha  float64
	sigma  float64
}

func (t tethered) residual(x tree.Tree) tree.Tree {
	return tree.Sub(tree.Scale(t.alpha, x), t.noised)
}

func (t tethered) LogDensity(x tree.Tree) float64 {
	r := t.residual(x)
	return t.target.LogDensity(x) - tree.SquaredNorm(r)/(2*t.sigma*t.sigma)
}

func (t tethered) ValueAndGrad(x tree.Tree) (float64, tree.Tree) {
	logdensity, grad := t.target.ValueAndGrad(x)
	r := t.residual(x)
	s2 := t.sigma * t.sigma
	value := logdensity - tree.SquaredNorm(r)/(2*s2)
	return value, tree.AddScaled(grad, -t.alpha/s2, r)
}

type config struct {
	nSteps   int
	schedule Schedule
	stepSize float64
}

// Kernel performs one Diffusive Gibbs transition with the default MALA step
// size. nSteps must not be negative; like mismatched tree shapes, a negative
// count panics.
func Kernel(key rngkey.Key, state GibbsState, target density.Model, nSteps int, schedule Schedule) GibbsState {
	next, _ := kernel(key, state, target, config{nSteps: nSteps, schedule: schedule, stepSize: mala.DefaultStepSize})
	return next
}

func kernel(key rngkey.Key, state GibbsState, target density.Model, cfg config) (GibbsState, bool) {
	logdensity, grad := target.ValueAndGrad(state.Position)

	keys := key.Split(3)
	noised := Noise(keys[0], state)
	position, accepted := initDenoising(keys[1], noised, state, target)

	surrogate := tethered{
		target: target,
		noised: noised,
		alpha:  state.NoiseContraction,
		sigma:  state.NoiseSigma,
	}
	denoised := Denoise[mala.State, mala.Info](keys[2], position, mala.New(surrogate, cfg.stepSize), cfg.nSteps)

	count := state.Count + 1
	contraction, sigma := cfg.schedule(count)
	return GibbsState{
		Position:         denoised,
		LogDensity:       logdensity,
		LogDensityGrad:   grad,
		NoiseContraction: contraction,
		NoiseSigma:       sigma,
		Count:            count,
	}, accepted
}
