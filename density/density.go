// Package density describes unnormalized target log-densities over trees and
// the Gaussian quantities shared by the samplers.
package density

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/n0madic/go-diffusive-gibbs/tree"
)

// Func is an unnormalized log-density.
type Func func(x tree.Tree) float64

// GradFunc returns the log-density at x together with its gradient, which has
// the shape of x.
type GradFunc func(x tree.Tree) (float64, tree.Tree)

// Model is a log-density with access to its gradient.
type Model interface {
	LogDensity(x tree.Tree) float64
	ValueAndGrad(x tree.Tree) (float64, tree.Tree)
}

type funcModel struct {
	f    Func
	grad GradFunc
}

func (m funcModel) LogDensity(x tree.Tree) float64 {
	return m.f(x)
}

func (m funcModel) ValueAndGrad(x tree.Tree) (float64, tree.Tree) {
	return m.grad(x)
}

// FromFunc wraps f in a Model whose gradient is estimated with central
// finite differences.
func FromFunc(f Func) Model {
	return funcModel{f: f, grad: FiniteDifferenceGrad(f)}
}

// WithGradient pairs f with an analytic gradient.
func WithGradient(f Func, grad GradFunc) Model {
	return funcModel{f: f, grad: grad}
}

// FiniteDifferenceGrad estimates the gradient of f with the central formula.
func FiniteDifferenceGrad(f Func) GradFunc {
	settings := &fd.Settings{Formula: fd.Central}
	return func(x tree.Tree) (float64, tree.Tree) {
		flat := func(data []float64) float64 {
			return f(tree.Unflatten(x, data))
		}
		g := fd.Gradient(nil, flat, tree.Flatten(x), settings)
		return f(x), tree.Unflatten(x, g)
	}
}

// GaussianTerm returns the unnormalized Gaussian log-density of a centred on
// b, -Σ ||a-b||² / (2 scale²), summed over leaves.
func GaussianTerm(a, b tree.Tree, scale float64) float64 {
	return -tree.SquaredDistance(a, b) / (2 * scale * scale)
}

// NormalLogPDF returns the normalized log-density of x under independent
// N(mean, sigma²) elements, summed over leaves.
func NormalLogPDF(x, mean tree.Tree, sigma float64) float64 {
	if !tree.SameShape(x, mean) {
		panic(&tree.ShapeError{Leaf: -1, Expected: mean.Size(), Got: x.Size()})
	}
	total := 0.0
	for i, leaf := range x {
		mu := mean[i].RawVector().Data
		for j, v := range leaf.RawVector().Data {
			total += distuv.Normal{Mu: mu[j], Sigma: sigma}.LogProb(v)
		}
	}
	return total
}

// AcceptanceProbability maps a Metropolis-Hastings log ratio to a
// probability in [0, 1]. NaN maps to 0.
func AcceptanceProbability(logAccept float64) float64 {
	if math.IsNaN(logAccept) {
		return 0
	}
	return math.Min(1, math.Max(0, math.Exp(logAccept)))
}
