package density

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/n0madic/go-diffusive-gibbs/tree"
)

// IsotropicNormal is an independent N(Mean, Sigma²) law on every element.
type IsotropicNormal struct {
	Mean  float64
	Sigma float64
}

// StandardNormal returns the N(0, 1) target.
func StandardNormal() IsotropicNormal {
	return IsotropicNormal{Mean: 0, Sigma: 1}
}

// LogDensity implements Model.
func (n IsotropicNormal) LogDensity(x tree.Tree) float64 {
	return NormalLogPDF(x, tree.Map(x, func(float64) float64 { return n.Mean }), n.Sigma)
}

// ValueAndGrad implements Model. The gradient is -(x-Mean)/Sigma².
func (n IsotropicNormal) ValueAndGrad(x tree.Tree) (float64, tree.Tree) {
	s2 := n.Sigma * n.Sigma
	grad := tree.Map(x, func(v float64) float64 { return -(v - n.Mean) / s2 })
	return n.LogDensity(x), grad
}

// GaussianMixture places an equally weighted mixture of N(m, Sigma²)
// components, one per entry of Means, independently on every element.
type GaussianMixture struct {
	Means []float64
	Sigma float64
}

// componentLogs fills buf with the per-component log-densities of v.
func (g GaussianMixture) componentLogs(buf []float64, v float64) {
	norm := -math.Log(g.Sigma) - 0.5*math.Log(2*math.Pi) - math.Log(float64(len(g.Means)))
	for k, m := range g.Means {
		d := v - m
		buf[k] = norm - d*d/(2*g.Sigma*g.Sigma)
	}
}

// LogDensity implements Model.
func (g GaussianMixture) LogDensity(x tree.Tree) float64 {
	buf := make([]float64, len(g.Means))
	total := 0.0
	for _, v := range tree.Flatten(x) {
		g.componentLogs(buf, v)
		total += floats.LogSumExp(buf)
	}
	return total
}

// ValueAndGrad implements Model.
func (g GaussianMixture) ValueAndGrad(x tree.Tree) (float64, tree.Tree) {
	buf := make([]float64, len(g.Means))
	s2 := g.Sigma * g.Sigma
	total := 0.0
	grad := tree.Map(x, func(v float64) float64 {
		g.componentLogs(buf, v)
		lse := floats.LogSumExp(buf)
		total += lse
		d := 0.0
		for k, m := range g.Means {
			d += math.Exp(buf[k]-lse) * (m - v) / s2
		}
		return d
	})
	return total, grad
}
