package chain

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/n0madic/go-diffusive-gibbs/tree"
)

// CoordinateSummary describes one flattened coordinate across all chains
type CoordinateSummary struct {
	Index    int
	Mean     float64
	Variance float64
	RHat     float64 // NaN unless at least 2 chains with 2 samples each
}

// Summary computes pooled statistics for every flattened coordinate
func (r *Result) Summary() []CoordinateSummary {
	// per chain, per coordinate columns
	columns := make([][][]float64, 0, len(r.Traces))
	dim := 0
	for _, tr := range r.Traces {
		if len(tr.Samples) == 0 {
			continue
		}
		cols := transpose(tr.Samples)
		dim = len(cols)
		columns = append(columns, cols)
	}
	if dim == 0 {
		return nil
	}

	out := make([]CoordinateSummary, dim)
	for d := 0; d < dim; d++ {
		var pooled []float64
		perChain := make([][]float64, len(columns))
		for c, cols := range columns {
			perChain[c] = cols[d]
			pooled = append(pooled, cols[d]...)
		}
		mean, variance := stat.MeanVariance(pooled, nil)
		out[d] = CoordinateSummary{
			Index:    d,
			Mean:     mean,
			Variance: variance,
			RHat:     rHat(perChain),
		}
	}
	return out
}

func transpose(samples []tree.Tree) [][]float64 {
	dim := samples[0].Size()
	cols := make([][]float64, dim)
	for d := range cols {
		cols[d] = make([]float64, len(samples))
	}
	for s, sample := range samples {
		for d, v := range tree.Flatten(sample) {
			cols[d][s] = v
		}
	}
	return cols
}

// rHat is the Gelman-Rubin potential scale reduction factor. Chains are
// truncated to the shortest one.
func rHat(chains [][]float64) float64 {
	if len(chains) < 2 {
		return math.NaN()
	}
	n := len(chains[0])
	for _, c := range chains {
		n = min(n, len(c))
	}
	if n < 2 {
		return math.NaN()
	}

	means := make([]float64, len(chains))
	within := 0.0
	for i, c := range chains {
		mean, variance := stat.MeanVariance(c[:n], nil)
		means[i] = mean
		within += variance
	}
	within /= float64(len(chains))
	between := stat.Variance(means, nil) // B/n

	if within == 0 {
		return math.NaN()
	}
	pooled := float64(n-1)/float64(n)*within + between
	return math.Sqrt(pooled / within)
}
