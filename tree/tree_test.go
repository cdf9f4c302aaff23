package tree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mathext/prng"
	"gonum.org/v1/gonum/stat"
)

func TestNewCopiesData(t *testing.T) {
	data := []float64{1, 2, 3}
	tr := New(data, []float64{4})
	data[0] = 100

	assert.Equal(t, [][]float64{{1, 2, 3}, {4}}, tr.ToSlices())
	assert.Equal(t, 4, tr.Size())
}

func TestElementwiseOps(t *testing.T) {
	a := New([]float64{1, 2}, []float64{3})
	b := New([]float64{0.5, -1}, []float64{2})

	tests := []struct {
		name string
		got  Tree
		want [][]float64
	}{
		{"scale", Scale(2, a), [][]float64{{2, 4}, {6}}},
		{"add", Add(a, b), [][]float64{{1.5, 1}, {5}}},
		{"sub", Sub(a, b), [][]float64{{0.5, 3}, {1}}},
		{"add scaled", AddScaled(a, -2, b), [][]float64{{0, 4}, {-1}}},
		{"map", Map(a, func(x float64) float64 { return x * x }), [][]float64{{1, 4}, {9}}},
		{"map2", Map2(a, b, math.Max), [][]float64{{1, 2}, {3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got.ToSlices())
		})
	}

	// inputs untouched
	assert.Equal(t, [][]float64{{1, 2}, {3}}, a.ToSlices())
	assert.Equal(t, [][]float64{{0.5, -1}, {2}}, b.ToSlices())
}

func TestReductions(t *testing.T) {
	a := New([]float64{1, 2}, []float64{-3})
	b := New([]float64{0, 0}, []float64{1})

	assert.InDelta(t, 0.0, Sum(a), 1e-12)
	assert.InDelta(t, 14.0, SquaredNorm(a), 1e-12)
	assert.InDelta(t, 1+4+16.0, SquaredDistance(a, b), 1e-12)
}

func TestShapeMismatchPanics(t *testing.T) {
	tests := []struct {
		name string
		a, b Tree
		leaf int
	}{
		{"leaf count", New([]float64{1}), New([]float64{1}, []float64{2}), -1},
		{"leaf size", New([]float64{1}, []float64{1, 2}), New([]float64{1}, []float64{1}), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, SameShape(tt.a, tt.b))
			defer func() {
				r := recover()
				require.NotNil(t, r)
				err, ok := r.(*ShapeError)
				require.True(t, ok, "panic value %T", r)
				assert.Equal(t, tt.leaf, err.Leaf)
			}()
			Add(tt.a, tt.b)
		})
	}
}

func TestSelectReturnsCopies(t *testing.T) {
	a := New([]float64{1, 2})
	b := New([]float64{3, 4})

	got := Select(true, a, b)
	assert.True(t, Equal(got, a))
	got[0].SetVec(0, 99)
	assert.Equal(t, 1.0, a[0].AtVec(0))

	assert.True(t, Equal(Select(false, a, b), b))
}

func TestFlattenUnflatten(t *testing.T) {
	ref := New([]float64{0, 0, 0}, []float64{0}, []float64{0, 0})
	data := []float64{1, 2, 3, 4, 5, 6}

	tr := Unflatten(ref, data)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4}, {5, 6}}, tr.ToSlices())
	assert.Equal(t, data, Flatten(tr))

	assert.Panics(t, func() { Unflatten(ref, data[:5]) })
}

func TestEqualAndFinite(t *testing.T) {
	a := New([]float64{1, 2})
	assert.True(t, Equal(a, a.Clone()))
	assert.False(t, Equal(a, New([]float64{1, 2.0001})))
	assert.True(t, EqualApprox(a, New([]float64{1, 2.0001}), 1e-3))
	assert.False(t, Equal(a, New([]float64{1, 2}, []float64{3})))

	assert.True(t, IsFinite(a))
	assert.False(t, IsFinite(New([]float64{math.NaN()})))
	assert.False(t, IsFinite(New([]float64{1, math.Inf(-1)})))
}

func TestGaussianNoise(t *testing.T) {
	ref := New(make([]float64, 20000))

	t.Run("zero scale is the mean", func(t *testing.T) {
		got := GaussianNoise(prng.NewXoshiro256plusplus(1), New([]float64{5, 6}), 3, 0)
		assert.Equal(t, [][]float64{{3, 3}}, got.ToSlices())
	})

	t.Run("moments", func(t *testing.T) {
		got := Flatten(GaussianNoise(prng.NewXoshiro256plusplus(7), ref, 1.5, 2))
		mean, variance := stat.MeanVariance(got, nil)
		assert.InDelta(t, 1.5, mean, 0.05)
		assert.InDelta(t, 4.0, variance, 0.15)
	})

	t.Run("deterministic per source", func(t *testing.T) {
		a := GaussianNoise(prng.NewXoshiro256plusplus(11), ref, 0, 1)
		b := GaussianNoise(prng.NewXoshiro256plusplus(11), ref, 0, 1)
		assert.True(t, Equal(a, b))
	})
}
