// Package tree implements the nested numeric structure that samplers move
// around: an ordered list of named-by-position leaves, each a gonum vector.
//
// Every operation returns a new Tree; inputs are never modified. Binary
// operations require both trees to have the same shape and panic with a
// *ShapeError otherwise.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Tree is an ordered collection of numeric leaves.
type Tree []*mat.VecDense

// ShapeError reports two trees whose structure differs.
type ShapeError struct {
	Leaf     int // leaf index, -1 when the leaf counts differ
	Expected int
	Got      int
}

func (e *ShapeError) Error() string {
	if e.Leaf < 0 {
		return fmt.Sprintf("tree: leaf count mismatch: expected %d, got %d", e.Expected, e.Got)
	}
	return fmt.Sprintf("tree: leaf %d must have size %d, got %d", e.Leaf, e.Expected, e.Got)
}

// New builds a tree from leaf data. The data is copied. Leaves must be
// non-empty.
func New(leaves ...[]float64) Tree {
	t := make(Tree, len(leaves))
	for i, leaf := range leaves {
		data := make([]float64, len(leaf))
		copy(data, leaf)
		t[i] = mat.NewVecDense(len(data), data)
	}
	return t
}

// FromSlices is an alias of New for callers holding a [][]float64.
func FromSlices(leaves [][]float64) Tree {
	return New(leaves...)
}

// ToSlices copies the leaves out into plain slices.
func (t Tree) ToSlices() [][]float64 {
	out := make([][]float64, len(t))
	for i, leaf := range t {
		out[i] = make([]float64, leaf.Len())
		copy(out[i], leaf.RawVector().Data)
	}
	return out
}

// Zeros returns a tree shaped like ref with every element zero.
func Zeros(ref Tree) Tree {
	out := make(Tree, len(ref))
	for i, leaf := range ref {
		out[i] = mat.NewVecDense(leaf.Len(), nil)
	}
	return out
}

// Clone returns a deep copy of t.
func (t Tree) Clone() Tree {
	out := make(Tree, len(t))
	for i, leaf := range t {
		v := mat.NewVecDense(leaf.Len(), nil)
		v.CopyVec(leaf)
		out[i] = v
	}
	return out
}

// Size returns the total number of elements across all leaves.
func (t Tree) Size() int {
	n := 0
	for _, leaf := range t {
		n += leaf.Len()
	}
	return n
}

// SameShape reports whether a and b have the same leaf count and leaf sizes.
func SameShape(a, b Tree) bool {
	return shapeError(a, b) == nil
}

func shapeError(a, b Tree) *ShapeError {
	if len(a) != len(b) {
		return &ShapeError{Leaf: -1, Expected: len(a), Got: len(b)}
	}
	for i := range a {
		if a[i].Len() != b[i].Len() {
			return &ShapeError{Leaf: i, Expected: a[i].Len(), Got: b[i].Len()}
		}
	}
	return nil
}

func mustMatch(a, b Tree) {
	if err := shapeError(a, b); err != nil {
		panic(err)
	}
}

// Map applies f to every element of t.
func Map(t Tree, f func(x float64) float64) Tree {
	out := Zeros(t)
	for i, leaf := range t {
		src := leaf.RawVector().Data
		dst := out[i].RawVector().Data
		for j, x := range src {
			dst[j] = f(x)
		}
	}
	return out
}

// Map2 applies f element-wise to two trees of identical shape.
func Map2(a, b Tree, f func(x, y float64) float64) Tree {
	mustMatch(a, b)
	out := Zeros(a)
	for i := range a {
		xs := a[i].RawVector().Data
		ys := b[i].RawVector().Data
		dst := out[i].RawVector().Data
		for j := range xs {
			dst[j] = f(xs[j], ys[j])
		}
	}
	return out
}

// Reduce sums f over the leaves of t.
func Reduce(t Tree, f func(leaf *mat.VecDense) float64) float64 {
	total := 0.0
	for _, leaf := range t {
		total += f(leaf)
	}
	return total
}

// Sum returns the sum of all elements.
func Sum(t Tree) float64 {
	return Reduce(t, func(leaf *mat.VecDense) float64 {
		return floats.Sum(leaf.RawVector().Data)
	})
}

// Scale returns alpha*t.
func Scale(alpha float64, t Tree) Tree {
	out := Zeros(t)
	for i, leaf := range t {
		out[i].ScaleVec(alpha, leaf)
	}
	return out
}

// Add returns a+b.
func Add(a, b Tree) Tree {
	mustMatch(a, b)
	out := Zeros(a)
	for i := range a {
		out[i].AddVec(a[i], b[i])
	}
	return out
}

// Sub returns a-b.
func Sub(a, b Tree) Tree {
	mustMatch(a, b)
	out := Zeros(a)
	for i := range a {
		out[i].SubVec(a[i], b[i])
	}
	return out
}

// AddScaled returns a + alpha*b.
func AddScaled(a Tree, alpha float64, b Tree) Tree {
	mustMatch(a, b)
	out := Zeros(a)
	for i := range a {
		out[i].AddScaledVec(a[i], alpha, b[i])
	}
	return out
}

// SquaredNorm returns the sum over leaves of ||t||².
func SquaredNorm(t Tree) float64 {
	return Reduce(t, func(leaf *mat.VecDense) float64 {
		return mat.Dot(leaf, leaf)
	})
}

// SquaredDistance returns the sum over leaves of ||a-b||².
func SquaredDistance(a, b Tree) float64 {
	return SquaredNorm(Sub(a, b))
}

// Select returns a copy of onTrue if cond holds, a copy of onFalse otherwise.
// The two trees must share a shape; the decision applies to every leaf.
func Select(cond bool, onTrue, onFalse Tree) Tree {
	mustMatch(onTrue, onFalse)
	if cond {
		return onTrue.Clone()
	}
	return onFalse.Clone()
}

// Flatten concatenates all leaves into one slice.
func Flatten(t Tree) []float64 {
	out := make([]float64, 0, t.Size())
	for _, leaf := range t {
		out = append(out, leaf.RawVector().Data...)
	}
	return out
}

// Unflatten splits data into a tree shaped like ref.
func Unflatten(ref Tree, data []float64) Tree {
	if len(data) != ref.Size() {
		panic(&ShapeError{Leaf: -1, Expected: ref.Size(), Got: len(data)})
	}
	out := Zeros(ref)
	offset := 0
	for _, leaf := range out {
		n := leaf.Len()
		copy(leaf.RawVector().Data, data[offset:offset+n])
		offset += n
	}
	return out
}

// Equal reports element-wise exact equality. Trees of different shape are
// not equal.
func Equal(a, b Tree) bool {
	if !SameShape(a, b) {
		return false
	}
	for i := range a {
		if !mat.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// EqualApprox reports element-wise equality within tol.
func EqualApprox(a, b Tree, tol float64) bool {
	if !SameShape(a, b) {
		return false
	}
	for i := range a {
		if !mat.EqualApprox(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

// IsFinite reports whether no element is NaN or infinite.
func IsFinite(t Tree) bool {
	for _, leaf := range t {
		for _, x := range leaf.RawVector().Data {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}

// GaussianNoise draws a tree shaped like ref with independent N(mean, scale²)
// elements from src. With scale 0 every element equals mean.
func GaussianNoise(src rand.Source, ref Tree, mean, scale float64) Tree {
	dist := distuv.Normal{Mu: mean, Sigma: scale, Src: src}
	out := Zeros(ref)
	for _, leaf := range out {
		data := leaf.RawVector().Data
		for j := range data {
			data[j] = dist.Rand()
		}
	}
	return out
}
