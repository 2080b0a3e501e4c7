// Package factor approximates the dense user x item affinity matrix as the
// product of two low-rank feature matrices trained by gradient descent.
package factor

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyInput    = errors.New("factorization input has no users or no items")
	ErrShapeMismatch = errors.New("feature matrices do not match the data matrix")
	ErrDiverged      = errors.New("factorization produced non-finite values")
)

// Params controls one factorization run.
type Params struct {
	Rank           int
	LearningRate   float64
	Regularization float64
	Epochs         int
}

// AdaptiveRank picks ceil(sqrt(min(users, items))), at least 1.
func AdaptiveRank(users, items int) int {
	n := min(users, items)
	if n <= 1 {
		return 1
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// InitFactors returns deterministic users x rank and rank x items matrices with
// entries drawn uniformly from [lo, hi).
func InitFactors(users, items, rank int, seed uint64, lo, hi float64) (*mat.Dense, *mat.Dense, error) {
	if users <= 0 || items <= 0 {
		return nil, nil, ErrEmptyInput
	}
	if rank <= 0 {
		return nil, nil, fmt.Errorf("rank %d: %w", rank, ErrShapeMismatch)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	fill := func(n int) []float64 {
		data := make([]float64, n)
		for i := range data {
			data[i] = lo + (hi-lo)*rng.Float64()
		}
		return data
	}
	u := mat.NewDense(users, rank, fill(users*rank))
	v := mat.NewDense(rank, items, fill(rank*items))
	return u, v, nil
}

// Factorize runs Epochs passes of stochastic gradient descent over every cell of r,
// zeros included, and returns U·V. u0 and v0 are copied, never modified.
func Factorize(r mat.Matrix, u0, v0 mat.Matrix, p Params) (*mat.Dense, error) {
	if r == nil || u0 == nil || v0 == nil {
		return nil, ErrEmptyInput
	}
	users, items := r.Dims()
	if users == 0 || items == 0 {
		return nil, ErrEmptyInput
	}
	ur, uk := u0.Dims()
	vk, vc := v0.Dims()
	if ur != users || vc != items || uk != vk || uk == 0 {
		return nil, fmt.Errorf("data %dx%d, user features %dx%d, item features %dx%d: %w",
			users, items, ur, uk, vk, vc, ErrShapeMismatch)
	}
	if p.Rank > 0 && p.Rank != uk {
		return nil, fmt.Errorf("rank %d, features have %d: %w", p.Rank, uk, ErrShapeMismatch)
	}

	u := mat.DenseCopyOf(u0)
	v := mat.DenseCopyOf(v0)
	lr, reg := p.LearningRate, p.Regularization

	for epoch := 0; epoch < p.Epochs; epoch++ {
		for i := 0; i < users; i++ {
			for j := 0; j < items; j++ {
				e := r.At(i, j) - predict(u, v, i, j, uk)
				for k := 0; k < uk; k++ {
					uik, vkj := u.At(i, k), v.At(k, j)
					u.Set(i, k, uik+lr*(e*vkj-reg*uik))
					v.Set(k, j, vkj+lr*(e*uik-reg*vkj))
				}
			}
		}
	}

	var out mat.Dense
	out.Mul(u, v)
	if !finite(&out) {
		return nil, ErrDiverged
	}
	return &out, nil
}

func predict(u, v *mat.Dense, i, j, rank int) float64 {
	var sum float64
	for k := 0; k < rank; k++ {
		sum += u.At(i, k) * v.At(k, j)
	}
	return sum
}

func finite(m *mat.Dense) bool {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x := m.At(i, j)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}
