package factor

import (
	"gonum.org/v1/gonum/mat"
)

// Profile is one user's decayed scores, a row of the data matrix.
type Profile struct {
	UserID string
	Scores map[string]float64
}

// Matrix is the dense data matrix plus the labels of its rows and columns.
type Matrix struct {
	Users []string
	Items []string
	R     *mat.Dense
}

// Build lays profiles out as rows in the order given and items as columns in the
// order given. Missing scores are 0.
func Build(profiles []Profile, items []string) (*Matrix, error) {
	if len(profiles) == 0 || len(items) == 0 {
		return nil, ErrEmptyInput
	}
	col := make(map[string]int, len(items))
	for j, item := range items {
		col[item] = j
	}

	r := mat.NewDense(len(profiles), len(items), nil)
	users := make([]string, len(profiles))
	for i, p := range profiles {
		users[i] = p.UserID
		for item, score := range p.Scores {
			if j, ok := col[item]; ok {
				r.Set(i, j, score)
			}
		}
	}
	return &Matrix{
		Users: users,
		Items: append([]string(nil), items...),
		R:     r,
	}, nil
}

// Init holds the initialization used by Matrix.Predict.
type Init struct {
	Seed uint64
	Min  float64
	Max  float64
}

// Predict factorizes the matrix and labels the reconstruction.
func (m *Matrix) Predict(p Params, init Init) (*Prediction, error) {
	users, items := m.R.Dims()
	if p.Rank <= 0 {
		p.Rank = AdaptiveRank(users, items)
	}
	u0, v0, err := InitFactors(users, items, p.Rank, init.Seed, init.Min, init.Max)
	if err != nil {
		return nil, err
	}
	rhat, err := Factorize(m.R, u0, v0, p)
	if err != nil {
		return nil, err
	}

	values := make([][]float64, users)
	for i := range values {
		values[i] = mat.Row(nil, i, rhat)
	}
	return &Prediction{Users: m.Users, Items: m.Items, Values: values}, nil
}

// Prediction is a labelled reconstruction. It is plain data so it can be cached.
type Prediction struct {
	Users  []string    `json:"users"`
	Items  []string    `json:"items"`
	Values [][]float64 `json:"values"`
}

// Row returns the predicted score of every item for one user.
func (p *Prediction) Row(userID string) (map[string]float64, bool) {
	for i, u := range p.Users {
		if u != userID {
			continue
		}
		if i >= len(p.Values) {
			return nil, false
		}
		out := make(map[string]float64, len(p.Items))
		for j, item := range p.Items {
			if j < len(p.Values[i]) {
				out[item] = p.Values[i][j]
			}
		}
		return out, true
	}
	return nil, false
}
