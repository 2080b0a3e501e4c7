// Package ranking orders and filters (stem, score) candidates coming from either
// the user's own history or the collaborative model.
package ranking

import (
	"errors"
	"sort"

	"listwise/internal/stem"
)

var ErrNoQualifying = errors.New("no qualifying recommendation")

// Suggestion is the shared shape of both recommendation sources.
type Suggestion struct {
	Stem  string  `json:"stem"`
	Score float64 `json:"score"`
	// Name is the display form, filled in by the caller when known.
	Name string `json:"name,omitempty"`
}

// Rank keeps the scores accepted by keep (all of them when keep is nil) and sorts
// them by descending score, ties by stem.
func Rank(scores map[string]float64, keep func(float64) bool) []Suggestion {
	out := make([]Suggestion, 0, len(scores))
	for s, score := range scores {
		if keep != nil && !keep(score) {
			continue
		}
		out = append(out, Suggestion{Stem: s, Score: score})
	}
	Sort(out)
	return out
}

// Positive is a Rank filter for scores above zero.
func Positive(score float64) bool { return score > 0 }

func Sort(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].Stem < s[j].Stem
	})
}

// Selector applies exclusion and threshold policy on top of ranked candidates.
type Selector struct {
	normalizer stem.Normalizer
}

func NewSelector(normalizer stem.Normalizer) *Selector {
	return &Selector{normalizer: normalizer}
}

// Select drops candidates whose stem matches a normalized exclude entry or whose
// score is not above threshold. Candidate order is preserved. An empty result is
// ErrNoQualifying, never an empty slice.
func (s *Selector) Select(candidates []Suggestion, exclude []string, threshold float64) ([]Suggestion, error) {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
		if s.normalizer != nil {
			skip[s.normalizer.Normalize(e)] = struct{}{}
		}
	}

	out := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := skip[c.Stem]; ok {
			continue
		}
		if c.Score <= threshold {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, ErrNoQualifying
	}
	return out, nil
}

// Top truncates to at most n entries; n <= 0 keeps everything.
func Top(s []Suggestion, n int) []Suggestion {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
