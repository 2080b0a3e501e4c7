// Package stem maps free-text item names onto the canonical keys used for
// aggregation.
package stem

import (
	"strings"

	"github.com/kljensen/snowball/english"
)

// Normalizer turns an item or list name into its aggregation key. Implementations
// must be deterministic and insensitive to case and plural forms.
type Normalizer interface {
	Normalize(text string) string
}

// Snowball stems every word with the English Snowball stemmer and joins the
// results without separators, so "Ice Creams" and "ice cream" share a key.
type Snowball struct{}

func (Snowball) Normalize(text string) string {
	words := strings.Fields(strings.ToLower(text))
	var b strings.Builder
	for _, w := range words {
		b.WriteString(english.Stem(w, true))
	}
	return b.String()
}

// NormalizeAll keeps order and duplicates; empty keys are dropped.
func NormalizeAll(n Normalizer, texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if key := n.Normalize(t); key != "" {
			out = append(out, key)
		}
	}
	return out
}
