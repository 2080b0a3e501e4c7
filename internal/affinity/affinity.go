// Package affinity keeps the per (user, category) tallies behind recommendations:
// a raw lifetime occurrence count and a recency-decayed score for every item stem.
//
// A new-list event is one decay tick. At the start of a tick every known stem freezes
// its score as the baseline and then decays to DecayFactor*baseline, plus
// RecencyWeight when the stem is on the new list. Appends to the open list re-affirm
// a stem against that same baseline rather than adding to it. Before a stem has been
// through a tick it accumulates additively, which leaves first-list scores unbounded.
package affinity

import (
	"sort"
	"time"
)

const (
	DecayFactor    = 0.6
	RecencyWeight  = 0.4
	ColdStartScore = 1.0
	// DecrementStep is removed from a stem's score by Decrement.
	DecrementStep = 1.0
)

// EventKind tags how the list store touched a list.
type EventKind string

const (
	EventNewList EventKind = "new_list"
	EventAppend  EventKind = "append"
)

func (k EventKind) Valid() bool {
	return k == EventNewList || k == EventAppend
}

// Entry is the state of one stem inside a record.
type Entry struct {
	Count    int64   `json:"count"`
	Score    float64 `json:"score"`
	Baseline float64 `json:"baseline"`
	// Anchored is set once the stem has a baseline to decay from.
	Anchored bool `json:"anchored"`
}

// Record holds both the raw and the decayed view for one (user, category).
type Record struct {
	UserID    string
	Category  string
	Lists     int64
	Entries   map[string]*Entry
	UpdatedAt time.Time
}

func NewRecord(userID, category string) *Record {
	return &Record{
		UserID:   userID,
		Category: category,
		Entries:  make(map[string]*Entry),
	}
}

// Apply dispatches on the event kind. Unknown kinds are ignored.
func (r *Record) Apply(kind EventKind, stems []string) {
	switch kind {
	case EventNewList:
		r.ApplyNewList(stems)
	case EventAppend:
		r.ApplyAppend(stems)
	}
}

// ApplyNewList starts a new tick with the given stems on the list.
func (r *Record) ApplyNewList(stems []string) {
	r.init()
	r.Lists++
	present := occurrences(stems)

	for stem, e := range r.Entries {
		e.Baseline = e.Score
		e.Anchored = true
		e.Score = DecayFactor * e.Baseline
		if _, ok := present[stem]; ok {
			e.Score += RecencyWeight
		}
	}
	for stem, n := range present {
		e, ok := r.Entries[stem]
		if !ok {
			e = &Entry{Score: ColdStartScore}
			r.Entries[stem] = e
		}
		e.Count += n
	}
}

// ApplyAppend records stems added to the list opened by the latest tick.
func (r *Record) ApplyAppend(stems []string) {
	r.init()
	for stem, n := range occurrences(stems) {
		e, ok := r.Entries[stem]
		switch {
		case !ok && r.Lists <= 1:
			e = &Entry{Score: ColdStartScore}
			r.Entries[stem] = e
		case !ok:
			// joins a list that already decayed: baseline zero
			e = &Entry{Anchored: true, Score: RecencyWeight}
			r.Entries[stem] = e
		case e.Anchored:
			e.Score = DecayFactor*e.Baseline + RecencyWeight
		default:
			e.Score += ColdStartScore
		}
		e.Count += n
	}
}

// Decrement lowers the score of a stem by DecrementStep for every time it is named.
// Other stems and all raw counts are left alone.
func (r *Record) Decrement(stems []string) {
	for _, stem := range stems {
		r.entry(stem).Score -= DecrementStep
	}
}

// RetractCounts undoes raw occurrences, one per mention, never going below zero.
func (r *Record) RetractCounts(stems []string) {
	for _, stem := range stems {
		e, ok := r.Entries[stem]
		if !ok || e.Count == 0 {
			continue
		}
		e.Count--
	}
}

func (r *Record) Score(stem string) float64 {
	if e, ok := r.Entries[stem]; ok {
		return e.Score
	}
	return 0
}

func (r *Record) Count(stem string) int64 {
	if e, ok := r.Entries[stem]; ok {
		return e.Count
	}
	return 0
}

// Scores is a snapshot of the decayed view.
func (r *Record) Scores() map[string]float64 {
	out := make(map[string]float64, len(r.Entries))
	for stem, e := range r.Entries {
		out[stem] = e.Score
	}
	return out
}

// Counts is a snapshot of the raw view.
func (r *Record) Counts() map[string]int64 {
	out := make(map[string]int64, len(r.Entries))
	for stem, e := range r.Entries {
		out[stem] = e.Count
	}
	return out
}

// Stems lists every tracked stem in lexical order.
func (r *Record) Stems() []string {
	out := make([]string, 0, len(r.Entries))
	for stem := range r.Entries {
		out = append(out, stem)
	}
	sort.Strings(out)
	return out
}

func occurrences(stems []string) map[string]int64 {
	out := make(map[string]int64, len(stems))
	for _, stem := range stems {
		out[stem]++
	}
	return out
}

func (r *Record) init() {
	if r.Entries == nil {
		r.Entries = make(map[string]*Entry)
	}
}

func (r *Record) entry(stem string) *Entry {
	r.init()
	e, ok := r.Entries[stem]
	if !ok {
		e = &Entry{}
		r.Entries[stem] = e
	}
	return e
}
