package experiment

import "sort"

// Candidate is one hyperparameter point, keyed by the TopicModeling
// field it targets ("min_topic_size", "max_topic_size",
// "clustering_conservativeness", "top_n_words"). Mirrors the
// original_source constraint/suggest shape, treated here as an
// external sampler per §4.8.
type Candidate map[string]any

// Suggester produces the next hyperparameter candidate to trial, or
// ok=false once it has nothing left to offer.
type Suggester interface {
	Suggest() (Candidate, bool)
}

// GridSuggester enumerates the full cartesian product of a parameter
// grid, one combination per Suggest call — the deterministic stand-in
// for an external Bayesian sampler (the corpus carries no
// hyperparameter-search library; this is stdlib odometer-style
// enumeration, justified in DESIGN.md the same way internal/model's
// reference algorithms are).
type GridSuggester struct {
	keys   []string
	values [][]any
	idx    []int
	empty  bool
	done   bool
}

// NewGridSuggester builds a suggester over the given parameter grid.
func NewGridSuggester(params map[string][]any) *GridSuggester {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([][]any, len(keys))
	empty := false
	for i, k := range keys {
		values[i] = params[k]
		if len(values[i]) == 0 {
			empty = true
		}
	}

	return &GridSuggester{keys: keys, values: values, idx: make([]int, len(keys)), empty: empty}
}

// Suggest returns the next grid point in odometer order.
func (g *GridSuggester) Suggest() (Candidate, bool) {
	if g.done || g.empty {
		return nil, false
	}

	candidate := make(Candidate, len(g.keys))
	for i, k := range g.keys {
		candidate[k] = g.values[i][g.idx[i]]
	}

	if len(g.keys) == 0 {
		g.done = true
		return candidate, true
	}

	for i := len(g.idx) - 1; i >= 0; i-- {
		g.idx[i]++
		if g.idx[i] < len(g.values[i]) {
			return candidate, true
		}
		g.idx[i] = 0
		if i == 0 {
			g.done = true
		}
	}

	return candidate, true
}
