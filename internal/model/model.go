// Package model defines the Model Builder's collaborator interfaces
// (§4.7 stage 3): UMAP transformer, clusterer, vectorizer, c-TF-IDF,
// and representation model. Each is a pluggable external collaborator
// in the distilled spec; this package also bundles a deterministic
// reference implementation of each, used by tests and as the default
// when no heavier backend (a real UMAP/HDBSCAN binding) is configured.
package model

import (
	"math"
	"sort"
	"strings"
)

// TermWeight is a single (term, weight) pair, the common currency
// between the vectorizer/c-TF-IDF/representation stages.
type TermWeight struct {
	Term   string
	Weight float64
}

// UMAPTransformer reduces a set of equal-width vectors to a lower
// dimension. Used twice per job: once inside topic modeling (high-dim
// reduction feeding the clusterer) and once for visualization (2D).
type UMAPTransformer interface {
	FitTransform(vectors [][]float32, dims int) ([][]float32, error)
}

// Clusterer assigns each vector a cluster label, or -1 for an
// outlier, mirroring HDBSCAN's convention in the original system.
type Clusterer interface {
	FitPredict(vectors [][]float32) ([]int, error)
}

// Vectorizer turns each cluster's preprocessed documents into term
// counts, the input to c-TF-IDF.
type Vectorizer interface {
	Fit(docsByCluster map[int][]string) (vocabulary []string, counts map[int][]int, err error)
}

// CTFIDF turns per-cluster term counts into per-cluster term weights,
// BERTopic's class-based TF-IDF.
type CTFIDF interface {
	Transform(vocabulary []string, counts map[int][]int) (map[int][]TermWeight, error)
}

// RepresentationModel refines a cluster's ranked candidate terms down
// to topN, typically trading some weight for diversity.
type RepresentationModel interface {
	Represent(candidates []TermWeight, topN int) []TermWeight
}

// DeterministicUMAP projects vectors onto their first dims components,
// padding with zero if a vector is narrower than dims. It performs no
// learning and is intended for tests and as a default when no UMAP
// binding is configured.
type DeterministicUMAP struct{}

func (DeterministicUMAP) FitTransform(vectors [][]float32, dims int) ([][]float32, error) {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		row := make([]float32, dims)
		for d := 0; d < dims && d < len(v); d++ {
			row[d] = v[d]
		}
		out[i] = row
	}
	return out, nil
}

// ThresholdClusterer is a deterministic single-link clustering:
// points within Radius (euclidean distance) of one another join the
// same component; components smaller than MinClusterSize are
// relabeled outliers (-1). It stands in for HDBSCAN in tests, where a
// real density-based clusterer would be non-deterministic across
// platforms.
type ThresholdClusterer struct {
	Radius          float64
	MinClusterSize  int
}

func (c ThresholdClusterer) FitPredict(vectors [][]float32) ([]int, error) {
	n := len(vectors)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	radius := c.Radius
	if radius <= 0 {
		radius = 1.0
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if euclidean(vectors[i], vectors[j]) <= radius {
				union(i, j)
			}
		}
	}

	componentSize := make(map[int]int)
	for i := 0; i < n; i++ {
		componentSize[find(i)]++
	}

	minSize := c.MinClusterSize
	if minSize < 1 {
		minSize = 1
	}

	labels := make([]int, n)
	labelIDs := make(map[int]int)
	nextLabel := 0
	for i := 0; i < n; i++ {
		root := find(i)
		if componentSize[root] < minSize {
			labels[i] = -1
			continue
		}
		id, ok := labelIDs[root]
		if !ok {
			id = nextLabel
			labelIDs[root] = id
			nextLabel++
		}
		labels[i] = id
	}

	return labels, nil
}

func euclidean(a, b []float32) float64 {
	sum := 0.0
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// BagOfWordsVectorizer tokenizes on whitespace and lowercases, with no
// external stemming/stopword dependency (that already happened during
// preprocessing).
type BagOfWordsVectorizer struct {
	MinDF int
}

func (v BagOfWordsVectorizer) Fit(docsByCluster map[int][]string) ([]string, map[int][]int, error) {
	docFreq := make(map[string]int)
	clusterCounts := make(map[int]map[string]int)

	for cluster, docs := range docsByCluster {
		seen := make(map[string]bool)
		counts := make(map[string]int)
		for _, doc := range docs {
			for _, term := range strings.Fields(strings.ToLower(doc)) {
				counts[term]++
				if !seen[term] {
					docFreq[term]++
					seen[term] = true
				}
			}
		}
		clusterCounts[cluster] = counts
	}

	minDF := v.MinDF
	if minDF < 1 {
		minDF = 1
	}

	var vocabulary []string
	for term, freq := range docFreq {
		if freq >= minDF {
			vocabulary = append(vocabulary, term)
		}
	}
	sort.Strings(vocabulary)

	counts := make(map[int][]int, len(clusterCounts))
	for cluster, termCounts := range clusterCounts {
		row := make([]int, len(vocabulary))
		for i, term := range vocabulary {
			row[i] = termCounts[term]
		}
		counts[cluster] = row
	}

	return vocabulary, counts, nil
}

// ClassTFIDF implements BERTopic's class-based TF-IDF: c-TF-IDF(t,c) =
// tf(t,c) * log(1 + A / count_all_classes(t)), where A is the average
// number of words per class.
type ClassTFIDF struct{}

func (ClassTFIDF) Transform(vocabulary []string, counts map[int][]int) (map[int][]TermWeight, error) {
	classTotals := make(map[int]int, len(counts))
	termTotals := make([]int, len(vocabulary))
	for cluster, row := range counts {
		total := 0
		for i, c := range row {
			total += c
			termTotals[i] += c
		}
		classTotals[cluster] = total
	}

	avgWordsPerClass := 0.0
	if len(classTotals) > 0 {
		sum := 0
		for _, t := range classTotals {
			sum += t
		}
		avgWordsPerClass = float64(sum) / float64(len(classTotals))
	}

	out := make(map[int][]TermWeight, len(counts))
	for cluster, row := range counts {
		total := classTotals[cluster]
		weights := make([]TermWeight, 0, len(vocabulary))
		for i, term := range vocabulary {
			if row[i] == 0 || total == 0 {
				continue
			}
			tf := float64(row[i]) / float64(total)
			idf := math.Log(1 + avgWordsPerClass/float64(termTotals[i]))
			weights = append(weights, TermWeight{Term: term, Weight: tf * idf})
		}
		sort.Slice(weights, func(i, j int) bool { return weights[i].Weight > weights[j].Weight })
		out[cluster] = weights
	}

	return out, nil
}

// TopNRepresentation returns the topN highest-weighted candidates,
// skipping a candidate whose term is a substring of one already
// selected — a cheap stand-in for BERTopic's embedding-based MMR
// diversity selection.
type TopNRepresentation struct{}

func (TopNRepresentation) Represent(candidates []TermWeight, topN int) []TermWeight {
	sorted := make([]TermWeight, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })

	var selected []TermWeight
	for _, cand := range sorted {
		if len(selected) >= topN {
			break
		}
		redundant := false
		for _, s := range selected {
			if strings.Contains(s.Term, cand.Term) || strings.Contains(cand.Term, s.Term) {
				redundant = true
				break
			}
		}
		if !redundant {
			selected = append(selected, cand)
		}
	}
	return selected
}
