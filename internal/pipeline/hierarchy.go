package pipeline

import (
	"fmt"
	"math"

	"github.com/ternarybob/analysisd/internal/project"
)

// hnode is one node of the in-progress hierarchy build: a Topic plus
// the centroid vector that represents it for the next merge round.
type hnode struct {
	topic    project.Topic
	centroid []float32
}

// buildHierarchy recursively merges the two most cosine-similar
// topics into a parent node, repeating until a single root remains or
// a layer fails to find any mergeable pair (§4.7 stage 7). This
// stands in for the original system's Louvain community detection on
// a cosine similarity graph: both converge on a single-linkage
// dendrogram over topic centroids, but this version is deterministic
// and dependency-free, matching internal/model's reference-algorithm
// policy.
func buildHierarchy(topics []project.Topic, centroids map[int][]float32) project.Topic {
	if len(topics) == 0 {
		return project.Topic{ID: -1, Label: "root"}
	}

	nodes := make([]hnode, len(topics))
	nextID := 0
	for i, t := range topics {
		nodes[i] = hnode{topic: t, centroid: centroids[t.ID]}
		if t.ID >= nextID {
			nextID = t.ID + 1
		}
	}

	for len(nodes) > 1 {
		bestI, bestJ, bestSim := -1, -1, -2.0
		for i := 0; i < len(nodes); i++ {
			for j := i + 1; j < len(nodes); j++ {
				sim := cosineSimilarity(nodes[i].centroid, nodes[j].centroid)
				if sim > bestSim {
					bestI, bestJ, bestSim = i, j, sim
				}
			}
		}
		if bestI == -1 {
			break
		}

		merged := hnode{
			topic: project.Topic{
				ID:        nextID,
				Label:     fmt.Sprintf("%s + %s", nodes[bestI].topic.Label, nodes[bestJ].topic.Label),
				Frequency: nodes[bestI].topic.Frequency + nodes[bestJ].topic.Frequency,
				Children:  []project.Topic{nodes[bestI].topic, nodes[bestJ].topic},
			},
			centroid: averageVectors(nodes[bestI].centroid, nodes[bestJ].centroid),
		}
		nextID++

		rest := make([]hnode, 0, len(nodes)-1)
		for i, n := range nodes {
			if i != bestI && i != bestJ {
				rest = append(rest, n)
			}
		}
		nodes = append(rest, merged)
	}

	return nodes[0].topic
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return -2.0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func averageVectors(a, b []float32) []float32 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var av, bv float32
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i] = (av + bv) / 2
	}
	return out
}
