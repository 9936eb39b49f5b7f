// Package pipeline implements the Pipeline Orchestrator (C7): a
// linearly ordered sequence of stages sharing one mutable State,
// grounded on original_source's procedure.py run order and on the
// teacher's pkg/orchestra Architect/Worker/Validator discrete-stage
// shape.
package pipeline

import (
	"context"

	"github.com/ternarybob/analysisd/internal/embedding"
	"github.com/ternarybob/analysisd/internal/model"
	"github.com/ternarybob/analysisd/internal/project"
	"github.com/ternarybob/analysisd/internal/task"
)

// Collaborators bundles the Model Builder stage's output: every
// pluggable algorithm the remaining stages need. Embedder may be
// pre-populated by the caller (e.g. a configured Gemini transformer);
// the Model Builder stage only fills in whatever is left nil.
type Collaborators struct {
	Embedder       embedding.Transformer
	ClusterUMAP    model.UMAPTransformer
	VisUMAP        model.UMAPTransformer
	Clusterer      model.Clusterer
	Vectorizer     model.Vectorizer
	CTFIDF         model.CTFIDF
	Representation model.RepresentationModel
}

// State is the mutable struct threaded through every stage (§4.7). A
// stage reads only fields a prior stage populated and writes only
// fields a downstream stage will read.
type State struct {
	Cache  *project.ProjectCache
	Column project.TextualColumn

	// CanSave gates every stage's writes to C3/disk. The Experiment
	// Driver (C8) runs stages 3-7 with CanSave=false so trial runs
	// never persist artifacts.
	CanSave bool

	Workspace *project.Workspace
	// Mask marks, per workspace row, whether that row held a non-empty
	// document for this column.
	Mask []bool

	PreprocessedDocs []string // heavy view, full corpus alignment (empty string where Mask is false)
	EmbeddingDocs    []string // light view, same alignment

	Model Collaborators

	DocumentVectors       [][]float32 // one row per valid (Mask=true) document, in row order
	VisualizationVectors  [][]float32

	// Assignments holds one cluster id per valid document, -1 for an
	// outlier; indices line up with DocumentVectors, not workspace rows.
	Assignments []int

	Result project.TopicResult
}

// validDocs returns docs (one entry per workspace row, such as
// PreprocessedDocs or EmbeddingDocs) filtered down to Mask=true rows,
// in row order — the alignment DocumentVectors/Assignments use.
func (s *State) validDocs(docs []string) []string {
	out := make([]string, 0, len(docs))
	for i, ok := range s.Mask {
		if ok {
			out = append(out, docs[i])
		}
	}
	return out
}

// Stage is one pipeline step.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *State, proxy *task.Proxy) error
}
