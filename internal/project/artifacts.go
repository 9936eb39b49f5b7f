package project

import "time"

// Topic is one discovered topic, or an internal node of the topic
// hierarchy when Children is non-nil.
type Topic struct {
	ID        int             `json:"id"`
	Label     string          `json:"label"`
	Words     []TopicWordTerm `json:"words"`
	Frequency int             `json:"frequency"`
	Children  []Topic         `json:"children,omitempty"`
}

// TopicWordTerm is one (term, weight) pair ranked within a topic.
type TopicWordTerm struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// TopicCounts reports how many documents fell into each bucket of a
// topic-modeling run.
type TopicCounts struct {
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Outlier int `json:"outlier"`
	Total   int `json:"total"`
}

// TopicResult is the per-project, per-column topic-modeling result
// (§6 topic result JSON).
type TopicResult struct {
	ProjectID string      `json:"project_id"`
	Column    string      `json:"column"`
	Topics    []Topic     `json:"topics"`
	Hierarchy Topic       `json:"hierarchy"`
	Counts    TopicCounts `json:"counts"`
	Frequency int         `json:"frequency"`
	CreatedAt time.Time   `json:"created_at"`
}

// FittedModel is the opaque result of fitting a clustering model,
// serialized as one JSON file, bertopic/<b64(column)>.json. The
// concrete clustering algorithm is an external collaborator
// (internal/model); this struct only carries what the orchestrator
// itself needs to pass the model between stages and back out again.
type FittedModel struct {
	Column    string    `json:"column"`
	Backend   string    `json:"backend"`
	ModelDir  string    `json:"model_dir"`
	CreatedAt time.Time `json:"created_at"`
}

// Vectors holds one artifact kind's float32 rows, one per document,
// all of equal width. Used for document/UMAP/visualization vectors.
type Vectors struct {
	Column string      `json:"column"`
	Kind   string      `json:"kind"` // "document" | "umap" | "visualization"
	Rows   [][]float32 `json:"rows"`
}

// RowCount returns the number of vector rows.
func (v Vectors) RowCount() int { return len(v.Rows) }

// EvaluationResult is the scored output of evaluating one fitted
// topic model (coherence/diversity style metrics; the metrics
// themselves are Non-goal statistics, computed by an external
// collaborator and merely carried here).
type EvaluationResult struct {
	ProjectID string             `json:"project_id"`
	Column    string             `json:"column"`
	Metrics   map[string]float64 `json:"metrics"`
	CreatedAt time.Time          `json:"created_at"`
}

// TrialResult is one hyperparameter candidate's outcome within an
// Experiment Driver (C8) run. EndAt is set once the trial itself has
// finished running (success or error); it is only nil for an entry
// that was appended mid-write, which never happens here since
// Driver.Run appends after the trial completes.
type TrialResult struct {
	TrialID   string             `json:"trial_id"`
	Candidate map[string]any     `json:"candidate"`
	Metrics   map[string]float64 `json:"metrics"`
	Error     string             `json:"error,omitempty"`
	EndAt     *time.Time         `json:"end_at"`
}

// ExperimentResult is the persisted outcome of an Experiment Driver
// run: every trial plus the winning candidate. EndAt stays nil until
// the suggester is exhausted; a run cancelled partway through (S6)
// persists its completed Trials with EndAt null at the experiment
// level, grounded on original_source's BERTopicExperimentResult
// (end_at set only after study.optimize returns normally).
type ExperimentResult struct {
	ProjectID string         `json:"project_id"`
	Column    string         `json:"column"`
	Trials    []TrialResult  `json:"trials"`
	Best      map[string]any `json:"best,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	EndAt     *time.Time     `json:"end_at"`
}
