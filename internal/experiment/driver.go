// Package experiment implements the Experiment Driver (C8): a trial
// loop over hyperparameter candidates that reuses a shared
// preprocessing prefix and persists incrementally, grounded on
// original_source's BERTopicExperimentLab.
package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/analysisd/internal/pipeline"
	"github.com/ternarybob/analysisd/internal/project"
	"github.com/ternarybob/analysisd/internal/task"
)

// trialStages is §4.7 stages 3-7, the portion of the pipeline the
// driver re-runs per candidate. Stages 1 (load) and 2 (preprocess)
// already ran to produce the shared prefix and are not repeated.
func trialStages() []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.ModelBuilderStage{},
		pipeline.EmbedStage{},
		pipeline.TopicModelingStage{},
		pipeline.VisualizationEmbeddingStage{},
		pipeline.PostprocessStage{},
	}
}

// Driver runs a candidate loop against one project+column.
type Driver struct {
	Evaluator Evaluator
}

// New returns a Driver with the default evaluator.
func New() *Driver {
	return &Driver{Evaluator: DefaultEvaluator{}}
}

// Run iterates every candidate suggester offers, scores each trial,
// and saves the accumulating ExperimentResult after every trial so
// progress survives a crash or cancellation (§4.8 steps 1-5). prefix
// must already have Mask/PreprocessedDocs/EmbeddingDocs/DocumentVectors
// populated by a prior stages-1-2 run; Run never mutates prefix.
func (d *Driver) Run(ctx context.Context, proxy *task.Proxy, prefix *pipeline.State, suggester Suggester) (project.ExperimentResult, error) {
	result := project.ExperimentResult{
		ProjectID: prefix.Cache.ProjectID,
		Column:    prefix.Column.Name,
		CreatedAt: time.Now(),
	}

	bestScore := 0.0
	haveBest := false

	for {
		if err := proxy.CheckStop(); err != nil {
			return result, err
		}

		candidate, ok := suggester.Suggest()
		if !ok {
			break
		}

		proxy.LogPending(fmt.Sprintf("running trial with candidate %v", candidate))

		trial := d.runTrial(ctx, proxy, prefix, candidate)
		result.Trials = append(result.Trials, trial)

		if trial.Error == "" {
			if score, ok := trial.Metrics["coherence"]; ok && (!haveBest || score > bestScore) {
				bestScore, haveBest = score, true
				result.Best = candidate
			}
			proxy.LogSuccess(fmt.Sprintf("finished trial with candidate %v", candidate))
		} else {
			proxy.LogError(fmt.Sprintf("trial failed for candidate %v: %s", candidate, trial.Error))
		}

		if err := prefix.Cache.Experiment.Save(prefix.Column.Name, result); err != nil {
			return result, fmt.Errorf("save experiment result: %w", err)
		}
	}

	endAt := time.Now()
	result.EndAt = &endAt
	if err := prefix.Cache.Experiment.Save(prefix.Column.Name, result); err != nil {
		return result, fmt.Errorf("save experiment result: %w", err)
	}

	return result, nil
}

// runTrial shallow-copies prefix (State is a value type; its slice and
// map fields keep their backing storage, so PreprocessedDocs/
// DocumentVectors are shared, not duplicated, across trials), applies
// the candidate, and runs stages 3-7 with CanSave=false.
func (d *Driver) runTrial(ctx context.Context, proxy *task.Proxy, prefix *pipeline.State, candidate Candidate) project.TrialResult {
	trial := project.TrialResult{TrialID: uuid.NewString(), Candidate: candidate}

	trialState := *prefix
	trialState.CanSave = false
	trialState.Column = ApplyCandidate(prefix.Column, candidate)
	trialState.Model = pipeline.Collaborators{Embedder: prefix.Model.Embedder}
	trialState.Assignments = nil
	trialState.Result = project.TopicResult{}

	if err := pipeline.Run(ctx, trialStages(), &trialState, proxy); err != nil {
		trial.Error = err.Error()
		endAt := time.Now()
		trial.EndAt = &endAt
		return trial
	}

	trial.Metrics = d.Evaluator.Evaluate(validDocuments(&trialState), trialState.Result.Topics)
	endAt := time.Now()
	trial.EndAt = &endAt
	return trial
}

// validDocuments returns PreprocessedDocs filtered to Mask=true rows,
// the same alignment pipeline.State's stages use internally.
func validDocuments(state *pipeline.State) []string {
	out := make([]string, 0, len(state.PreprocessedDocs))
	for i, ok := range state.Mask {
		if ok {
			out = append(out, state.PreprocessedDocs[i])
		}
	}
	return out
}
