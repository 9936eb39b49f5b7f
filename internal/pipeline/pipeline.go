package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/analysisd/internal/task"
)

// Stages returns the topic-discovery stage list in run order (§4.7).
func Stages() []Stage {
	return []Stage{
		LoadStage{},
		PreprocessStage{},
		ModelBuilderStage{},
		EmbedStage{},
		TopicModelingStage{},
		VisualizationEmbeddingStage{},
		PostprocessStage{},
	}
}

// Run executes every stage in order against state, stopping at the
// first error. Each stage's own CheckStop call is what makes
// cancellation responsive; Run itself does not poll between stages
// beyond what each stage already does on entry.
func Run(ctx context.Context, stages []Stage, state *State, proxy *task.Proxy) error {
	for _, stage := range stages {
		if err := stage.Run(ctx, state, proxy); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
	}
	return nil
}

// Job builds a task.Func that runs the full topic-discovery pipeline
// for one project+column, the shape submitted to the Task Engine
// (C6) via AddTask. logFile is passed to proxy.Context so the job's
// logs land in a dedicated file.
func Job(state *State, logFile string) task.Func {
	return func(ctx context.Context, proxy *task.Proxy) error {
		return proxy.Context(logFile, func() error {
			if err := Run(ctx, Stages(), state, proxy); err != nil {
				return err
			}
			proxy.Success(state.Result)
			return nil
		})
	}
}
