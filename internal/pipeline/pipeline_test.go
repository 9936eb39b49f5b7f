package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/analysisd/internal/config"
	"github.com/ternarybob/analysisd/internal/embedding"
	"github.com/ternarybob/analysisd/internal/lock"
	"github.com/ternarybob/analysisd/internal/project"
	"github.com/ternarybob/analysisd/internal/task"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Service.DataDir = t.TempDir()
	manager := project.NewManager(cfg, lock.New())
	pc := manager.Get("proj1")

	ws := project.NewWorkspace([]string{"review"})
	ws.Rows = [][]any{
		{"great service and friendly staff"},
		{"great staff and quick service"},
		{"terrible wait times and rude staff"},
		{"terrible service, long wait"},
		{""},
	}
	require.NoError(t, pc.Workspace.Save("", ws))

	column := project.TextualColumn{
		Language:        "en",
		RemoveStopwords: true,
		MinWordLength:   2,
		TopicModeling: project.TopicModeling{
			MinTopicSize:               2,
			MaxTopicSize:                1.0,
			ClusteringConservativeness: 1,
			TopNWords:                  5,
		},
	}
	column.Name = "review"

	return &State{
		Cache:   pc,
		Column:  column,
		CanSave: true,
		Model:   Collaborators{Embedder: embedding.DeterministicTransformer{Dims: 6}},
	}
}

func noopProxy(t *testing.T) *task.Proxy {
	t.Helper()
	cfg := config.DefaultConfig()
	eng := task.New(cfg)
	t.Cleanup(eng.Shutdown)

	var result *task.Proxy
	done := make(chan struct{})
	eng.AddTask("pipeline-test", func(ctx context.Context, p *task.Proxy) error {
		result = p
		close(done)
		<-ctx.Done()
		return nil
	}, "queued", task.PolicyIgnore)
	<-done
	return result
}

func TestRunProducesTopicResultAndUpdatesWorkspace(t *testing.T) {
	state := newTestState(t)
	proxy := noopProxy(t)

	err := Run(context.Background(), Stages(), state, proxy)

	require.NoError(t, err)
	assert.NotEmpty(t, state.Result.Topics)
	// Total counts the four non-empty rows; the empty fifth row is
	// counted as Invalid instead.
	assert.Equal(t, 4, state.Result.Counts.Total)
	assert.Equal(t, 1, state.Result.Counts.Invalid)
	assert.Equal(t, state.Result.Counts.Total, state.Result.Counts.Valid+state.Result.Counts.Outlier)

	ws, err := state.Cache.Workspace.Load("")
	require.NoError(t, err)
	_, err = ws.Column("review (Topic)")
	assert.NoError(t, err)

	_, err = state.Cache.Topics.Load("review")
	assert.NoError(t, err)
}

func TestPreprocessStageComputesAndPersistsColumn(t *testing.T) {
	state := newTestState(t)
	proxy := noopProxy(t)

	require.NoError(t, LoadStage{}.Run(context.Background(), state, proxy))
	require.NoError(t, PreprocessStage{}.Run(context.Background(), state, proxy))

	assert.Len(t, state.PreprocessedDocs, 5)
	assert.False(t, state.Mask[4], "empty row must be masked out")
	assert.True(t, state.Mask[0])

	ws, err := state.Cache.Workspace.Load("")
	require.NoError(t, err)
	_, err = ws.Column("review (Preprocessed)")
	assert.NoError(t, err)
}

func TestPreprocessStageReusesCachedColumnOnSecondRun(t *testing.T) {
	state := newTestState(t)
	proxy := noopProxy(t)

	require.NoError(t, LoadStage{}.Run(context.Background(), state, proxy))
	require.NoError(t, PreprocessStage{}.Run(context.Background(), state, proxy))

	second := newTestState(t)
	second.Cache = state.Cache
	require.NoError(t, LoadStage{}.Run(context.Background(), second, proxy))

	ws, err := second.Cache.Workspace.Load("")
	require.NoError(t, err)
	_, err = ws.Column("review (Preprocessed)")
	require.NoError(t, err)

	require.NoError(t, PreprocessStage{}.Run(context.Background(), second, proxy))
	assert.Equal(t, state.PreprocessedDocs, second.PreprocessedDocs)
}

func TestEmbedStageSkipsRecomputeWhenCacheMatches(t *testing.T) {
	state := newTestState(t)
	proxy := noopProxy(t)

	require.NoError(t, LoadStage{}.Run(context.Background(), state, proxy))
	require.NoError(t, PreprocessStage{}.Run(context.Background(), state, proxy))
	require.NoError(t, ModelBuilderStage{}.Run(context.Background(), state, proxy))
	require.NoError(t, EmbedStage{}.Run(context.Background(), state, proxy))

	second := *state
	second.DocumentVectors = nil
	require.NoError(t, EmbedStage{}.Run(context.Background(), &second, proxy))

	assert.Equal(t, state.DocumentVectors, second.DocumentVectors)
}

func TestPostprocessStageAppliesUserLabelOverride(t *testing.T) {
	state := newTestState(t)
	proxy := noopProxy(t)

	require.NoError(t, LoadStage{}.Run(context.Background(), state, proxy))
	require.NoError(t, PreprocessStage{}.Run(context.Background(), state, proxy))
	require.NoError(t, ModelBuilderStage{}.Run(context.Background(), state, proxy))
	require.NoError(t, EmbedStage{}.Run(context.Background(), state, proxy))
	require.NoError(t, TopicModelingStage{}.Run(context.Background(), state, proxy))
	require.NoError(t, PostprocessStage{}.Run(context.Background(), state, proxy))
	require.NotEmpty(t, state.Result.Topics)

	overriddenID := state.Result.Topics[0].ID
	state.Column.LabelOverrides = map[int]string{overriddenID: "custom label"}

	require.NoError(t, PostprocessStage{}.Run(context.Background(), state, proxy))

	var found bool
	for _, topic := range state.Result.Topics {
		if topic.ID == overriddenID {
			found = true
			assert.Equal(t, "custom label", topic.Label)
		}
	}
	assert.True(t, found, "overridden topic id must still be present")
}

func TestRunStopsWhenCancelledBeforeFirstStage(t *testing.T) {
	state := newTestState(t)

	cfg := config.DefaultConfig()
	eng := task.New(cfg)
	defer eng.Shutdown()

	var gotProxy *task.Proxy
	done := make(chan struct{})
	eng.AddTask("cancel-me", func(ctx context.Context, p *task.Proxy) error {
		gotProxy = p
		close(done)
		<-ctx.Done()
		return nil
	}, "queued", task.PolicyIgnore)
	<-done
	eng.Invalidate("cancel-me", false, false)

	err := Run(context.Background(), Stages(), state, gotProxy)
	assert.Error(t, err)
}
