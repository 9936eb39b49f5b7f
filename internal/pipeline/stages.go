package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/analysisd/internal/apperr"
	"github.com/ternarybob/analysisd/internal/embedding"
	"github.com/ternarybob/analysisd/internal/model"
	"github.com/ternarybob/analysisd/internal/project"
	"github.com/ternarybob/analysisd/internal/task"
)

// clusterDims is the dimensionality the clustering UMAP reduces to
// before handing vectors to the clusterer.
const clusterDims = 5

// LoadStage reads the workspace via C3 and asserts the target textual
// column is present.
type LoadStage struct{}

func (LoadStage) Name() string { return "load" }

func (LoadStage) Run(ctx context.Context, state *State, proxy *task.Proxy) error {
	if err := proxy.CheckStop(); err != nil {
		return err
	}

	ws, err := state.Cache.Workspace.Load("")
	if err != nil {
		return fmt.Errorf("load workspace: %w", err)
	}
	if _, err := ws.Column(state.Column.Name); err != nil {
		return fmt.Errorf("assert textual column %q: %w", state.Column.Name, apperr.ErrMissingColumn)
	}

	state.Workspace = ws
	proxy.LogPending(fmt.Sprintf("loaded workspace (%d rows)", ws.RowCount()))
	return nil
}

// PreprocessStage reuses a cached preprocessed column when present,
// otherwise computes it and writes it back to the workspace (§4.7
// stage 2).
type PreprocessStage struct{}

func (PreprocessStage) Name() string { return "preprocess" }

func (PreprocessStage) Run(ctx context.Context, state *State, proxy *task.Proxy) error {
	if err := proxy.CheckStop(); err != nil {
		return err
	}

	raw, err := state.Workspace.Column(state.Column.Name)
	if err != nil {
		return fmt.Errorf("read source column: %w", err)
	}

	preCol := state.Column.PreprocessedColumnName()
	cached, cacheErr := state.Workspace.Column(preCol)

	docs := make([]string, len(raw))
	mask := make([]bool, len(raw))
	embedDocs := make([]string, len(raw))
	computed := cacheErr != nil

	for i, v := range raw {
		text, _ := v.(string)
		embedDocs[i] = lightPreprocess(text)

		if !computed {
			s, _ := cached[i].(string)
			docs[i] = s
			mask[i] = s != ""
			continue
		}

		cleaned := heavyPreprocess(text, state.Column)
		docs[i] = cleaned
		mask[i] = cleaned != ""
	}

	if computed {
		if err := state.Workspace.SetColumn(preCol, toAnySlice(docs)); err != nil {
			return fmt.Errorf("write preprocessed column: %w", err)
		}
		if state.CanSave {
			if err := state.Cache.Workspace.Save("", state.Workspace); err != nil {
				return fmt.Errorf("save workspace: %w", err)
			}
		}
		proxy.LogPending("computed preprocessed documents")
	} else {
		proxy.LogPending("reused cached preprocessed documents")
	}

	state.PreprocessedDocs = docs
	state.EmbeddingDocs = embedDocs
	state.Mask = mask
	return nil
}

// ModelBuilderStage constructs the configured collaborators for this
// column's hyperparameters (§4.7 stage 3). Embedder is left untouched
// if the caller already injected one.
type ModelBuilderStage struct{}

func (ModelBuilderStage) Name() string { return "model_builder" }

func (ModelBuilderStage) Run(ctx context.Context, state *State, proxy *task.Proxy) error {
	if err := proxy.CheckStop(); err != nil {
		return err
	}

	corpusSize := 0
	for _, ok := range state.Mask {
		if ok {
			corpusSize++
		}
	}

	tm := state.Column.TopicModeling
	maxClusterSize := int(tm.MaxTopicSize * float64(corpusSize))
	if maxClusterSize < 2 {
		maxClusterSize = corpusSize
	}
	if tm.MinTopicSize >= maxClusterSize && maxClusterSize > 0 {
		return fmt.Errorf("min topic size %d must be less than max topic size %d: %w", tm.MinTopicSize, maxClusterSize, apperr.ErrInvalidValueType)
	}

	minClusterSize := tm.MinTopicSize
	if minClusterSize < 2 {
		minClusterSize = 2
	}

	if state.Model.Embedder == nil {
		state.Model.Embedder = embedding.DeterministicTransformer{}
	}
	if state.Model.ClusterUMAP == nil {
		state.Model.ClusterUMAP = model.DeterministicUMAP{}
	}
	if state.Model.VisUMAP == nil {
		state.Model.VisUMAP = model.DeterministicUMAP{}
	}
	if state.Model.Clusterer == nil {
		state.Model.Clusterer = model.ThresholdClusterer{Radius: clusteringRadius(tm.ClusteringConservativeness), MinClusterSize: minClusterSize}
	}
	if state.Model.Vectorizer == nil {
		state.Model.Vectorizer = model.BagOfWordsVectorizer{MinDF: 1}
	}
	if state.Model.CTFIDF == nil {
		state.Model.CTFIDF = model.ClassTFIDF{}
	}
	if state.Model.Representation == nil {
		state.Model.Representation = model.TopNRepresentation{}
	}

	return nil
}

// clusteringRadius derives a euclidean threshold from the
// conservativeness knob: higher conservativeness means a tighter
// (smaller) radius, fewer, more cohesive clusters.
func clusteringRadius(conservativeness float64) float64 {
	if conservativeness <= 0 {
		return 1.0
	}
	return 1.0 / conservativeness
}

// EmbedStage requests document vectors from the embedding
// transformer, reusing a cached copy when its row count still matches
// the corpus (§4.7 stage 4).
type EmbedStage struct{}

func (EmbedStage) Name() string { return "embed" }

func (EmbedStage) Run(ctx context.Context, state *State, proxy *task.Proxy) error {
	if err := proxy.CheckStop(); err != nil {
		return err
	}

	validDocs := state.validDocs(state.EmbeddingDocs)

	key := project.VectorKey(state.Column.Name, "document")
	if cached, err := state.Cache.Vectors.Load(key); err == nil {
		if cached.RowCount() == len(validDocs) {
			state.DocumentVectors = cached.Rows
			proxy.LogPending("reused cached document vectors")
			return nil
		}
		return fmt.Errorf("cached document vectors: %w", apperr.ErrUnsyncedVectors)
	} else if !errors.Is(err, apperr.ErrFileNotExists) {
		return fmt.Errorf("load cached document vectors: %w", err)
	}

	vectors, err := state.Model.Embedder.Embed(ctx, validDocs)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}

	if state.CanSave {
		if err := state.Cache.Vectors.Save(key, project.Vectors{Column: state.Column.Name, Kind: "document", Rows: vectors}); err != nil {
			return fmt.Errorf("save document vectors: %w", err)
		}
	}

	state.DocumentVectors = vectors
	proxy.LogPending(fmt.Sprintf("embedded %d documents", len(vectors)))
	return nil
}

// TopicModelingStage fits the clusterer over reduced document
// vectors, reducing outliers per the column's configured strategy
// (§4.7 stage 5, §12 supplemented outlier reduction).
type TopicModelingStage struct{}

func (TopicModelingStage) Name() string { return "topic_modeling" }

func (TopicModelingStage) Run(ctx context.Context, state *State, proxy *task.Proxy) error {
	if err := proxy.CheckStop(); err != nil {
		return err
	}

	reduced, err := state.Model.ClusterUMAP.FitTransform(state.DocumentVectors, clusterDims)
	if err != nil {
		return fmt.Errorf("reduce document vectors: %w", err)
	}

	labels, err := state.Model.Clusterer.FitPredict(reduced)
	if err != nil {
		return fmt.Errorf("cluster documents: %w", err)
	}

	reduceOutliers(labels, state.DocumentVectors, state.Column.OutlierReduction)

	state.Assignments = labels

	if state.CanSave {
		state.Result.ProjectID = state.Cache.ProjectID
	}

	proxy.LogPending(fmt.Sprintf("assigned %d documents to clusters", len(labels)))
	return nil
}

// reduceOutliers reassigns outlier (-1) labels in place per strategy:
// "nearest-centroid" moves each outlier into whichever real cluster's
// centroid it is closest to; any other value (including the default
// "none") leaves outliers unassigned.
func reduceOutliers(labels []int, vectors [][]float32, strategy string) {
	if strategy != "nearest-centroid" {
		return
	}

	centroids := make(map[int][]float32)
	counts := make(map[int]int)
	for i, label := range labels {
		if label < 0 {
			continue
		}
		if centroids[label] == nil {
			centroids[label] = make([]float32, len(vectors[i]))
		}
		for d, v := range vectors[i] {
			centroids[label][d] += v
		}
		counts[label]++
	}
	if len(centroids) == 0 {
		return
	}
	for label, sum := range centroids {
		for d := range sum {
			sum[d] /= float32(counts[label])
		}
	}

	for i, label := range labels {
		if label >= 0 {
			continue
		}
		best, bestDist := -1, 0.0
		for candidate, centroid := range centroids {
			dist := euclideanDistance(vectors[i], centroid)
			if best == -1 || dist < bestDist {
				best, bestDist = candidate, dist
			}
		}
		labels[i] = best
	}
}

func euclideanDistance(a, b []float32) float64 {
	sum := 0.0
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// VisualizationEmbeddingStage reduces document vectors to 2D via a
// second cached UMAP instance (§4.7 stage 6).
type VisualizationEmbeddingStage struct{}

func (VisualizationEmbeddingStage) Name() string { return "visualization_embedding" }

func (VisualizationEmbeddingStage) Run(ctx context.Context, state *State, proxy *task.Proxy) error {
	if err := proxy.CheckStop(); err != nil {
		return err
	}

	key := project.VectorKey(state.Column.Name, "visualization")
	if cached, err := state.Cache.Vectors.Load(key); err == nil && cached.RowCount() == len(state.DocumentVectors) {
		state.VisualizationVectors = cached.Rows
		return nil
	}

	viz, err := state.Model.VisUMAP.FitTransform(state.DocumentVectors, 2)
	if err != nil {
		return fmt.Errorf("reduce to visualization dims: %w", err)
	}

	if state.CanSave {
		if err := state.Cache.Vectors.Save(key, project.Vectors{Column: state.Column.Name, Kind: "visualization", Rows: viz}); err != nil {
			return fmt.Errorf("save visualization vectors: %w", err)
		}
	}

	state.VisualizationVectors = viz
	return nil
}

// PostprocessStage derives Topic records, builds the hierarchy,
// writes the topic result, and updates the workspace's topic
// companion column (§4.7 stage 7).
type PostprocessStage struct{}

func (PostprocessStage) Name() string { return "postprocess" }

func (PostprocessStage) Run(ctx context.Context, state *State, proxy *task.Proxy) error {
	if err := proxy.CheckStop(); err != nil {
		return err
	}

	validDocs := state.validDocs(state.PreprocessedDocs)
	docsByCluster := make(map[int][]string)
	for i, label := range state.Assignments {
		if label < 0 {
			continue
		}
		docsByCluster[label] = append(docsByCluster[label], validDocs[i])
	}

	vocabulary, counts, err := state.Model.Vectorizer.Fit(docsByCluster)
	if err != nil {
		return fmt.Errorf("fit vectorizer: %w", err)
	}
	weights, err := state.Model.CTFIDF.Transform(vocabulary, counts)
	if err != nil {
		return fmt.Errorf("compute c-TF-IDF: %w", err)
	}

	topN := state.Column.TopicModeling.TopNWords
	if topN <= 0 {
		topN = 10
	}

	clusterIDs := make([]int, 0, len(docsByCluster))
	for id := range docsByCluster {
		clusterIDs = append(clusterIDs, id)
	}
	sort.Ints(clusterIDs)

	topics := make([]project.Topic, 0, len(clusterIDs))
	for _, id := range clusterIDs {
		terms := state.Model.Representation.Represent(toModelWeights(weights[id]), topN)
		label, ok := state.Column.LabelOverrides[id]
		if !ok || label == "" {
			label = labelFromTerms(terms)
		}
		topics = append(topics, project.Topic{
			ID:        id,
			Label:     label,
			Words:     toTopicWordTerms(terms),
			Frequency: len(docsByCluster[id]),
		})
	}

	counted := project.TopicCounts{Total: len(state.Assignments)}
	for _, label := range state.Assignments {
		if label < 0 {
			counted.Outlier++
		} else {
			counted.Valid++
		}
	}
	counted.Invalid = len(state.Mask) - counted.Total

	hierarchy := buildHierarchy(topics, centroidsByCluster(state.DocumentVectors, state.Assignments))

	state.Result = project.TopicResult{
		ProjectID: state.Cache.ProjectID,
		Column:    state.Column.Name,
		Topics:    topics,
		Hierarchy: hierarchy,
		Counts:    counted,
		Frequency: len(topics),
		CreatedAt: time.Now(),
	}

	if !state.CanSave {
		return nil
	}

	topicCol := make([]any, state.Workspace.RowCount())
	validIdx := 0
	for row, ok := range state.Mask {
		if !ok {
			topicCol[row] = -1
			continue
		}
		topicCol[row] = state.Assignments[validIdx]
		validIdx++
	}
	if err := state.Workspace.SetColumn(state.Column.TopicColumnName(), topicCol); err != nil {
		return fmt.Errorf("write topic column: %w", err)
	}
	if err := state.Cache.Workspace.Save("", state.Workspace); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	if err := state.Cache.Topics.Save(state.Column.Name, state.Result); err != nil {
		return fmt.Errorf("save topic result: %w", err)
	}

	proxy.LogSuccess(fmt.Sprintf("discovered %d topics", len(topics)))
	return nil
}

func toAnySlice(docs []string) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}

func toModelWeights(in []model.TermWeight) []model.TermWeight { return in }

func toTopicWordTerms(in []model.TermWeight) []project.TopicWordTerm {
	out := make([]project.TopicWordTerm, len(in))
	for i, w := range in {
		out[i] = project.TopicWordTerm{Term: w.Term, Weight: w.Weight}
	}
	return out
}

// labelFromTerms joins the first three ranked terms with "_",
// BERTopic's default label shape; PostprocessStage uses it only for
// topics that have no entry in the column's LabelOverrides.
func labelFromTerms(terms []model.TermWeight) string {
	n := 3
	if len(terms) < n {
		n = len(terms)
	}
	label := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			label += "_"
		}
		label += terms[i].Term
	}
	return label
}

func centroidsByCluster(vectors [][]float32, labels []int) map[int][]float32 {
	sums := make(map[int][]float32)
	counts := make(map[int]int)
	for i, label := range labels {
		if label < 0 {
			continue
		}
		if sums[label] == nil {
			sums[label] = make([]float32, len(vectors[i]))
		}
		for d, v := range vectors[i] {
			sums[label][d] += v
		}
		counts[label]++
	}
	for label, sum := range sums {
		for d := range sum {
			sum[d] /= float32(counts[label])
		}
	}
	return sums
}
