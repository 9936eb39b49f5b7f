package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicUMAPTruncatesToRequestedDims(t *testing.T) {
	out, err := DeterministicUMAP{}.FitTransform([][]float32{{1, 2, 3, 4}}, 2)

	assert.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, out[0])
}

func TestDeterministicUMAPPadsShortVectors(t *testing.T) {
	out, err := DeterministicUMAP{}.FitTransform([][]float32{{1}}, 3)

	assert.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, out[0])
}

func TestThresholdClustererGroupsNearbyPoints(t *testing.T) {
	c := ThresholdClusterer{Radius: 0.5, MinClusterSize: 2}
	vectors := [][]float32{{0, 0}, {0.1, 0}, {10, 10}, {10.1, 10}}

	labels, err := c.FitPredict(vectors)

	assert.NoError(t, err)
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[2], labels[3])
	assert.NotEqual(t, labels[0], labels[2])
}

func TestThresholdClustererMarksSmallComponentsAsOutliers(t *testing.T) {
	c := ThresholdClusterer{Radius: 0.5, MinClusterSize: 2}
	vectors := [][]float32{{0, 0}, {0.1, 0}, {50, 50}}

	labels, err := c.FitPredict(vectors)

	assert.NoError(t, err)
	assert.Equal(t, -1, labels[2])
}

func TestBagOfWordsVectorizerCountsTermsPerCluster(t *testing.T) {
	v := BagOfWordsVectorizer{MinDF: 1}
	docs := map[int][]string{
		0: {"great service", "great staff"},
		1: {"poor quality"},
	}

	vocab, counts, err := v.Fit(docs)

	assert.NoError(t, err)
	assert.Contains(t, vocab, "great")
	idx := indexOf(vocab, "great")
	assert.Equal(t, 2, counts[0][idx])
	assert.Equal(t, 0, counts[1][idx])
}

func TestBagOfWordsVectorizerRespectsMinDF(t *testing.T) {
	v := BagOfWordsVectorizer{MinDF: 2}
	docs := map[int][]string{
		0: {"unique term here"},
	}

	vocab, _, err := v.Fit(docs)

	assert.NoError(t, err)
	assert.NotContains(t, vocab, "unique")
}

func TestClassTFIDFRanksDistinctiveTermsHigher(t *testing.T) {
	vocab := []string{"great", "poor", "product"}
	counts := map[int][]int{
		0: {5, 0, 3},
		1: {0, 5, 3},
	}

	weights, err := ClassTFIDF{}.Transform(vocab, counts)

	assert.NoError(t, err)
	assert.Equal(t, "great", weights[0][0].Term, "distinctive term must outrank the shared term")
}

func TestTopNRepresentationSkipsSubstringRedundantTerms(t *testing.T) {
	candidates := []TermWeight{
		{Term: "service", Weight: 0.9},
		{Term: "good service", Weight: 0.8},
		{Term: "staff", Weight: 0.5},
	}

	top := TopNRepresentation{}.Represent(candidates, 2)

	assert.Len(t, top, 2)
	assert.Equal(t, "service", top[0].Term)
	assert.Equal(t, "staff", top[1].Term)
}

func indexOf(s []string, target string) int {
	for i, v := range s {
		if v == target {
			return i
		}
	}
	return -1
}
