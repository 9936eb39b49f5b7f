package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/analysisd/internal/project"
)

func TestApplyCandidateOverridesOnlyProvidedFields(t *testing.T) {
	base := project.TextualColumn{
		TopicModeling: project.TopicModeling{
			MinTopicSize:               5,
			MaxTopicSize:                0.5,
			ClusteringConservativeness: 1,
			TopNWords:                  10,
		},
	}

	out := ApplyCandidate(base, Candidate{"min_topic_size": 3})

	assert.Equal(t, 3, out.TopicModeling.MinTopicSize)
	assert.Equal(t, 0.5, out.TopicModeling.MaxTopicSize)
	assert.Equal(t, 10, out.TopicModeling.TopNWords)
}

func TestApplyCandidateAcceptsFloatEncodedIntegers(t *testing.T) {
	base := project.TextualColumn{}

	out := ApplyCandidate(base, Candidate{"min_topic_size": float64(7), "top_n_words": float64(12)})

	assert.Equal(t, 7, out.TopicModeling.MinTopicSize)
	assert.Equal(t, 12, out.TopicModeling.TopNWords)
}

func TestApplyCandidateLeavesColumnUnchangedForUnknownKeys(t *testing.T) {
	base := project.TextualColumn{TopicModeling: project.TopicModeling{MinTopicSize: 4}}

	out := ApplyCandidate(base, Candidate{"unused_key": "value"})

	assert.Equal(t, 4, out.TopicModeling.MinTopicSize)
}
