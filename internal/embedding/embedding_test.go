package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/analysisd/internal/config"
)

func TestNewReturnsNilWithoutAPIKey(t *testing.T) {
	transformer, err := New(config.EmbedConfig{})

	require.NoError(t, err)
	assert.Nil(t, transformer)
}

func TestDeterministicTransformerProducesStableVectorsForIdenticalDocs(t *testing.T) {
	transformer := DeterministicTransformer{Dims: 4}

	first, err := transformer.Embed(context.Background(), []string{"great service"})
	require.NoError(t, err)
	second, err := transformer.Embed(context.Background(), []string{"great service"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDeterministicTransformerReturnsOneRowPerDocument(t *testing.T) {
	transformer := DeterministicTransformer{Dims: 4}

	vectors, err := transformer.Embed(context.Background(), []string{"a", "b", "c"})

	require.NoError(t, err)
	assert.Len(t, vectors, 3)
	for _, row := range vectors {
		assert.Len(t, row, 4)
	}
}

func TestGeminiTransformerEmbedFailsWithoutClient(t *testing.T) {
	var transformer *GeminiTransformer

	_, err := transformer.Embed(context.Background(), []string{"doc"})

	assert.Error(t, err)
}
