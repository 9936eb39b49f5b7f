// Package embedding implements the Embed stage's document-vector
// collaborator (§4.7 stage 4): an interface plus a Gemini-backed
// default implementation, grounded on the teacher's genai client
// wiring in pkg/index/llm.go.
package embedding

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/ternarybob/analysisd/internal/config"
)

// Transformer embeds a batch of documents into equal-width float32
// vectors, one row per document, in input order.
type Transformer interface {
	Embed(ctx context.Context, documents []string) ([][]float32, error)
}

// GeminiTransformer embeds documents via the Gemini embedding API.
// Returns nil from New if no API key is configured, mirroring the
// teacher's nil-client-means-disabled convention.
type GeminiTransformer struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// New builds a GeminiTransformer from cfg.Embed. Returns nil, nil when
// no API key is configured — callers fall back to a deterministic
// stub in that case.
func New(cfg config.EmbedConfig) (*GeminiTransformer, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiTransformer{client: client, model: model, timeout: timeout}, nil
}

// Embed requests one vector per document. Empty input returns an
// empty result without calling the API.
func (t *GeminiTransformer) Embed(ctx context.Context, documents []string) ([][]float32, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("embedding transformer not configured")
	}
	if len(documents) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	contents := make([]*genai.Content, len(documents))
	for i, doc := range documents {
		contents[i] = genai.NewContentFromText(doc, genai.RoleUser)
	}

	result, err := t.client.Models.EmbedContent(ctx, t.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(result.Embeddings) != len(documents) {
		return nil, fmt.Errorf("embedding response row count %d does not match %d documents", len(result.Embeddings), len(documents))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// DeterministicTransformer is a hash-based stand-in used by tests and
// as a last-resort default: it never calls a network API, producing a
// fixed-width vector derived from each document's character codes so
// identical documents always embed identically.
type DeterministicTransformer struct {
	Dims int
}

func (t DeterministicTransformer) Embed(ctx context.Context, documents []string) ([][]float32, error) {
	dims := t.Dims
	if dims <= 0 {
		dims = 8
	}

	vectors := make([][]float32, len(documents))
	for i, doc := range documents {
		row := make([]float32, dims)
		for j, r := range doc {
			row[j%dims] += float32(r % 97)
		}
		vectors[i] = row
	}
	return vectors, nil
}
