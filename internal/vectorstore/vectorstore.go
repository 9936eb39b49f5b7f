// Package vectorstore is the Vectors cache adapter's disk backing
// store: it persists document/UMAP/visualization vector rows as
// chromem-go collections, one per project+column+kind, grounded on
// the teacher's use of chromem-go as project-scoped vector storage in
// pkg/index.
package vectorstore

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/ternarybob/analysisd/internal/apperr"
)

// zeroEmbeddingFunc never learns embeddings itself: every vector
// saved into the store already carries its embedding, computed
// upstream by internal/embedding or internal/model. chromem-go still
// requires an EmbeddingFunc per collection, so this one returns an
// error whenever it is called.
func zeroEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("vectorstore: embeddings are supplied directly, no text embedding is configured")
}

// Store owns one persistent chromem-go database per directory,
// memoized so repeated Load calls for the same artifact reuse the
// same handle instead of reopening the on-disk database. Save drops
// the memoized handle and opens a fresh one over the wiped directory.
type Store struct {
	mu  sync.Mutex
	dbs map[string]*chromem.DB
}

// New creates an empty Store.
func New() *Store {
	return &Store{dbs: make(map[string]*chromem.DB)}
}

func (s *Store) dbFor(dir string) (*chromem.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[dir]; ok {
		return db, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create vector store dir %s: %w", dir, err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector store %s: %w", dir, err)
	}
	s.dbs[dir] = db
	return db, nil
}

const collectionName = "vectors"

// Save fully replaces the vectors stored under dir: the directory is
// wiped and a fresh collection is written, matching the Cache
// Adapter's whole-artifact Save semantics (§4.3). column and kind are
// carried only as collection metadata; callers own the artifact type
// that wraps rows.
func (s *Store) Save(dir, column, kind string, rows [][]float32) error {
	s.mu.Lock()
	delete(s.dbs, dir)
	s.mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear vector store dir %s: %w", dir, err)
	}

	db, err := s.dbFor(dir)
	if err != nil {
		return err
	}

	col, err := db.CreateCollection(collectionName, nil, zeroEmbeddingFunc)
	if err != nil {
		return fmt.Errorf("create collection in %s: %w", dir, err)
	}

	for i, row := range rows {
		doc := chromem.Document{
			ID:        strconv.Itoa(i),
			Embedding: row,
			Metadata:  map[string]string{"column": column, "kind": kind},
		}
		if err := col.AddDocument(context.Background(), doc); err != nil {
			return fmt.Errorf("save vector row %d: %w", i, err)
		}
	}

	return nil
}

// Load reads back every row in insertion order (row index == document
// ID). Returns apperr.ErrFileNotExists if no collection has been
// saved under dir yet.
func (s *Store) Load(dir string) ([][]float32, error) {
	db, err := s.dbFor(dir)
	if err != nil {
		return nil, err
	}

	col := db.GetCollection(collectionName, zeroEmbeddingFunc)
	if col == nil {
		return nil, fmt.Errorf("vector collection %s: %w", dir, apperr.ErrFileNotExists)
	}

	count := col.Count()
	if count == 0 {
		return nil, fmt.Errorf("vector collection %s: %w", dir, apperr.ErrFileNotExists)
	}

	rows := make([][]float32, count)
	for i := 0; i < count; i++ {
		doc, err := col.GetByID(context.Background(), strconv.Itoa(i))
		if err != nil {
			return nil, fmt.Errorf("load vector row %d: %w", i, apperr.ErrCorruptedFile)
		}
		rows[i] = doc.Embedding
	}

	return rows, nil
}
