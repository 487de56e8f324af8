// Package knowledge loads Markdown reference material into a vector
// collection and retrieves it for reviewer agents.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/schema"
	"github.com/sevigo/goframe/vectorstores"
	"github.com/sevigo/goframe/vectorstores/qdrant"
)

// VectorStore is a single vector collection.
type VectorStore interface {
	AddDocuments(ctx context.Context, docs []schema.Document) error
	SimilaritySearch(ctx context.Context, query string, numDocs int) ([]schema.Document, error)
	Reset(ctx context.Context) error
}

// QdrantStore is a VectorStore bound to one qdrant collection. The
// underlying client is created on first use.
type QdrantStore struct {
	host       string
	collection string
	embedder   embeddings.Embedder
	logger     *slog.Logger

	mu    sync.Mutex
	store vectorstores.VectorStore
}

// NewQdrantStore returns a store for collection on host.
func NewQdrantStore(host, collection string, embedder embeddings.Embedder, logger *slog.Logger) *QdrantStore {
	return &QdrantStore{
		host:       host,
		collection: collection,
		embedder:   embedder,
		logger:     logger,
	}
}

func (q *QdrantStore) open() (vectorstores.VectorStore, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.store != nil {
		return q.store, nil
	}
	store, err := qdrant.New(
		qdrant.WithHost(q.host),
		qdrant.WithEmbedder(q.embedder),
		qdrant.WithCollectionName(q.collection),
		qdrant.WithLogger(q.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open qdrant collection %s: %w", q.collection, err)
	}
	q.store = store
	return store, nil
}

func (q *QdrantStore) AddDocuments(ctx context.Context, docs []schema.Document) error {
	store, err := q.open()
	if err != nil {
		return err
	}
	if _, err := store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to add %d documents to %s: %w", len(docs), q.collection, err)
	}
	return nil
}

func (q *QdrantStore) SimilaritySearch(ctx context.Context, query string, numDocs int) ([]schema.Document, error) {
	store, err := q.open()
	if err != nil {
		return nil, err
	}
	return store.SimilaritySearch(ctx, query, numDocs)
}

// Reset drops the collection. The next write recreates it.
func (q *QdrantStore) Reset(ctx context.Context) error {
	store, err := q.open()
	if err != nil {
		return err
	}
	if err := store.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", q.collection, err)
	}
	q.mu.Lock()
	q.store = nil
	q.mu.Unlock()
	return nil
}
