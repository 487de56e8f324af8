package knowledge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sevigo/goframe/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	batches [][]schema.Document
	results []schema.Document
	err     error
}

func (f *fakeStore) AddDocuments(_ context.Context, docs []schema.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, docs)
	return nil
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ string, n int) ([]schema.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[:min(n, len(f.results))], nil
}

func (f *fakeStore) Reset(context.Context) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIDsAreDeterministic(t *testing.T) {
	assert.Equal(t, PointID("docs/a.md", 1), PointID("docs/a.md", 1))
	assert.NotEqual(t, PointID("docs/a.md", 1), PointID("docs/a.md", 2))
	assert.Regexp(t, `^a\.md_0_[0-9a-f]{8}$`, ChunkID("a.md", 0, "content"))
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte(strings.Repeat("word ", 100)), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.MD"), []byte("short note"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not markdown"), 0o600))

	store := &fakeStore{}
	loader := NewLoader(store, LoaderConfig{ChunkSize: 100, ChunkOverlap: 20, BatchSize: 3}, discardLogger())

	stats, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)

	var total int
	sources := map[string]bool{}
	for _, b := range store.batches {
		assert.LessOrEqual(t, len(b), 3)
		total += len(b)
		for _, d := range b {
			sources[d.Metadata["source"].(string)] = true
			assert.NotEmpty(t, d.Metadata["id"])
			assert.Equal(t, "markdown", d.Metadata["doc_type"])
		}
	}
	assert.Equal(t, stats.Chunks, total)
	assert.Equal(t, len(store.batches), stats.Batches)
	assert.Equal(t, map[string]bool{"a.md": true, "nested/b.MD": true}, sources)
}

func TestLoader_ChunksLongDocuments(t *testing.T) {
	dir := t.TempDir()
	paragraph := strings.TrimSpace(strings.Repeat("guard every index ", 4))
	body := strings.Join([]string{paragraph, paragraph, paragraph, paragraph, paragraph}, "\n\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.md"), []byte(body), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.md"), []byte("  \n\n "), 0o600))

	store := &fakeStore{}
	loader := NewLoader(store, LoaderConfig{ChunkSize: 150, ChunkOverlap: 30, BatchSize: 10}, discardLogger())

	stats, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	require.Len(t, store.batches, 1)

	docs := store.batches[0]
	require.Greater(t, len(docs), 1)
	for i, d := range docs {
		assert.Equal(t, "rules.md", d.Metadata["source"])
		assert.Equal(t, i, d.Metadata["chunk_index"])
		assert.Equal(t, len(docs), d.Metadata["total_chunks"])
		assert.Equal(t, ChunkID("rules.md", i, d.PageContent), d.Metadata["chunk_id"])
		assert.NotEmpty(t, strings.TrimSpace(d.PageContent))
		assert.Contains(t, d.PageContent, "guard every index")
	}
}

func TestLoader_Errors(t *testing.T) {
	loader := NewLoader(&fakeStore{}, LoaderConfig{}, discardLogger())
	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("text"), 0o600))
	failing := NewLoader(&fakeStore{err: errors.New("qdrant down")}, LoaderConfig{}, discardLogger())
	_, err = failing.Load(context.Background(), dir)
	assert.ErrorContains(t, err, "qdrant down")
}

func TestRetriever_Search(t *testing.T) {
	store := &fakeStore{results: []schema.Document{
		{PageContent: "use context", Metadata: map[string]any{"source": "go.md"}},
		{PageContent: "wrap errors", Metadata: map[string]any{"source": "errors.md"}},
	}}
	r := NewRetriever(store, 1)

	got, err := r.Search(context.Background(), "errors", 0)
	require.NoError(t, err)
	assert.Equal(t, []Snippet{{Source: "go.md", Content: "use context"}}, got)

	got, err = r.Search(context.Background(), "errors", 5)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, Format(got), "[errors.md]")

	_, err = r.Search(context.Background(), " ", 1)
	assert.Error(t, err)
	assert.Equal(t, "No relevant knowledge found.", Format(nil))
}
