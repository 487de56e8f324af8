package knowledge

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sevigo/goframe/schema"
	"github.com/sevigo/goframe/textsplitter"
)

// LoaderConfig tunes chunking and batching.
type LoaderConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// LoadStats summarises one Load call.
type LoadStats struct {
	Files    int
	Chunks   int
	Batches  int
	Duration time.Duration
}

// Loader chunks Markdown files and writes them to a VectorStore.
type Loader struct {
	store    VectorStore
	splitter *textsplitter.RecursiveCharacter
	cfg      LoaderConfig
	logger   *slog.Logger
}

func NewLoader(store VectorStore, cfg LoaderConfig, logger *slog.Logger) *Loader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 200
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
	)
	return &Loader{store: store, splitter: splitter, cfg: cfg, logger: logger}
}

// Load walks dir for *.md files and stores their chunks in batches.
func (l *Loader) Load(ctx context.Context, dir string) (*LoadStats, error) {
	start := time.Now()
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("knowledge directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge path %s is not a directory", dir)
	}

	docs, files, err := l.collect(ctx, dir)
	if err != nil {
		return nil, err
	}
	l.logger.Info("knowledge documents chunked", "dir", dir, "files", files, "chunks", len(docs))

	stats := &LoadStats{Files: files, Chunks: len(docs)}
	for i := 0; i < len(docs); i += l.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		batch := docs[i:min(i+l.cfg.BatchSize, len(docs))]
		if err := l.store.AddDocuments(ctx, batch); err != nil {
			return stats, fmt.Errorf("failed to store batch %d: %w", stats.Batches+1, err)
		}
		stats.Batches++
		l.logger.Debug("knowledge batch stored", "batch", stats.Batches, "size", len(batch))
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

func (l *Loader) collect(ctx context.Context, dir string) ([]schema.Document, int, error) {
	var docs []schema.Document
	files := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		chunks, err := l.documents(ctx, filepath.ToSlash(rel), string(content))
		if err != nil {
			return err
		}
		files++
		docs = append(docs, chunks...)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to walk knowledge directory: %w", err)
	}
	return docs, files, nil
}

func (l *Loader) documents(ctx context.Context, source, content string) ([]schema.Document, error) {
	split, err := l.splitter.SplitText(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", source, err)
	}
	chunks := make([]string, 0, len(split))
	for _, c := range split {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}

	docs := make([]schema.Document, 0, len(chunks))
	name := filepath.Base(source)
	for i, c := range chunks {
		docs = append(docs, schema.NewDocument(c, map[string]any{
			"id":           PointID(source, i),
			"source":       source,
			"chunk_id":     ChunkID(name, i, c),
			"chunk_index":  i,
			"total_chunks": len(chunks),
			"doc_type":     "markdown",
		}))
	}
	return docs, nil
}

// PointID is a deterministic UUID for the index-th chunk of source, so
// reloading a directory overwrites its points instead of duplicating them.
func PointID(source string, index int) string {
	return uuid.NewMD5(uuid.NameSpaceURL, fmt.Appendf(nil, "%s:%d", source, index)).String()
}

// ChunkID is <file name>_<index>_<first 8 hex chars of md5(content)>.
func ChunkID(fileName string, index int, content string) string {
	sum := md5.Sum([]byte(content))
	return fmt.Sprintf("%s_%d_%s", fileName, index, hex.EncodeToString(sum[:])[:8])
}
