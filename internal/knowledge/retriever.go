package knowledge

import (
	"context"
	"fmt"
	"strings"
)

// Snippet is one retrieved chunk.
type Snippet struct {
	Source  string
	Content string
}

// Retriever runs similarity searches against the knowledge collection.
type Retriever struct {
	store VectorStore
	topK  int
}

func NewRetriever(store VectorStore, topK int) *Retriever {
	if topK <= 0 {
		topK = 4
	}
	return &Retriever{store: store, topK: topK}
}

// Search returns up to k snippets for query; k <= 0 uses the configured default.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Snippet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("knowledge query cannot be empty")
	}
	if k <= 0 {
		k = r.topK
	}
	docs, err := r.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}
	out := make([]Snippet, 0, len(docs))
	for _, d := range docs {
		source, _ := d.Metadata["source"].(string)
		out = append(out, Snippet{Source: source, Content: d.PageContent})
	}
	return out, nil
}

// Format renders snippets for a model prompt.
func Format(snippets []Snippet) string {
	if len(snippets) == 0 {
		return "No relevant knowledge found."
	}
	var sb strings.Builder
	for i, s := range snippets {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s\n", s.Source, s.Content)
	}
	return sb.String()
}
