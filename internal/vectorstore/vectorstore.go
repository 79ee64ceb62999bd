// Package vectorstore stores embedded resume chunks per tenant and serves
// similarity search over them.
package vectorstore

import "context"

// Query is one similarity search.
type Query struct {
	TenantID string
	Text     string
	K        int
	// ResumeID restricts results to one resume when set.
	ResumeID string
}

// ChunkMetadata describes where a chunk came from.
type ChunkMetadata struct {
	SectionType string `json:"section_type"`
	ResumeID    string `json:"resume_id"`
	OrderIndex  int    `json:"order_index"`
}

// SearchResult is one matching chunk.
type SearchResult struct {
	Content        string        `json:"content"`
	Metadata       ChunkMetadata `json:"metadata"`
	RelevanceScore float64       `json:"relevance_score"`
}

// Searcher returns the top-k chunks most similar to a query within one
// tenant. Implementations return an empty slice, never an error, when the
// backend is unreachable or the tenant has nothing indexed.
type Searcher interface {
	Search(ctx context.Context, q Query) []SearchResult
}

// NopSearcher finds nothing. It stands in when no vector store is configured,
// so retrieval yields no chunks and the rewriter works from the resume alone.
type NopSearcher struct{}

// Search implements Searcher.
func (NopSearcher) Search(context.Context, Query) []SearchResult {
	return []SearchResult{}
}
