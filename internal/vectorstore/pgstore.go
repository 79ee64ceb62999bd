package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// embedBatchSize is the number of chunks sent per embedding request.
	embedBatchSize = 32
	// embedConcurrency caps in-flight embedding requests while indexing.
	embedConcurrency = 4
)

// PGStore keeps chunk embeddings in a pgvector table and ranks them by
// cosine similarity.
type PGStore struct {
	pool     *pgxpool.Pool
	embedder llm.Embedder
	logger   *zap.Logger
}

// NewPGStore creates a store over pool.
func NewPGStore(pool *pgxpool.Pool, embedder llm.Embedder, logger *zap.Logger) *PGStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGStore{pool: pool, embedder: embedder, logger: logger}
}

// Search implements Searcher. Failures are logged and yield no results.
func (s *PGStore) Search(ctx context.Context, q Query) []SearchResult {
	results := []SearchResult{}
	if q.TenantID == "" || strings.TrimSpace(q.Text) == "" || q.K <= 0 {
		return results
	}
	log := s.logger.With(zap.String("tenant_id", q.TenantID))

	vec, err := s.embedder.EmbedQuery(ctx, q.Text)
	if err != nil {
		log.Warn("query embedding failed", zap.Error(err))
		return results
	}

	rows, err := s.pool.Query(ctx,
		`SELECT content, section_type, resume_id, order_index,
		        1 - (embedding <=> $2::vector) AS relevance_score
		 FROM resume_chunks
		 WHERE tenant_id = $1 AND ($4::text = '' OR resume_id = $4::text)
		 ORDER BY embedding <=> $2::vector
		 LIMIT $3`,
		q.TenantID, FormatVector(vec), q.K, q.ResumeID,
	)
	if err != nil {
		log.Warn("similarity search failed", zap.Error(err))
		return results
	}
	defer rows.Close()

	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Content, &r.Metadata.SectionType, &r.Metadata.ResumeID,
			&r.Metadata.OrderIndex, &r.RelevanceScore); err != nil {
			log.Warn("failed to scan search result", zap.Error(err))
			return []SearchResult{}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		log.Warn("similarity search failed", zap.Error(err))
		return []SearchResult{}
	}
	return results
}

// IndexResume embeds the resume's chunks and replaces whatever was indexed
// for the same tenant and resume. It returns the number of chunks stored.
func (s *PGStore) IndexResume(ctx context.Context, tenantID, resumeID string, sections []types.ResumeSection) (int, error) {
	if tenantID == "" || resumeID == "" {
		return 0, &types.ValidationError{Field: "resume_id", Message: "tenant and resume ids are required"}
	}
	chunks := SplitSections(sections)
	if len(chunks) == 0 {
		return 0, &types.ValidationError{Field: "resume_sections", Message: "no content to index"}
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin index transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx,
		`DELETE FROM resume_chunks WHERE tenant_id = $1 AND resume_id = $2`,
		tenantID, resumeID,
	); err != nil {
		return 0, fmt.Errorf("failed to clear previous chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(
			`INSERT INTO resume_chunks (tenant_id, resume_id, section_type, order_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6::vector)`,
			tenantID, resumeID, c.SectionType, c.OrderIndex, c.Content, FormatVector(vectors[i]),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit index transaction: %w", err)
	}

	s.logger.Info("resume indexed",
		zap.String("tenant_id", tenantID),
		zap.String("resume_id", resumeID),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// embedChunks embeds chunks in batches, several batches at a time, keeping
// the input order.
func (s *PGStore) embedChunks(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	dim := s.embedder.Dimension()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Content)
			}
			embedded, err := s.embedder.EmbedDocuments(gCtx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(embedded) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embedded), len(texts))
			}
			for i, v := range embedded {
				if dim > 0 && len(v) != dim {
					return fmt.Errorf("embedding has dimension %d, want %d", len(v), dim)
				}
				vectors[start+i] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// FormatVector renders v in pgvector's text input format.
func FormatVector(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
