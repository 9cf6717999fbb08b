// Package kb answers FAQ queries from a per-business knowledge base of text
// snippets ranked by embedding similarity.
package kb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/frontdeskai/switchboard/pkg/provider/embeddings"
)

// Snippet is one ranked knowledge-base result. Distance is cosine distance,
// lower is closer.
type Snippet struct {
	Content  string
	Distance float64
}

// Searcher finds snippets relevant to a caller's question.
type Searcher interface {
	Search(ctx context.Context, businessID, query string, topK int) ([]Snippet, error)
}

// Pgvector is the production [Searcher]: it embeds the query and runs a
// cosine-distance search over the kb_snippets table.
type Pgvector struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

var _ Searcher = (*Pgvector)(nil)

// NewPgvector creates a searcher over pool using embedder for queries. The
// embedder's dimensionality must match the kb_snippets schema.
func NewPgvector(pool *pgxpool.Pool, embedder embeddings.Provider) *Pgvector {
	return &Pgvector{pool: pool, embedder: embedder}
}

// Search implements [Searcher].
func (p *Pgvector) Search(ctx context.Context, businessID, query string, topK int) ([]Snippet, error) {
	if topK <= 0 {
		topK = 3
	}
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("kb: embedding query: %w", err)
	}

	const q = `
		SELECT content, embedding <=> $1 AS distance
		FROM   kb_snippets
		WHERE  business_id = $2
		ORDER  BY distance
		LIMIT  $3`

	rows, err := p.pool.Query(ctx, q, pgvector.NewVector(vec), businessID, topK)
	if err != nil {
		return nil, fmt.Errorf("kb: search: %w", err)
	}
	snippets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Snippet, error) {
		var s Snippet
		err := row.Scan(&s.Content, &s.Distance)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("kb: scanning snippets: %w", err)
	}
	return snippets, nil
}

// AddSnippet embeds and stores one snippet. Used by the admin seeding path.
func (p *Pgvector) AddSnippet(ctx context.Context, businessID, content string) error {
	vec, err := p.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("kb: embedding snippet: %w", err)
	}
	const q = `
		INSERT INTO kb_snippets (business_id, content, embedding)
		VALUES ($1, $2, $3)`
	if _, err := p.pool.Exec(ctx, q, businessID, content, pgvector.NewVector(vec)); err != nil {
		return fmt.Errorf("kb: add snippet: %w", err)
	}
	return nil
}
