package indexer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/embeddings"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50

	// chunk candidates considered per requested result
	chunkFanout = 5
)

// SearchOptions narrows a search
type SearchOptions struct {
	Limit  int
	Origin string
}

// ChunkMatch is the best matching transcript passage of a result
type ChunkMatch struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// SearchResult is one testimony ranked by similarity to the query
type SearchResult struct {
	Testimony    models.Testimony `json:"testimony"`
	Score        float64          `json:"score"`
	SummaryScore float64          `json:"summary_score"`
	BestChunk    *ChunkMatch      `json:"best_chunk,omitempty"`
}

type scoredEmbedding struct {
	TestimonyID uint
	Score       float64
}

type scoredChunk struct {
	TestimonyID uint
	ChunkIndex  int
	Text        string
	Score       float64
}

// Search embeds the query and ranks testimonies by the best of their
// summary similarity and their best chunk similarity. Postgres ranks with
// pgvector's cosine distance operator, other databases rank in memory.
func (ix *Indexer) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	qvec, err := embeddings.EmbedOne(ctx, ix.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var (
		summaries []scoredEmbedding
		chunks    []scoredChunk
	)
	if ix.db.Dialector.Name() == "postgres" {
		summaries, chunks, err = ix.rankInDatabase(ctx, qvec, opts.Origin, limit)
	} else {
		summaries, chunks, err = ix.rankInMemory(ctx, qvec, opts.Origin, limit)
	}
	if err != nil {
		return nil, err
	}

	merged := map[uint]*SearchResult{}
	var order []uint
	get := func(id uint) *SearchResult {
		r, ok := merged[id]
		if !ok {
			r = &SearchResult{Testimony: models.Testimony{ID: id}}
			merged[id] = r
			order = append(order, id)
		}
		return r
	}
	for _, s := range summaries {
		r := get(s.TestimonyID)
		r.SummaryScore = s.Score
		r.Score = max(r.Score, s.Score)
	}
	for _, c := range chunks {
		r := get(c.TestimonyID)
		if r.BestChunk == nil || c.Score > r.BestChunk.Score {
			r.BestChunk = &ChunkMatch{Index: c.ChunkIndex, Text: c.Text, Score: c.Score}
		}
		r.Score = max(r.Score, c.Score)
	}

	results := make([]SearchResult, 0, len(order))
	for _, id := range order {
		results = append(results, *merged[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Testimony.ID < results[j].Testimony.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	return ix.attachTestimonies(ctx, results)
}

func (ix *Indexer) attachTestimonies(ctx context.Context, results []SearchResult) ([]SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}
	ids := make([]uint, len(results))
	for i, r := range results {
		ids[i] = r.Testimony.ID
	}

	var rows []models.Testimony
	if err := ix.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading search results: %w", err)
	}
	byID := make(map[uint]models.Testimony, len(rows))
	for _, t := range rows {
		byID[t.ID] = t
	}

	out := results[:0]
	for _, r := range results {
		t, ok := byID[r.Testimony.ID]
		if !ok {
			continue
		}
		r.Testimony = t
		out = append(out, r)
	}
	return out, nil
}

func (ix *Indexer) scoped(ctx context.Context, model any, table, origin string) *gorm.DB {
	q := ix.db.WithContext(ctx).Model(model)
	if origin != "" {
		q = q.Joins(fmt.Sprintf("JOIN testimonies t ON t.id = %s.testimony_id", table)).
			Where("t.origin = ?", origin)
	}
	return q
}

func (ix *Indexer) rankInDatabase(ctx context.Context, qvec []float32, origin string, limit int) ([]scoredEmbedding, []scoredChunk, error) {
	vec := pgvector.NewVector(qvec)

	var summaries []scoredEmbedding
	err := ix.scoped(ctx, &models.TestimonyEmbedding{}, "testimony_embeddings", origin).
		Select("testimony_embeddings.testimony_id, 1 - (testimony_embeddings.embedding <=> ?) AS score", vec).
		Order("score DESC").
		Limit(limit).
		Scan(&summaries).Error
	if err != nil {
		return nil, nil, fmt.Errorf("ranking summaries: %w", err)
	}

	var chunks []scoredChunk
	err = ix.scoped(ctx, &models.TestimonyChunk{}, "testimony_chunks", origin).
		Select("testimony_chunks.testimony_id, testimony_chunks.chunk_index, testimony_chunks.text, 1 - (testimony_chunks.embedding <=> ?) AS score", vec).
		Order("score DESC").
		Limit(limit * chunkFanout).
		Scan(&chunks).Error
	if err != nil {
		return nil, nil, fmt.Errorf("ranking chunks: %w", err)
	}
	return summaries, chunks, nil
}

func (ix *Indexer) rankInMemory(ctx context.Context, qvec []float32, origin string, limit int) ([]scoredEmbedding, []scoredChunk, error) {
	var embRows []models.TestimonyEmbedding
	err := ix.scoped(ctx, &models.TestimonyEmbedding{}, "testimony_embeddings", origin).
		Select("testimony_embeddings.testimony_id, testimony_embeddings.embedding").
		Find(&embRows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("loading summary embeddings: %w", err)
	}
	summaries := make([]scoredEmbedding, 0, len(embRows))
	for _, e := range embRows {
		summaries = append(summaries, scoredEmbedding{
			TestimonyID: e.TestimonyID,
			Score:       embeddings.Cosine(qvec, e.Embedding.Slice()),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Score > summaries[j].Score })
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}

	var chunkRows []models.TestimonyChunk
	err = ix.scoped(ctx, &models.TestimonyChunk{}, "testimony_chunks", origin).
		Select("testimony_chunks.testimony_id, testimony_chunks.chunk_index, testimony_chunks.text, testimony_chunks.embedding").
		Find(&chunkRows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("loading chunk embeddings: %w", err)
	}
	chunks := make([]scoredChunk, 0, len(chunkRows))
	for _, c := range chunkRows {
		chunks = append(chunks, scoredChunk{
			TestimonyID: c.TestimonyID,
			ChunkIndex:  c.ChunkIndex,
			Text:        c.Text,
			Score:       embeddings.Cosine(qvec, c.Embedding.Slice()),
		})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	if len(chunks) > limit*chunkFanout {
		chunks = chunks[:limit*chunkFanout]
	}
	return summaries, chunks, nil
}
