package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/chunker"
	"github.com/killallgit/testimony-api/internal/testutil"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// keywordEmbedder places texts on axes by keyword so similarity is predictable
type keywordEmbedder struct {
	calls int
	fail  bool
}

var axes = []string{"sanidad", "familia", "provision"}

func (k *keywordEmbedder) Model() string   { return "keywords" }
func (k *keywordEmbedder) Dimensions() int { return len(axes) + 1 }

func (k *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	k.calls++
	if k.fail {
		return nil, errors.New("rate limit exceeded")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(axes)+1)
		lower := strings.ToLower(text)
		for j, axis := range axes {
			vec[j] = float32(strings.Count(lower, axis))
		}
		vec[len(axes)] = 0.1
		out[i] = vec
	}
	return out, nil
}

func newTestIndexer(t *testing.T, maxTokens int) (*Indexer, *gorm.DB, *keywordEmbedder) {
	t.Helper()
	db := testutil.NewDB(t)
	c, err := chunker.New(maxTokens, 1)
	require.NoError(t, err)
	emb := &keywordEmbedder{}
	return New(db, c, emb, logger.Discard()), db, emb
}

func completed(transcript string) func(*models.Testimony) {
	return func(tm *models.Testimony) {
		tm.TranscriptStatus = models.TranscriptCompleted
		tm.Transcript = testutil.Ptr(transcript)
	}
}

func chunkRows(t *testing.T, db *gorm.DB, id uint) []models.TestimonyChunk {
	t.Helper()
	var rows []models.TestimonyChunk
	require.NoError(t, db.Where("testimony_id = ?", id).Order("chunk_index").Find(&rows).Error)
	return rows
}

func TestIndexTranscriptIsIdempotent(t *testing.T) {
	ix, db, _ := newTestIndexer(t, 5)
	ctx := context.Background()
	tm := testutil.CreateTestimony(t, db, completed(""))

	text := "Dios trajo sanidad. Mi familia oró. Hubo provision cada mes. Gloria a Dios."
	n, err := ix.IndexTranscript(ctx, tm.ID, text)
	require.NoError(t, err)
	require.Greater(t, n, 1)

	again, err := ix.IndexTranscript(ctx, tm.ID, text)
	require.NoError(t, err)
	assert.Equal(t, n, again)

	rows := chunkRows(t, db, tm.ID)
	require.Len(t, rows, n)
	for i, r := range rows {
		assert.Equal(t, i, r.ChunkIndex)
		assert.Len(t, r.Embedding.Slice(), 4)
	}
}

func TestIndexTranscriptRemovesStaleTail(t *testing.T) {
	ix, db, _ := newTestIndexer(t, 5)
	ctx := context.Background()
	tm := testutil.CreateTestimony(t, db, completed(""))

	long := strings.Repeat("uno dos tres. ", 10)
	n, err := ix.IndexTranscript(ctx, tm.ID, long)
	require.NoError(t, err)
	require.Greater(t, n, 1)

	n, err = ix.IndexTranscript(ctx, tm.ID, "Gloria a Dios")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows := chunkRows(t, db, tm.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "Gloria a Dios", rows[0].Text)
}

func TestIndexTranscriptEmbeddingFailureWritesNothing(t *testing.T) {
	ix, db, emb := newTestIndexer(t, 400)
	emb.fail = true
	tm := testutil.CreateTestimony(t, db, completed(""))

	_, err := ix.IndexTranscript(context.Background(), tm.ID, "Gloria a Dios")
	assert.Error(t, err)

	indexed, err := ix.IsIndexed(context.Background(), tm.ID)
	require.NoError(t, err)
	assert.False(t, indexed)
}

func TestEmbedSummaryUpserts(t *testing.T) {
	ix, db, emb := newTestIndexer(t, 400)
	ctx := context.Background()
	tm := testutil.CreateTestimony(t, db, completed("x"))

	require.NoError(t, ix.EmbedSummary(ctx, tm.ID, "Testimonio de sanidad.\nEtiquetas: sanidad"))
	require.NoError(t, ix.EmbedSummary(ctx, tm.ID, "Testimonio de familia.\nEtiquetas: familia"))

	var rows []models.TestimonyEmbedding
	require.NoError(t, db.Where("testimony_id = ?", tm.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "keywords", rows[0].Model)
	assert.Equal(t, float32(2), rows[0].Embedding.Slice()[1])

	calls := emb.calls
	require.NoError(t, ix.EmbedSummary(ctx, tm.ID, "   "))
	assert.Equal(t, calls, emb.calls, "blank summary is not embedded")

	has, err := ix.HasSummaryEmbedding(ctx, tm.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestBackfill(t *testing.T) {
	ix, db, _ := newTestIndexer(t, 400)
	ctx := context.Background()

	a := testutil.CreateTestimony(t, db, completed("sanidad total"))
	b := testutil.CreateTestimony(t, db, func(tm *models.Testimony) {
		completed("familia unida")(tm)
		tm.Summary = testutil.Ptr("Resumen de familia")
	})
	testutil.CreateTestimony(t, db, nil) // pending, ignored
	testutil.CreateTestimony(t, db, func(tm *models.Testimony) {
		tm.TranscriptStatus = models.TranscriptCompletedEmpty
	})

	_, err := ix.IndexTranscript(ctx, b.ID, "familia unida")
	require.NoError(t, err)

	dry, err := ix.Backfill(ctx, BackfillOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, dry.TranscriptsFound)
	assert.Equal(t, 1, dry.SummariesFound)
	assert.Equal(t, 0, dry.TranscriptsIndexed)

	report, err := ix.Backfill(ctx, BackfillOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TranscriptsIndexed)
	assert.Equal(t, 1, report.ChunksWritten)
	assert.Equal(t, 1, report.SummariesEmbedded)
	assert.Zero(t, report.Failures)

	indexed, err := ix.IsIndexed(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, indexed)

	again, err := ix.Backfill(ctx, BackfillOptions{})
	require.NoError(t, err)
	assert.Zero(t, again.TranscriptsFound)
	assert.Zero(t, again.SummariesFound)
}

func TestBackfillContinuesAfterFailure(t *testing.T) {
	ix, db, emb := newTestIndexer(t, 400)
	testutil.CreateTestimony(t, db, completed("sanidad"))
	testutil.CreateTestimony(t, db, completed("familia"))
	emb.fail = true

	report, err := ix.Backfill(context.Background(), BackfillOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.TranscriptsFound)
	assert.Equal(t, 2, report.Failures)
}

func TestSearchRanksBySimilarity(t *testing.T) {
	ix, db, _ := newTestIndexer(t, 400)
	ctx := context.Background()

	healing := testutil.CreateTestimony(t, db, completed("Dios me dio sanidad del cáncer, sanidad completa"))
	family := testutil.CreateTestimony(t, db, func(tm *models.Testimony) {
		completed("Mi familia fue restaurada")(tm)
		tm.Origin = "geneve"
	})

	for _, tm := range []*models.Testimony{healing, family} {
		_, err := ix.IndexTranscript(ctx, tm.ID, tm.TranscriptText())
		require.NoError(t, err)
	}
	require.NoError(t, ix.EmbedSummary(ctx, family.ID, "Restauración de la familia. Etiquetas: familia"))

	results, err := ix.Search(ctx, "sanidad", SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, healing.ID, results[0].Testimony.ID)
	assert.Equal(t, "lausanne", results[0].Testimony.Origin)
	require.NotNil(t, results[0].BestChunk)
	assert.Equal(t, 0, results[0].BestChunk.Index)
	assert.Greater(t, results[0].Score, results[1].Score)

	scoped, err := ix.Search(ctx, "familia", SearchOptions{Origin: "geneve"})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, family.ID, scoped[0].Testimony.ID)
	assert.Greater(t, scoped[0].SummaryScore, 0.9)

	_, err = ix.Search(ctx, "  ", SearchOptions{})
	assert.Error(t, err)
}
