package maintenance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/prompts"
	"github.com/killallgit/testimony-api/internal/services/summary"
	"github.com/killallgit/testimony-api/internal/services/testimonies"
	"github.com/killallgit/testimony-api/internal/testutil"
	"github.com/killallgit/testimony-api/pkg/logger"
)

type echoModel struct{ calls int }

func (m *echoModel) Complete(ctx context.Context, msgs []summary.Message, p summary.Params) (string, error) {
	m.calls++
	return "Resumen nuevo.\nEtiquetas: fe", nil
}

type recordingEmbedder struct{ ids []uint }

func (r *recordingEmbedder) EmbedSummary(ctx context.Context, id uint, text string) error {
	r.ids = append(r.ids, id)
	return nil
}

func completed(summaryText string, promptID *uint) func(*models.Testimony) {
	return func(tm *models.Testimony) {
		tm.TranscriptStatus = models.TranscriptCompleted
		tm.Transcript = testutil.Ptr("El Señor me sanó")
		if summaryText != "" {
			tm.Summary = testutil.Ptr(summaryText)
		}
		tm.SummaryPromptID = promptID
	}
}

func TestResummarizer(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := testimonies.NewRepository(db)
	registry := prompts.NewRegistry(db)

	model := &echoModel{}
	engine := summary.NewEngine(model, summary.DefaultPrompt(), registry, logger.Discard())
	current := engine.PromptID(ctx)
	require.NotNil(t, current)

	oldID, err := registry.GetOrCreate(ctx, prompts.Spec{Name: "summary", Version: "v1", Template: "viejo", Model: "gpt-3.5-turbo"})
	require.NoError(t, err)

	stale := testutil.CreateTestimony(t, db, completed("Resumen viejo", &oldID))
	missing := testutil.CreateTestimony(t, db, completed("", nil))
	fresh := testutil.CreateTestimony(t, db, completed("Ya actualizado", current))
	testutil.CreateTestimony(t, db, nil)

	embedder := &recordingEmbedder{}
	r := NewResummarizer(repo, engine, embedder, logger.Discard())

	dry, err := r.Run(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, dry.Candidates)
	assert.Len(t, dry.Changes, 2)
	assert.Zero(t, dry.Updated)

	unchanged, err := repo.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, "Resumen viejo", unchanged.SummaryText())

	report, err := r.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Updated)
	assert.ElementsMatch(t, []uint{stale.ID, missing.ID}, embedder.ids)

	for _, id := range []uint{stale.ID, missing.ID} {
		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Resumen nuevo.\nEtiquetas: fe", got.SummaryText())
		require.NotNil(t, got.SummaryPromptID)
		assert.Equal(t, *current, *got.SummaryPromptID)
	}

	untouched, err := repo.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ya actualizado", untouched.SummaryText())

	again, err := r.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, again.Candidates)
}

func TestResummarizerKeepsSummaryOnFailure(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := testimonies.NewRepository(db)

	engine := summary.NewEngine(nil, summary.DefaultPrompt(), prompts.NewRegistry(db), logger.Discard())
	tm := testutil.CreateTestimony(t, db, completed("Resumen viejo", nil))

	report, err := NewResummarizer(repo, engine, nil, logger.Discard()).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	got, err := repo.Get(ctx, tm.ID)
	require.NoError(t, err)
	assert.Equal(t, "Resumen viejo", got.SummaryText())
}

func TestStripSections(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := testimonies.NewRepository(db)

	legacy := testutil.CreateTestimony(t, db, completed("**Resumen:** La hermana oró. **Etiquetas doctrinales:** #fe", nil))
	onlyTags := testutil.CreateTestimony(t, db, completed("**Etiquetas doctrinales:** #solaetiqueta", nil))
	clean := testutil.CreateTestimony(t, db, completed("Un resumen que no necesita cambios.", nil))

	dry, err := StripSections(ctx, repo, Options{DryRun: true}, logger.Discard())
	require.NoError(t, err)
	assert.Len(t, dry.Changes, 1)
	assert.Equal(t, 1, dry.Skipped)

	report, err := StripSections(ctx, repo, Options{}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	got, err := repo.Get(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, "La hermana oró.", got.SummaryText())

	for _, id := range []uint{onlyTags.ID, clean.ID} {
		before, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.NotEmpty(t, before.SummaryText())
	}
}
