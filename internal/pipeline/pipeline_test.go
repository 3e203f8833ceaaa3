package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newswire/internal/config"
	"github.com/sells-group/newswire/internal/enrich"
	"github.com/sells-group/newswire/internal/extract"
	"github.com/sells-group/newswire/internal/model"
	"github.com/sells-group/newswire/internal/scan"
	"github.com/sells-group/newswire/internal/store"
)

const listingHTML = `
<html><body>
<section data-testid="illinois-section-outer-10">
	<a href="/news/articles/abc123"><h2>First headline</h2></a>
	<a href="/news/articles/def456"><h2>Second headline</h2></a>
</section>
</body></html>`

const articleHTML = `
<html><body>
<div data-component="byline-block"><time datetime="2026-08-28T10:15:00Z">28 Aug</time></div>
<div data-component="text-block">Paragraph one.</div>
<div data-component="image-block"><img src="https://img.example/lead.jpg"></div>
<div data-component="text-block">Paragraph two.</div>
</body></html>`

type testEnv struct {
	pipeline    *Pipeline
	store       store.Store
	renderer    *mockRenderer
	transformer *mockTransformer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	cfg := &config.Config{}
	cfg.Source.ListingURL = "https://www.bbc.com/news"
	cfg.Source.BaseURL = "https://www.bbc.com"
	cfg.Source.ArticlePath = "/news/"
	cfg.Pipeline.StageAttempts = 1
	cfg.Pipeline.BackoffMillis = 1
	cfg.Pipeline.MaxConcurrent = 2

	renderer := &mockRenderer{}
	transformer := &mockTransformer{}

	p := New(cfg, st, renderer,
		scan.New(nil, cfg.Source.BaseURL, cfg.Source.ArticlePath),
		extract.New(), transformer)

	return &testEnv{pipeline: p, store: st, renderer: renderer, transformer: transformer}
}

func (e *testEnv) ingestOne(t *testing.T) model.Article {
	t.Helper()
	ctx := context.Background()
	n, err := e.store.InsertBatch(ctx, []model.Candidate{
		{Title: "First headline", URL: "https://www.bbc.com/news/articles/abc123"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	articles, err := e.store.List(ctx, model.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	return articles[0]
}

// --- Ingest ---

func TestIngest_InsertsCandidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.renderer.On("Render", mock.Anything, "https://www.bbc.com/news").
		Return(docFromHTML(listingHTML), nil)

	n, err := env.pipeline.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-ingesting the same listing discovers nothing new.
	n, err = env.pipeline.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	total, err := env.store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestIngest_RenderFailure(t *testing.T) {
	env := newTestEnv(t)

	env.renderer.On("Render", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	_, err := env.pipeline.Ingest(context.Background())
	assert.Error(t, err)
}

func TestIngest_EmptyListing(t *testing.T) {
	env := newTestEnv(t)

	env.renderer.On("Render", mock.Anything, mock.Anything).
		Return(docFromHTML(`<html><body></body></html>`), nil)

	n, err := env.pipeline.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestIngestWithTitles_BackfillsTitles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.renderer.On("Render", mock.Anything, "https://www.bbc.com/news").
		Return(docFromHTML(listingHTML), nil)
	env.transformer.On("Transform", mock.Anything, "First headline", enrich.ModeTranslate).
		Return("第一条头条", nil)
	env.transformer.On("Transform", mock.Anything, "Second headline", enrich.ModeTranslate).
		Return("第二条头条", nil)

	n, err := env.pipeline.IngestWithTitles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	articles, err := env.store.List(ctx, model.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	for _, a := range articles {
		assert.NotEmpty(t, a.TitleTranslated)
		assert.Equal(t, model.StatusCrawled, a.Status)
	}
}

func TestIngestWithTitles_TranslationFailureDoesNotFailIngest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.renderer.On("Render", mock.Anything, "https://www.bbc.com/news").
		Return(docFromHTML(listingHTML), nil)
	env.transformer.On("Transform", mock.Anything, mock.Anything, enrich.ModeTranslate).
		Return("", assert.AnError)

	n, err := env.pipeline.IngestWithTitles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	articles, err := env.store.List(ctx, model.ArticleFilter{})
	require.NoError(t, err)
	for _, a := range articles {
		assert.Empty(t, a.TitleTranslated)
	}
}

// --- FetchContent ---

func TestFetchContent_MergesExtractedFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.ingestOne(t)

	env.renderer.On("Render", mock.Anything, a.URL).
		Return(docFromHTML(articleHTML), nil)

	require.NoError(t, env.pipeline.FetchContent(ctx, a.ID))

	got, err := env.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paragraph one.\n\nParagraph two.", got.BodySource)
	assert.Equal(t, "https://img.example/lead.jpg", got.ImageURL)
	assert.Equal(t, "2026-08-28T10:15:00Z", got.PublishedAt)
	assert.Equal(t, model.StatusCrawled, got.Status)
}

func TestFetchContent_RenderFailureLeavesRecordUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.ingestOne(t)

	env.renderer.On("Render", mock.Anything, a.URL).
		Return(nil, assert.AnError)

	assert.Error(t, env.pipeline.FetchContent(ctx, a.ID))

	got, err := env.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.BodySource)
	assert.Equal(t, model.StatusCrawled, got.Status)
}

func TestFetchContent_UnknownID(t *testing.T) {
	env := newTestEnv(t)
	err := env.pipeline.FetchContent(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Translate ---

func TestTranslate_TitleAndBody(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.ingestOne(t)

	require.NoError(t, env.store.Update(ctx, a.ID, model.ArticleUpdate{
		BodySource: model.StrPtr("Paragraph one."),
	}))

	env.transformer.On("Transform", mock.Anything, "First headline", enrich.ModeTranslate).
		Return("第一条头条", nil)
	env.transformer.On("Transform", mock.Anything, "Paragraph one.", enrich.ModeTranslate).
		Return("第一段。", nil)

	require.NoError(t, env.pipeline.Translate(ctx, a.ID))

	got, err := env.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "第一条头条", got.TitleTranslated)
	assert.Equal(t, "第一段。", got.BodyTranslated)
	assert.Equal(t, model.StatusTranslated, got.Status)
	assert.NotNil(t, got.TranslatedAt)
}

func TestTranslate_TitleOnlyWhenBodyMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.ingestOne(t)

	env.transformer.On("Transform", mock.Anything, "First headline", enrich.ModeTranslate).
		Return("第一条头条", nil)

	require.NoError(t, env.pipeline.Translate(ctx, a.ID))

	got, err := env.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "第一条头条", got.TitleTranslated)
	assert.Empty(t, got.BodyTranslated)
	assert.Equal(t, model.StatusTranslated, got.Status)
	env.transformer.AssertNumberOfCalls(t, "Transform", 1)
}

func TestTranslate_EmptyOutputFailsWithoutMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.ingestOne(t)

	env.transformer.On("Transform", mock.Anything, "First headline", enrich.ModeTranslate).
		Return("", nil)

	assert.Error(t, env.pipeline.Translate(ctx, a.ID))

	got, err := env.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TitleTranslated)
	assert.Equal(t, model.StatusCrawled, got.Status)
}

func TestTranslate_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.ingestOne(t)

	env.transformer.On("Transform", mock.Anything, "First headline", enrich.ModeTranslate).
		Return("第一条头条", nil)

	require.NoError(t, env.pipeline.Translate(ctx, a.ID))
	require.NoError(t, env.pipeline.Translate(ctx, a.ID))

	got, err := env.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTranslated, got.Status)
}

// --- Polish ---

func TestPolish_RequiresTranslatedBody(t *testing.T) {
	env := newTestEnv(t)
	a := env.ingestOne(t)

	err := env.pipeline.Polish(context.Background(), a.ID)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestPolish_AdvancesStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.ingestOne(t)

	require.NoError(t, env.store.Update(ctx, a.ID, model.ArticleUpdate{
		BodyTranslated: model.StrPtr("第一段。"),
		Status:         model.StatusPtr(model.StatusTranslated),
	}))

	env.transformer.On("Transform", mock.Anything, "第一段。", enrich.ModePolish).
		Return("润色后的评论。", nil)

	require.NoError(t, env.pipeline.Polish(ctx, a.ID))

	got, err := env.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "润色后的评论。", got.BodyPolished)
	assert.Equal(t, model.StatusPolished, got.Status)
	assert.NotNil(t, got.PolishedAt)
}

// --- Run / ProcessPending ---

func TestRun_NothingIngested(t *testing.T) {
	env := newTestEnv(t)

	env.renderer.On("Render", mock.Anything, mock.Anything).
		Return(docFromHTML(`<html><body></body></html>`), nil)

	err := env.pipeline.Run(context.Background(), "")
	assert.ErrorIs(t, err, ErrNothingIngested)
}

func TestRun_FetchFailureDegradesToTitleOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.renderer.On("Render", mock.Anything, "https://www.bbc.com/news").
		Return(docFromHTML(listingHTML), nil)
	env.renderer.On("Render", mock.Anything, mock.MatchedBy(func(url string) bool {
		return url != "https://www.bbc.com/news"
	})).Return(nil, assert.AnError)
	env.transformer.On("Transform", mock.Anything, mock.Anything, enrich.ModeTranslate).
		Return("翻译后的标题", nil)

	require.NoError(t, env.pipeline.Run(ctx, ""))

	articles, err := env.store.List(ctx, model.ArticleFilter{Status: model.StatusTranslated})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Empty(t, articles[0].BodyTranslated)
}

func TestProcessPending_ProcessesAllCrawled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.store.InsertBatch(ctx, []model.Candidate{
		{Title: "First headline", URL: "https://www.bbc.com/news/articles/abc123"},
		{Title: "Second headline", URL: "https://www.bbc.com/news/articles/def456"},
	})
	require.NoError(t, err)

	env.renderer.On("Render", mock.Anything, mock.Anything).
		Return(docFromHTML(articleHTML), nil)
	env.transformer.On("Transform", mock.Anything, mock.Anything, enrich.ModeTranslate).
		Return("翻译文本", nil)

	n, err := env.pipeline.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remaining, err := env.store.Count(ctx, model.StatusCrawled)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestProcessPending_OneFailureDoesNotBlockOthers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.store.InsertBatch(ctx, []model.Candidate{
		{Title: "First headline", URL: "https://www.bbc.com/news/articles/abc123"},
		{Title: "Second headline", URL: "https://www.bbc.com/news/articles/def456"},
	})
	require.NoError(t, err)

	env.renderer.On("Render", mock.Anything, mock.Anything).
		Return(docFromHTML(articleHTML), nil)
	env.transformer.On("Transform", mock.Anything, "First headline", enrich.ModeTranslate).
		Return("", assert.AnError)
	env.transformer.On("Transform", mock.Anything, mock.Anything, enrich.ModeTranslate).
		Return("翻译文本", nil)

	n, err := env.pipeline.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
