// Package pipeline sequences the ingestion and enrichment stages and drives
// each article through the crawled → translated → polished status machine.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/newswire/internal/config"
	"github.com/sells-group/newswire/internal/enrich"
	"github.com/sells-group/newswire/internal/extract"
	"github.com/sells-group/newswire/internal/model"
	"github.com/sells-group/newswire/internal/render"
	"github.com/sells-group/newswire/internal/resilience"
	"github.com/sells-group/newswire/internal/scan"
	"github.com/sells-group/newswire/internal/store"
)

// ErrNotReady marks a precondition violation: the stage cannot run until an
// earlier stage has completed. Retrying without that stage will not help, so
// callers must report it distinctly from transient failure.
var ErrNotReady = eris.New("pipeline: article not ready for this stage")

// ErrNothingIngested is returned by Run when ingest found no articles and no
// article ID was given.
var ErrNothingIngested = eris.New("pipeline: no articles to process")

// Pipeline orchestrates ingest, fetch, translate, and polish. It is the only
// component that calls the others; data flows one way through it.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	renderer  render.Renderer
	scanner   *scan.Scanner
	extractor *extract.Extractor
	enricher  enrich.Transformer
}

// New creates a Pipeline with all dependencies injected.
func New(
	cfg *config.Config,
	st store.Store,
	renderer render.Renderer,
	scanner *scan.Scanner,
	extractor *extract.Extractor,
	enricher enrich.Transformer,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		renderer:  renderer,
		scanner:   scanner,
		extractor: extractor,
		enricher:  enricher,
	}
}

// retryCfg builds the per-stage retry decorator from config. Retry lives
// here, at the orchestrator boundary; stage implementations never retry.
func (p *Pipeline) retryCfg(stage string) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    p.cfg.Pipeline.StageAttempts,
		InitialBackoff: time.Duration(p.cfg.Pipeline.BackoffMillis) * time.Millisecond,
		OnRetry:        resilience.RetryLogger(stage),
	}
}

// renderWithRetry renders a URL under the stage retry policy.
func (p *Pipeline) renderWithRetry(ctx context.Context, stage, url string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := resilience.Do(ctx, p.retryCfg(stage), func(ctx context.Context) error {
		d, renderErr := p.renderer.Render(ctx, url)
		if renderErr != nil {
			return renderErr
		}
		doc = d
		return nil
	})
	return doc, err
}

// Ingest scans the source landing page and inserts the candidates it finds.
// URLs already stored are silently dropped: re-ingesting discovers new
// articles, it never refreshes existing ones. Returns the number actually
// inserted.
func (p *Pipeline) Ingest(ctx context.Context) (int, error) {
	doc, err := p.renderWithRetry(ctx, "ingest", p.cfg.Source.ListingURL)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: render listing")
	}

	candidates := p.scanner.Scan(doc)
	if len(candidates) == 0 {
		zap.L().Info("pipeline: listing yielded no candidates")
		return 0, nil
	}

	inserted, err := p.store.InsertBatch(ctx, candidates)
	if err != nil {
		return inserted, eris.Wrap(err, "pipeline: insert candidates")
	}

	zap.L().Info("pipeline: ingest complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("inserted", inserted),
	)
	return inserted, nil
}

// IngestWithTitles ingests, then backfills a translated title for any stored
// article that still lacks one, so listing consumers see readable titles
// before the full translate stage runs. Status is untouched: translation of
// the body remains the status transition. A title that fails to translate is
// logged and skipped, never failing the ingest.
func (p *Pipeline) IngestWithTitles(ctx context.Context) (int, error) {
	inserted, err := p.Ingest(ctx)
	if err != nil {
		return 0, err
	}

	pending, err := p.store.List(ctx, model.ArticleFilter{
		Status: model.StatusCrawled,
		Limit:  1000,
	})
	if err != nil {
		return inserted, eris.Wrap(err, "pipeline: list for title backfill")
	}

	for _, article := range pending {
		if article.TitleTranslated != "" {
			continue
		}
		title, err := p.transformWithRetry(ctx, "translate_title", article.TitleSource, enrich.ModeTranslate)
		if err != nil {
			zap.L().Warn("pipeline: title backfill failed",
				zap.String("id", article.ID),
				zap.Error(err),
			)
			continue
		}
		if err := p.store.Update(ctx, article.ID, model.ArticleUpdate{TitleTranslated: &title}); err != nil {
			zap.L().Warn("pipeline: save backfilled title",
				zap.String("id", article.ID),
				zap.Error(err),
			)
		}
	}
	return inserted, nil
}

// FetchContent retrieves and extracts the full text for one article. On
// success the extracted fields are merged into the record; status stays
// crawled, since translation is the status transition, not fetching. On
// render failure the record is left untouched.
func (p *Pipeline) FetchContent(ctx context.Context, id string) error {
	article, err := p.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	doc, err := p.renderWithRetry(ctx, "fetch", article.URL)
	if err != nil {
		return eris.Wrapf(err, "pipeline: render article %s", article.URL)
	}

	content := p.extractor.Extract(doc)
	upd := model.ArticleUpdate{
		BodySource:  model.StrPtr(content.Body),
		ImageURL:    model.StrPtr(content.ImageURL),
		PublishedAt: model.StrPtr(content.PublishedAt),
	}
	if err := p.store.Update(ctx, id, upd); err != nil {
		return eris.Wrapf(err, "pipeline: save content %s", id)
	}

	zap.L().Info("pipeline: content fetched",
		zap.String("id", id),
		zap.Int("body_len", len(content.Body)),
	)
	return nil
}

// Translate produces the translated title and, when source body text exists,
// the translated body. Status advances to translated either way. Empty
// adapter output for a non-empty input fails the stage and leaves the record
// unchanged.
func (p *Pipeline) Translate(ctx context.Context, id string) error {
	article, err := p.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if article.TitleSource == "" {
		return eris.Wrap(ErrNotReady, "translate requires a source title")
	}

	title, err := p.transformWithRetry(ctx, "translate_title", article.TitleSource, enrich.ModeTranslate)
	if err != nil {
		return err
	}

	body := ""
	if article.BodySource != "" {
		body, err = p.transformWithRetry(ctx, "translate_body", article.BodySource, enrich.ModeTranslate)
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	upd := model.ArticleUpdate{
		TitleTranslated: &title,
		BodyTranslated:  &body,
		TranslatedAt:    &now,
		Status:          model.StatusPtr(model.StatusTranslated),
	}
	if err := p.store.Update(ctx, id, upd); err != nil {
		return eris.Wrapf(err, "pipeline: save translation %s", id)
	}

	zap.L().Info("pipeline: translated",
		zap.String("id", id),
		zap.Bool("body_translated", body != ""),
	)
	return nil
}

// Polish rewrites the translated body. It requires a non-empty translation:
// calling it earlier reports ErrNotReady ("translate first") rather than
// attempting the stage.
func (p *Pipeline) Polish(ctx context.Context, id string) error {
	article, err := p.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if article.BodyTranslated == "" {
		return eris.Wrap(ErrNotReady, "polish requires a translated body")
	}

	polished, err := p.transformWithRetry(ctx, "polish", article.BodyTranslated, enrich.ModePolish)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	upd := model.ArticleUpdate{
		BodyPolished: &polished,
		PolishedAt:   &now,
		Status:       model.StatusPtr(model.StatusPolished),
	}
	if err := p.store.Update(ctx, id, upd); err != nil {
		return eris.Wrapf(err, "pipeline: save polish %s", id)
	}

	zap.L().Info("pipeline: polished", zap.String("id", id))
	return nil
}

// transformWithRetry invokes the enrichment adapter under the stage retry
// policy and maps empty output for non-empty input to stage failure.
func (p *Pipeline) transformWithRetry(ctx context.Context, stage, text string, mode enrich.Mode) (string, error) {
	var out string
	err := resilience.Do(ctx, p.retryCfg(stage), func(ctx context.Context) error {
		result, transformErr := p.enricher.Transform(ctx, text, mode)
		if transformErr != nil {
			return transformErr
		}
		if result == "" && text != "" {
			return resilience.NewTransientError(
				eris.Errorf("pipeline: %s produced empty output", stage), 0)
		}
		out = result
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: %s", stage)
	}
	return out, nil
}

// Run composes ingest, fetch, and translate. When no article ID is given it
// processes the most recently crawled article after ingesting. A fetch
// failure degrades to title-only translation instead of aborting the run.
func (p *Pipeline) Run(ctx context.Context, id string) error {
	if _, err := p.Ingest(ctx); err != nil {
		zap.L().Warn("pipeline: ingest failed during run", zap.Error(err))
	}

	if id == "" {
		articles, err := p.store.List(ctx, model.ArticleFilter{Limit: 1})
		if err != nil {
			return eris.Wrap(err, "pipeline: pick latest article")
		}
		if len(articles) == 0 {
			return ErrNothingIngested
		}
		id = articles[0].ID
	}

	if err := p.FetchContent(ctx, id); err != nil {
		zap.L().Warn("pipeline: fetch failed, translating title only",
			zap.String("id", id),
			zap.Error(err),
		)
	}

	return p.Translate(ctx, id)
}

// ProcessPending fetches and translates every article still in crawled
// status, fanning out across articles while keeping the stage order strict
// within each. One article's failure never blocks its siblings.
func (p *Pipeline) ProcessPending(ctx context.Context) (int, error) {
	pending, err := p.store.List(ctx, model.ArticleFilter{
		Status: model.StatusCrawled,
		Limit:  1000,
	})
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: list pending")
	}

	maxConcurrent := p.cfg.Pipeline.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	var processed atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, article := range pending {
		g.Go(func() error {
			if err := p.FetchContent(gCtx, article.ID); err != nil {
				zap.L().Warn("pipeline: fetch failed",
					zap.String("id", article.ID),
					zap.Error(err),
				)
			}
			if err := p.Translate(gCtx, article.ID); err != nil {
				zap.L().Warn("pipeline: translate failed",
					zap.String("id", article.ID),
					zap.Error(err),
				)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}

	_ = g.Wait()

	zap.L().Info("pipeline: pending processed",
		zap.Int("pending", len(pending)),
		zap.Int64("processed", processed.Load()),
	)
	return int(processed.Load()), nil
}
