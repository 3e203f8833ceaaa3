package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newswire/internal/enrich"
	"github.com/sells-group/newswire/internal/extract"
	"github.com/sells-group/newswire/internal/pipeline"
	"github.com/sells-group/newswire/internal/render"
	"github.com/sells-group/newswire/internal/scan"
	"github.com/sells-group/newswire/internal/store"
	"github.com/sells-group/newswire/pkg/anthropic"
)

// pipelineEnv holds the initialized store and pipeline needed by the
// commands. The store is opened once here and closed on shutdown; nothing
// reaches it through ambient globals.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, renderer, scanner, extractor, and enricher,
// and builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	strategies := scan.DefaultStrategies()
	if cfg.Source.StrategyFile != "" {
		strategies, err = scan.LoadStrategies(cfg.Source.StrategyFile)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		zap.L().Info("scan strategies loaded from file",
			zap.String("file", cfg.Source.StrategyFile),
			zap.Int("strategies", len(strategies)),
		)
	}

	renderer := render.NewHTTPRenderer(render.Options{
		Timeout:        time.Duration(cfg.Render.TimeoutSecs) * time.Second,
		UserAgent:      cfg.Render.UserAgent,
		RequestsPerSec: cfg.Render.RequestsPerSec,
	})

	scanner := scan.New(strategies, cfg.Source.BaseURL, cfg.Source.ArticlePath)
	extractor := extract.New()
	enricher := enrich.NewLLMEnricher(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic)

	p := pipeline.New(cfg, st, renderer, scanner, extractor, enricher)

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		zap.L().Info("store: postgres")
		return st, nil
	case "", "sqlite":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		zap.L().Info("store: sqlite", zap.String("path", cfg.Store.DatabaseURL))
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
