// Package app wires configuration into a ready-to-use match pipeline.
// Both binaries build their dependencies through it.
package app

import (
	"context"
	"fmt"

	"github.com/timmy/stylematch/internal/artifacts"
	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/metrics"
	"github.com/timmy/stylematch/internal/service"
	"github.com/timmy/stylematch/internal/source"
	"github.com/timmy/stylematch/internal/source/amazon"
	"github.com/timmy/stylematch/internal/source/googleshopping"
	"github.com/timmy/stylematch/internal/storage"
	"github.com/timmy/stylematch/internal/workspace"
)

// App holds the long-lived components of a running process.
type App struct {
	Config     *config.Config
	Metrics    *metrics.Metrics
	Match      *service.MatchService
	Workspaces *workspace.Manager
	Sources    []*source.Guarded
	Sidecars   *artifacts.Sink // nil when result sidecars are disabled

	cache *service.EmbeddingCache
}

// New builds every component described by cfg. Optional components (Redis
// cache, result sidecars) that fail to start are logged and skipped.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if m == nil {
		m = metrics.NewNop()
	}

	a := &App{Config: cfg, Metrics: m}

	workspaces, err := workspace.NewManager(cfg.Workspace, m)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize workspaces: %w", err)
	}
	a.Workspaces = workspaces

	if cfg.Cache.Enabled {
		cache, err := service.NewEmbeddingCache(ctx, cfg.Cache)
		if err != nil {
			logger.CtxWarn(ctx, "Embedding cache disabled: %v", err)
		} else {
			a.cache = cache
		}
	}

	embedder, err := service.NewEmbedder(cfg.Embedding, a.cache, m)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	var sink *artifacts.Sink
	if cfg.Artifacts.Enabled {
		store, err := storage.NewStorage(ctx, cfg.Storage)
		if err != nil {
			logger.CtxWarn(ctx, "Result sidecars disabled: %v", err)
		} else {
			sink = artifacts.NewSink(store, cfg.Artifacts.Prefix)
		}
	}

	targets, err := a.buildSources(cfg.Sources, sink)
	if err != nil {
		a.Close()
		return nil, err
	}
	if sink != nil {
		a.Sidecars = sink
		if cfg.Artifacts.PurgeOnSweep {
			workspaces.OnRemove(a.purgeSidecars)
		}
	}

	vlm := service.NewVLMService(cfg.VLM)
	match, err := service.NewMatchService(service.MatchDeps{
		Describer:  vlm,
		Sources:    targets,
		Embedder:   embedder,
		Fetcher:    service.NewImageFetcher(cfg.Fetch, cfg.Sources.UserAgent),
		Workspaces: workspaces,
		Metrics:    m,
	}, cfg.Pipeline, cfg.Embedding.Timeout)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Match = match

	logger.With(logger.Fields{logger.FieldCount: len(targets)}).
		Info(ctx, "Match pipeline ready: vlm=%s, embedding=%s/%s", vlm.GetModel(), cfg.Embedding.Provider, cfg.Embedding.Model)
	return a, nil
}

func (a *App) buildSources(cfg config.SourcesConfig, sink *artifacts.Sink) ([]service.SearchTarget, error) {
	var targets []service.SearchTarget
	add := func(src source.Source, maxResults int) {
		g := source.NewGuarded(src, cfg.Timeout, cfg.Breaker, sink, a.Metrics)
		a.Sources = append(a.Sources, g)
		targets = append(targets, service.SearchTarget{Source: g, MaxResults: maxResults})
	}

	if cfg.GoogleShopping.Enabled {
		gs, err := googleshopping.NewAdapter(cfg.GoogleShopping.BaseURL, cfg.UserAgent, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		add(gs, cfg.GoogleShopping.MaxResults)
	}
	if cfg.Amazon.Enabled {
		az, err := amazon.NewAdapter(cfg.Amazon.BaseURL, cfg.UserAgent, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		add(az, cfg.Amazon.MaxResults)
	}
	return targets, nil
}

// purgeSidecars deletes the sidecars of a swept workspace.
func (a *App) purgeSidecars(ctx context.Context, matchID string) {
	ids := make([]string, 0, len(a.Sources))
	for _, g := range a.Sources {
		ids = append(ids, g.GetSourceID())
	}
	n, err := a.Sidecars.Purge(ctx, matchID, ids)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to purge sidecars of %s: %v", matchID, err)
		return
	}
	if n > 0 {
		logger.CtxDebug(ctx, "Purged %d sidecars of %s", n, matchID)
	}
}

// Close releases connections held by optional components.
func (a *App) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn("Failed to close embedding cache: %v", err)
		}
	}
}
