package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/joelkehle/roi-copilot/internal/config"
	"github.com/joelkehle/roi-copilot/internal/copilot"
	"github.com/joelkehle/roi-copilot/internal/llm"
	"github.com/joelkehle/roi-copilot/internal/roi"
	"github.com/joelkehle/roi-copilot/internal/search"
	"github.com/joelkehle/roi-copilot/internal/wizard"
)

// services holds the model-backed components shared by every command.
type services struct {
	provider string
	cfg      config.Config
	models   llm.ContentGenerator
	caller   llm.Caller
	catalog  search.Catalog
	cleanup  []func()
}

func (s *services) Close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

func buildServices(ctx context.Context, cfg config.Config, log *zap.Logger) (*services, error) {
	s := &services{provider: cfg.SearchProvider(), cfg: cfg}

	catalog := search.DefaultCatalog()
	if cfg.AI.CatalogPath != "" {
		loaded, err := search.LoadCatalog(cfg.AI.CatalogPath)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}
	catalog.Latency = cfg.AI.CatalogLatency.Duration
	s.catalog = catalog

	switch s.provider {
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, cfg.AI.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		s.models = client.Models
		s.caller = llm.NewGeminiCaller(client.Models, cfg.AI.GeminiModel, copilot.SystemPrompt)
	case config.ProviderAnthropic:
		caller, err := llm.NewAnthropicCaller(cfg.AI.AnthropicAPIKey, cfg.AI.AnthropicModel, copilot.SystemPrompt)
		if err != nil {
			return nil, err
		}
		s.caller = caller
	}
	log.Info("ai_provider", zap.String("provider", s.provider))
	return s, nil
}

func (s *services) searcher(log *zap.Logger) search.Searcher {
	switch {
	case s.models != nil:
		return search.NewGeminiSearcher(s.models, s.cfg.AI.GeminiModel, s.catalog, log)
	case s.caller != nil:
		return search.NewPromptedSearcher(s.caller, s.catalog, log)
	default:
		return search.NewOfflineSearcher(s.catalog)
	}
}

func (s *services) searchService(ctx context.Context, log *zap.Logger) *search.Service {
	cfg := s.cfg
	opts := search.ServiceOptions{
		Provider: s.provider,
		CacheTTL: cfg.Cache.TTL.Duration,
		Log:      log,
	}
	switch cfg.Cache.Backend {
	case config.CacheMemory:
		opts.Cache = search.NewMemoryCacheSize(cfg.Cache.MaxEntries)
	case config.CacheRedis:
		rc := search.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn("redis_unavailable_using_memory_cache", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
			_ = rc.Close()
			opts.Cache = search.NewMemoryCacheSize(cfg.Cache.MaxEntries)
		} else {
			opts.Cache = rc
			s.cleanup = append(s.cleanup, func() { _ = rc.Close() })
		}
	}
	return search.NewService(s.searcher(log), opts)
}

func (s *services) wizardOptions(delay time.Duration, log *zap.Logger) wizard.Options {
	return wizard.Options{
		Estimators: map[roi.Mode]wizard.Estimator{
			roi.ModeCustom: roi.CustomEstimator{},
			roi.ModeAI:     copilot.New(s.caller, log),
		},
		SubmitDelay: delay,
	}
}
