package injector

import (
	"time"

	agentbiz "github.com/lk2023060901/agentic-gateway/internal/agent/biz"
	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/factory"
	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/registry"
	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/lk2023060901/agentic-gateway/internal/auth"
	chatbiz "github.com/lk2023060901/agentic-gateway/internal/chat/biz"
	"github.com/lk2023060901/agentic-gateway/internal/conf"
	"github.com/lk2023060901/agentic-gateway/internal/data"
	"github.com/lk2023060901/agentic-gateway/internal/github"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/workerpool"
	respdata "github.com/lk2023060901/agentic-gateway/internal/responses/data"
	"github.com/lk2023060901/agentic-gateway/internal/tools"
	"github.com/lk2023060901/agentic-gateway/internal/websearch"
	"github.com/lk2023060901/agentic-gateway/internal/websearch/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Data layer

func provideData(config *conf.Config, log *logger.Logger) (*data.Data, func(), error) {
	return data.NewData(config, log)
}

func provideResponseRepo(d *data.Data) *respdata.ResponseRepo {
	return respdata.NewResponseRepo(d.DB)
}

// Metrics

func provideMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// LLM providers

func provideProviderRegistry(config *conf.Config, log *logger.Logger) (*registry.Registry, func(), error) {
	reg, err := factory.BuildRegistry(config.LLM.ProviderParams(), config.LLM.Aliases, log)
	if err != nil {
		return nil, nil, err
	}
	if reg.Len() == 0 {
		log.Warn("no llm provider configured, chat and agent endpoints are unavailable")
	}

	cleanup := func() {
		if err := reg.Close(); err != nil {
			log.Warn("failed to close llm providers", zap.Error(err))
		}
	}
	return reg, cleanup, nil
}

// Chat

func provideTokenCounter(config *conf.Config) (chatbiz.TokenCounter, error) {
	return chatbiz.NewTokenCounter(config.Chat.UsageEstimator)
}

func provideEnvelope(config *conf.Config, counter chatbiz.TokenCounter) *chatbiz.Envelope {
	return chatbiz.NewEnvelope(config.LLM.DefaultModel, counter)
}

func provideAdapter(resolver chatbiz.ProviderResolver, config *conf.Config, metrics *prometheus.Registry, log *logger.Logger) *chatbiz.Adapter {
	return chatbiz.NewAdapter(resolver, chatbiz.AdapterConfig{
		FallbackModels: config.LLM.FallbackModels,
		AttemptTimeout: config.LLM.AttemptTimeout,
	}, metrics, log)
}

func provideCatalogue(config *conf.Config) []ptypes.Model {
	return chatbiz.NewCatalogue(config.LLM.Catalogue, time.Now())
}

// Tools

func provideSearcher(config *conf.Config, log *logger.Logger) (*websearch.Searcher, error) {
	if config.Tools.Tavily.APIKey == "" {
		log.Info("tavily api key not configured, web search disabled")
		return websearch.NewSearcher(nil), nil
	}

	p, err := provider.NewTavilyProvider(&config.Tools.Tavily)
	if err != nil {
		return nil, err
	}
	return websearch.NewSearcher(p), nil
}

func provideGitHubClient(config *conf.Config) *github.Client {
	return github.NewClient(&config.Tools.GitHub)
}

func provideToolCache(d *data.Data, config *conf.Config, log *logger.Logger) tools.Cache {
	if d.Redis == nil {
		return nil
	}
	return tools.NewRedisCache(d.Redis, config.Tools.CacheTTL, log)
}

func provideToolPool(config *conf.Config, log *logger.Logger) (*workerpool.Pool, func(), error) {
	pool, err := workerpool.New(&config.Tools.Pool, log.Named("tools.pool"))
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Release, nil
}

func provideToolRegistry(
	searcher *websearch.Searcher,
	gh *github.Client,
	cache tools.Cache,
	pool *workerpool.Pool,
	log *logger.Logger,
) *tools.Registry {
	return tools.NewRegistry(searcher, gh, cache, log).UsePool(pool)
}

// Agent

func provideAgent(
	completer agentbiz.Completer,
	executor agentbiz.ToolExecutor,
	providers *registry.Registry,
	config *conf.Config,
	log *logger.Logger,
) *agentbiz.Agent {
	cfg := config.Agent
	if cfg.Model == "" {
		cfg.Model = config.LLM.DefaultModel
	}
	return agentbiz.NewAgent(completer, executor, cfg, func() bool { return providers.Len() > 0 }, log)
}

// Auth

// provideJWTManager returns nil when no secret is configured, which disables bearer auth
func provideJWTManager(config *conf.Config, log *logger.Logger) (*auth.JWTManager, error) {
	if !config.Auth.Enabled() {
		log.Info("jwt secret not configured, api authentication disabled")
		return nil, nil
	}
	return auth.NewJWTManager(&config.Auth)
}
