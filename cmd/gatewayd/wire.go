package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/readmd/gateway/internal/config"
	"github.com/readmd/gateway/internal/convert/browser"
	"github.com/readmd/gateway/internal/convert/cachex"
	"github.com/readmd/gateway/internal/convert/escalate"
	"github.com/readmd/gateway/internal/convert/fetchx"
	"github.com/readmd/gateway/internal/convert/guard"
	"github.com/readmd/gateway/internal/convert/jobs"
	"github.com/readmd/gateway/internal/convert/orchestrator"
	"github.com/readmd/gateway/internal/convert/ratelimit"
	"github.com/readmd/gateway/internal/gatewayhttp"
	"github.com/readmd/gateway/internal/provider"
	"github.com/readmd/gateway/internal/provider/anthropic"
	"github.com/readmd/gateway/internal/provider/gemini"
	"github.com/readmd/gateway/internal/provider/ollama"
	"github.com/readmd/gateway/internal/provider/openai"
	"github.com/readmd/gateway/internal/provider/qwen"
)

// runtime bundles every process-wide collaborator wireDependencies builds,
// so run.go's shutdown path has one place to look for things to close.
type runtime struct {
	server *gatewayhttp.Server
	redis  *redis.Client
	pool   *browser.Pool
}

// wireDependencies constructs the full collaborator graph the gateway needs,
// mirroring the teacher's Gateway.Start: providers first, then the
// infra-backed layers (cache, rate limiter, jobs) that share a Redis client,
// then the HTTP server that ties them together.
func wireDependencies(ctx context.Context, cfg *config.Config) (*runtime, error) {
	g := guard.New()
	fetcher := fetchx.New(g)
	pool := browser.New(g, cfg.Browser.BinaryPath)

	if err := registerProviders(ctx, cfg.Providers); err != nil {
		return nil, fmt.Errorf("register providers: %w", err)
	}

	var llm provider.Provider
	if cfg.Escalate.DefaultProviderID != "" {
		p, err := provider.Get(cfg.Escalate.DefaultProviderID)
		if err != nil {
			return nil, fmt.Errorf("get default provider %s: %w", cfg.Escalate.DefaultProviderID, err)
		}
		llm = p
	}

	deps := orchestrator.Dependencies{
		Guard:     g,
		Fetcher:   fetcher,
		Browser:   pool,
		LLM:       llm,
		LLMModel:  cfg.Escalate.DefaultModel,
		BaasChain: escalate.Providers(adaptBaasConfig(cfg.Baas)),
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})

	cache, err := cachex.New(redisClient)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	limiter := ratelimit.New(redisClient)
	jobStore := jobs.NewStore(redisClient)

	server := gatewayhttp.New(cfg.Gateway, deps, cache, limiter, jobStore, g)

	return &runtime{server: server, redis: redisClient, pool: pool}, nil
}

// registerProviders constructs every configured LLM backend and registers
// it under its configured id, mirroring the teacher's initAgents loop
// (construct, then store in the shared registry, logging each success).
func registerProviders(ctx context.Context, providers map[string]config.ProviderConfig) error {
	for id, cfg := range providers {
		p, err := newLLMProvider(ctx, id, cfg)
		if err != nil {
			return fmt.Errorf("create provider %s: %w", id, err)
		}
		if err := provider.Register(p); err != nil {
			return fmt.Errorf("register provider %s: %w", id, err)
		}
	}
	return nil
}

// newLLMProvider dispatches to the backend-specific constructor. Each
// backend package owns its own ParseConfig(id, map) -> *Config conversion;
// this only bridges the differing NewProvider call shapes the backends
// happen to expose.
func newLLMProvider(ctx context.Context, id string, cfg config.ProviderConfig) (provider.Provider, error) {
	switch provider.Type(strings.ToLower(strings.TrimSpace(cfg.Type))) {
	case provider.OpenAI:
		oc, err := openai.ParseConfig(id, cfg.Config)
		if err != nil {
			return nil, err
		}
		return openai.NewProvider(ctx, *oc)
	case provider.Anthropic:
		return anthropic.NewProvider(ctx, id, cfg.Config)
	case provider.Gemini:
		gc, err := gemini.ParseConfig(id, cfg.Config)
		if err != nil {
			return nil, err
		}
		return gemini.NewProvider(ctx, *gc)
	case provider.Ollama:
		return ollama.NewProvider(ctx, id, cfg.Config)
	case provider.Qwen:
		qc, err := qwen.ParseConfig(id, cfg.Config)
		if err != nil {
			return nil, err
		}
		return qwen.NewProvider(*qc)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// adaptBaasConfig flattens the process config's order-ranked, Type-keyed
// BaaS map into escalate.BaasConfig's fixed per-family fields, keeping the
// lowest-Order entry of each family when more than one is configured.
func adaptBaasConfig(providers map[string]config.BaasConfig) escalate.BaasConfig {
	ordered := make([]config.BaasConfig, 0, len(providers))
	for _, p := range providers {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	var out escalate.BaasConfig
	for _, p := range ordered {
		switch strings.ToLower(strings.TrimSpace(p.Type)) {
		case "cloudflare":
			if out.Cloudflare.AccountID == "" {
				out.Cloudflare = escalate.CloudflareConfig{AccountID: p.AccountID, APIToken: p.APIKey}
			}
		case "scraperapi":
			if out.ScraperAPI.APIKey == "" {
				out.ScraperAPI = escalate.ScraperAPIConfig{APIKey: p.APIKey}
			}
		case "browserless":
			if out.Browserless.APIKey == "" {
				out.Browserless = escalate.BrowserlessConfig{APIKey: p.APIKey, Endpoint: p.Endpoint}
			}
		}
	}
	return out
}
