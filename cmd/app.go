package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/travelsearch/internal/aggregate"
	"github.com/sells-group/travelsearch/internal/cache"
	"github.com/sells-group/travelsearch/internal/config"
	"github.com/sells-group/travelsearch/internal/db"
	"github.com/sells-group/travelsearch/internal/decision"
	"github.com/sells-group/travelsearch/internal/epc"
	"github.com/sells-group/travelsearch/internal/metrics"
	"github.com/sells-group/travelsearch/internal/provider"
	"github.com/sells-group/travelsearch/internal/resilience"
	"github.com/sells-group/travelsearch/internal/search"
)

// appEnv holds the initialized stores, registries and services needed by
// the search and serve commands.
type appEnv struct {
	Registry   *provider.Registry
	Cache      cache.Cache
	EPC        epc.Store
	Breakers   *resilience.Breakers // nil when disabled
	Metrics    *metrics.Metrics
	Prometheus *prometheus.Registry
	Service    *search.Service
	Defaults   aggregate.SearchOptions

	closers []func() error
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close resource", zap.Error(err))
		}
	}
}

// initApp validates cfg and wires providers, cache, EPC store, ranking and
// fan-out. Callers should defer env.Close().
func initApp(ctx context.Context, cfg *config.Config) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engineCfg, err := cfg.Decision.Engine()
	if err != nil {
		return nil, err
	}

	env := &appEnv{
		Prometheus: prometheus.NewRegistry(),
		Defaults:   cfg.Search.Options(),
	}
	env.Prometheus.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	env.Metrics = metrics.New(env.Prometheus)

	env.Registry, err = buildRegistry(cfg.Providers)
	if err != nil {
		return nil, err
	}

	env.Cache, err = initCache(ctx, env, cfg.Cache)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.EPC, err = epc.Open(ctx, cfg.EPC.Driver, cfg.EPC.DatabaseURL, &db.PoolConfig{
		MaxConns: cfg.EPC.MaxConns,
		MinConns: cfg.EPC.MinConns,
	})
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "open epc store")
	}
	env.closers = append(env.closers, env.EPC.Close)

	aggOpts := []aggregate.Option{
		aggregate.WithRetryPolicy(cfg.Search.RetryPolicy()),
		aggregate.WithMetrics(env.Metrics),
		aggregate.WithDefaultEPC(engineCfg.DefaultEPC),
		aggregate.WithCacheTTL(cfg.Cache.TTL()),
	}
	if cfg.Circuit.Enabled {
		bc := cfg.Circuit.BreakerConfig()
		bc.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
		env.Breakers = resilience.NewBreakers(bc)
		aggOpts = append(aggOpts, aggregate.WithBreakers(env.Breakers))
	}

	agg := aggregate.New(env.Registry, env.Cache, aggOpts...)
	engine := decision.New(engineCfg, env.EPC, decision.WithMetrics(env.Metrics))
	env.Service = search.NewService(agg, engine)

	zap.L().Info("travelsearch initialized",
		zap.Strings("providers", env.Registry.List()),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("epc_driver", cfg.EPC.Driver),
		zap.Bool("circuit_breakers", cfg.Circuit.Enabled),
	)
	return env, nil
}

// buildRegistry creates one adapter per configured provider.
func buildRegistry(providers []config.ProviderConfig) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	for _, p := range providers {
		switch p.Kind {
		case config.ProviderKindFixture:
			fx, err := provider.LoadFixture(p.FixturePath)
			if err != nil {
				return nil, err
			}
			var opts []provider.FixtureOption
			if p.LatencyMs > 0 {
				opts = append(opts, provider.WithLatency(time.Duration(p.LatencyMs)*time.Millisecond))
			}
			if vs := p.ParsedVerticals(); len(vs) > 0 {
				opts = append(opts, provider.WithVerticals(vs...))
			}
			reg.Register(provider.NewFixtureAdapter(p.Name, fx, opts...))
		case config.ProviderKindHTTP:
			reg.Register(provider.NewHTTPAdapter(provider.HTTPConfig{
				Name:         p.Name,
				BaseURL:      p.BaseURL,
				APIKey:       p.APIKey,
				APIKeyHeader: p.APIKeyHeader,
				ResultsPath:  p.ResultsPath,
				Verticals:    p.ParsedVerticals(),
				RatePerSec:   p.RatePerSec,
				Timeout:      time.Duration(p.TimeoutMs) * time.Millisecond,
			}))
		default:
			return nil, eris.Errorf("provider %s: unknown kind %q", p.Name, p.Kind)
		}
	}
	return reg, nil
}

func initCache(ctx context.Context, env *appEnv, cfg config.CacheConfig) (cache.Cache, error) {
	if cfg.Backend != "redis" {
		return cache.NewMemory(), nil
	}
	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, client.Close)
	return cache.NewRedis(client, cfg.Redis.Prefix), nil
}
