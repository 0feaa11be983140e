// Package aggregate fans a search out to every matching provider adapter,
// bounds each call with a deadline and retries, and merges the results with
// per-provider cache fallback.
package aggregate

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/travelsearch/internal/cache"
	"github.com/sells-group/travelsearch/internal/metrics"
	"github.com/sells-group/travelsearch/internal/model"
	"github.com/sells-group/travelsearch/internal/normalize"
	"github.com/sells-group/travelsearch/internal/provider"
	"github.com/sells-group/travelsearch/internal/resilience"
)

// DefaultTimeout bounds a single provider attempt when SearchOptions.Timeout
// is zero.
const DefaultTimeout = 8 * time.Second

// ErrTimeout marks an attempt that exceeded its deadline.
var ErrTimeout = resilience.ErrTimeout

// SearchOptions tune one aggregated search.
type SearchOptions struct {
	// Timeout is the per-attempt deadline. Zero uses DefaultTimeout.
	Timeout time.Duration
	// UseCache enables the whole-search cache read and write.
	UseCache bool
	// Providers restricts the search to these adapter names. Empty means all.
	Providers []string
}

// Aggregator coordinates concurrent provider searches.
type Aggregator struct {
	registry   *provider.Registry
	cache      cache.Cache
	policy     resilience.Policy
	breakers   *resilience.Breakers
	metrics    *metrics.Metrics
	defaultEPC map[model.Vertical]float64
	cacheTTL   time.Duration
	now        func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRetryPolicy overrides the default 3-attempt policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(a *Aggregator) { a.policy = p }
}

// WithBreakers enables per-provider circuit breakers.
func WithBreakers(b *resilience.Breakers) Option {
	return func(a *Aggregator) { a.breakers = b }
}

// WithMetrics records provider, attempt and cache metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithDefaultEPC sets the per-vertical EPC applied to offers without one.
func WithDefaultEPC(epc map[model.Vertical]float64) Option {
	return func(a *Aggregator) { a.defaultEPC = epc }
}

// WithCacheTTL sets the TTL for cache writes. Zero uses the cache default.
func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Aggregator) { a.cacheTTL = ttl }
}

// WithClock replaces time.Now for response timing.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New creates an Aggregator over registry. c may be nil to disable caching
// and fallback.
func New(registry *provider.Registry, c cache.Cache, opts ...Option) *Aggregator {
	a := &Aggregator{
		registry: registry,
		cache:    c,
		policy:   resilience.DefaultPolicy(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type outcome struct {
	offers []model.RawOffer
	err    error
	took   time.Duration
}

// Search queries every adapter that serves vertical and returns one response
// per adapter. It never fails; provider errors are reported inside the
// responses.
func (a *Aggregator) Search(ctx context.Context, vertical model.Vertical, params model.SearchParams, opts SearchOptions) []model.ProviderResponse {
	key := cache.Key(vertical, params, opts.Providers)
	log := zap.L().With(
		zap.String("vertical", string(vertical)),
		zap.String("cache_key", cache.ShortKey(key)),
	)

	if opts.UseCache && a.cache != nil {
		offers, ok := a.cache.Get(ctx, key)
		a.metrics.ObserveCache(ok)
		if ok {
			log.Debug("aggregate: cache hit", zap.Int("offers", len(offers)))
			return []model.ProviderResponse{{
				Provider: model.CacheProvider,
				Offers:   offers,
				Cached:   true,
			}}
		}
	}

	adapters := a.registry.Match(vertical, opts.Providers)
	if len(adapters) == 0 {
		log.Debug("aggregate: no matching providers")
		return []model.ProviderResponse{}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	results := make([]outcome, len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, ad := range adapters {
		g.Go(func() error {
			start := a.now()
			offers, err := a.call(gctx, ad, vertical, params, timeout)
			results[i] = outcome{offers: offers, err: err, took: a.now().Sub(start)}
			return nil
		})
	}
	_ = g.Wait()

	responses := make([]model.ProviderResponse, 0, len(adapters))
	var merged []model.Offer
	for i, ad := range adapters {
		name := ad.Name()
		res := results[i]
		pkey := cache.ProviderKey(vertical, params, name)

		if res.err == nil {
			offers := normalize.NormalizeOffers(res.offers, name, vertical, a.defaultEPC[vertical])
			responses = append(responses, model.ProviderResponse{
				Provider:     name,
				Offers:       offers,
				ResponseTime: res.took,
			})
			merged = append(merged, offers...)
			if a.cache != nil {
				a.cache.Set(ctx, pkey, offers, a.cacheTTL)
			}
			a.metrics.ObserveProvider(name, string(vertical), metrics.OutcomeSuccess, res.took)
			continue
		}

		log.Warn("aggregate: provider failed",
			zap.String("provider", name),
			zap.Duration("duration", res.took),
			zap.Error(res.err),
		)
		resp := model.ProviderResponse{
			Provider:     name,
			Offers:       []model.Offer{},
			ResponseTime: res.took,
			Error:        res.err.Error(),
		}
		outcomeLabel := metrics.OutcomeError
		if a.cache != nil {
			if cached, ok := a.cache.Get(ctx, pkey); ok {
				resp.Offers = cached
				resp.Fallback = true
				outcomeLabel = metrics.OutcomeFallback
				log.Info("aggregate: served provider fallback",
					zap.String("provider", name),
					zap.Int("offers", len(cached)),
				)
			}
		}
		a.metrics.ObserveProvider(name, string(vertical), outcomeLabel, res.took)
		responses = append(responses, resp)
	}

	merged = Dedupe(merged)
	if opts.UseCache && a.cache != nil && len(merged) > 0 {
		a.cache.Set(ctx, key, merged, a.cacheTTL)
	}

	log.Info("aggregate: search complete",
		zap.Int("providers", len(responses)),
		zap.Int("offers", len(merged)),
	)
	return responses
}

// call runs one adapter search under the retry policy. Each attempt races the
// adapter against timeout; an open circuit fails the attempt without retry.
func (a *Aggregator) call(ctx context.Context, ad provider.Adapter, vertical model.Vertical, params model.SearchParams, timeout time.Duration) ([]model.RawOffer, error) {
	name := ad.Name()
	var breaker *resilience.CircuitBreaker
	if a.breakers != nil {
		breaker = a.breakers.For(name)
	}

	p := a.policy
	p.ShouldRetry = func(err error) bool { return !errors.Is(err, resilience.ErrCircuitOpen) }
	p.OnRetry = resilience.RetryLogger(name, string(vertical))

	return resilience.Retry(ctx, p, func(ctx context.Context, _ int) ([]model.RawOffer, error) {
		offers, err := resilience.Call(ctx, breaker, func(ctx context.Context) ([]model.RawOffer, error) {
			return resilience.WithTimeout(ctx, timeout, func(ctx context.Context) ([]model.RawOffer, error) {
				return ad.Search(ctx, vertical, params)
			})
		})
		a.metrics.ObserveAttempt(name, err)
		return offers, err
	})
}

// Dedupe drops offers whose provider and id were already seen, keeping the
// first occurrence.
func Dedupe(offers []model.Offer) []model.Offer {
	seen := make(map[string]struct{}, len(offers))
	out := make([]model.Offer, 0, len(offers))
	for _, o := range offers {
		k := o.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}
