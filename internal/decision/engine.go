// Package decision ranks normalized offers, choosing a cheapest offer and a
// best value offer among near-ties by expected earnings.
package decision

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/travelsearch/internal/metrics"
	"github.com/sells-group/travelsearch/internal/model"
	"github.com/sells-group/travelsearch/internal/resilience"
)

// EPCSource serves learned EPC records. epc.Store satisfies it.
type EPCSource interface {
	Lookup(ctx context.Context, provider string, vertical model.Vertical) (*model.EPCRecord, error)
}

// Result describes one ranking pass. Offer references use model.Offer.Key.
type Result struct {
	Offers           []model.Offer `json:"offers"`
	CheapestKey      string        `json:"cheapest,omitempty"`
	BestValueKey     string        `json:"best_value,omitempty"`
	WinnerKey        string        `json:"winner,omitempty"`
	TieSetSize       int           `json:"tie_set_size"`
	GuardrailApplied bool          `json:"guardrail_applied"`
}

// Engine applies the ranking pipeline. It is safe for concurrent use.
type Engine struct {
	cfg     Config
	source  EPCSource
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records one decision per Decide call.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine. source may be nil, in which case only offer EPCs
// are used.
func New(cfg Config, source EPCSource, opts ...Option) *Engine {
	if cfg.EPCLookupTimeout <= 0 {
		cfg.EPCLookupTimeout = DefaultConfig().EPCLookupTimeout
	}
	e := &Engine{cfg: cfg, source: source}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Process returns a tagged copy of offers sorted by penalty-adjusted total.
func (e *Engine) Process(ctx context.Context, offers []model.Offer, vertical model.Vertical) []model.Offer {
	return e.Decide(ctx, offers, vertical).Offers
}

// Decide runs the full pipeline and reports the intermediate choices.
func (e *Engine) Decide(ctx context.Context, offers []model.Offer, vertical model.Vertical) Result {
	if len(offers) == 0 {
		return Result{Offers: []model.Offer{}}
	}

	out := make([]model.Offer, len(offers))
	totals := make([]decimal.Decimal, len(offers))
	for i, o := range offers {
		o.IsCheapest = false
		o.IsBestValue = false
		totals[i] = e.adjustedTotal(o)
		o.TotalPrice = totals[i].InexactFloat64()
		out[i] = o
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return totals[idx[a]].LessThan(totals[idx[b]])
	})
	sorted := make([]model.Offer, len(out))
	sortedTotals := make([]decimal.Decimal, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
		sortedTotals[i] = totals[j]
	}

	ties := e.tieSetSize(sortedTotals)
	learned := e.prefetchEPC(ctx, sorted[:ties], vertical)

	winner := 0
	best := e.score(sorted[0], learned)
	for i := 1; i < ties; i++ {
		if s := e.score(sorted[i], learned); s > best {
			best = s
			winner = i
		}
	}

	res := Result{
		CheapestKey: sorted[0].Key(),
		WinnerKey:   sorted[winner].Key(),
		TieSetSize:  ties,
	}

	limit := sortedTotals[0].Mul(decimal.NewFromFloat(1 + e.cfg.GuardrailPct))
	if sortedTotals[winner].GreaterThan(limit) {
		zap.L().Debug("decision: guardrail overrode winner",
			zap.String("vertical", string(vertical)),
			zap.String("winner", res.WinnerKey),
			zap.Float64("winner_total", sorted[winner].TotalPrice),
			zap.Float64("cheapest_total", sorted[0].TotalPrice),
		)
		winner = 0
		res.GuardrailApplied = true
	}

	sorted[0].IsCheapest = true
	sorted[winner].IsBestValue = true
	res.BestValueKey = sorted[winner].Key()
	res.Offers = sorted

	e.metrics.ObserveDecision(string(vertical), res.GuardrailApplied)
	return res
}

// adjustedTotal computes (base + taxes) x (1 + penalties), rounded to cents.
func (e *Engine) adjustedTotal(o model.Offer) decimal.Decimal {
	p := e.cfg.Penalties
	pct := decimal.Zero
	if f := o.Flight; f != nil {
		if f.BaggageIncluded == nil || !*f.BaggageIncluded {
			pct = pct.Add(decimal.NewFromFloat(p.NoBaggage))
		}
		if f.CarryOnIncluded != nil && !*f.CarryOnIncluded {
			pct = pct.Add(decimal.NewFromFloat(p.NoCarryOn))
		}
		if f.LayoverMinutes != nil && *f.LayoverMinutes > p.LayoverLimitMinutes {
			pct = pct.Add(decimal.NewFromFloat(p.LongLayover))
		}
	}
	if o.Refundable != nil && !*o.Refundable {
		pct = pct.Add(decimal.NewFromFloat(p.NonRefundable))
	}

	base := decimal.NewFromFloat(o.BasePrice).Add(decimal.NewFromFloat(o.TaxesFees))
	return base.Mul(decimal.NewFromInt(1).Add(pct)).Round(2)
}

// tieSetSize counts the leading offers that are near the cheapest price.
// totals must be sorted ascending.
func (e *Engine) tieSetSize(totals []decimal.Decimal) int {
	cheapest := totals[0]
	abs := decimal.NewFromFloat(e.cfg.AbsTieThreshold)
	pct := decimal.NewFromFloat(e.cfg.PctTieThreshold)

	n := 1
	for ; n < len(totals); n++ {
		p := totals[n]
		if p.Sub(cheapest).Abs().LessThanOrEqual(abs) {
			continue
		}
		if cheapest.IsPositive() && p.Div(cheapest).LessThanOrEqual(pct) {
			continue
		}
		break
	}
	return n
}

func (e *Engine) score(o model.Offer, learned map[string]*model.EPCRecord) float64 {
	epc := o.EPC
	if rec := learned[o.Provider]; rec != nil &&
		rec.ConfidenceScore >= e.cfg.MinEPCConfidence && rec.CalculatedEPC > 0 {
		epc = rec.CalculatedEPC
	}
	return epc * e.cfg.TrustFor(o.Provider)
}

// prefetchEPC looks up learned records for each distinct provider in the tie
// set concurrently. Failures and timeouts leave the provider out of the map.
func (e *Engine) prefetchEPC(ctx context.Context, ties []model.Offer, vertical model.Vertical) map[string]*model.EPCRecord {
	learned := make(map[string]*model.EPCRecord)
	if e.source == nil {
		return learned
	}

	seen := make(map[string]bool)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, o := range ties {
		if seen[o.Provider] {
			continue
		}
		seen[o.Provider] = true
		provider := o.Provider

		g.Go(func() error {
			rec, err := resilience.WithTimeout(gctx, e.cfg.EPCLookupTimeout, func(ctx context.Context) (*model.EPCRecord, error) {
				return e.source.Lookup(ctx, provider, vertical)
			})
			if err != nil {
				zap.L().Debug("decision: epc lookup failed, using offer epc",
					zap.String("provider", provider),
					zap.String("vertical", string(vertical)),
					zap.Error(err),
				)
				return nil
			}
			if rec != nil {
				mu.Lock()
				learned[provider] = rec
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return learned
}
