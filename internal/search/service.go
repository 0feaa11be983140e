// Package search runs one end-to-end search: provider fan-out followed by
// ranking of the merged offers.
package search

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/travelsearch/internal/aggregate"
	"github.com/sells-group/travelsearch/internal/decision"
	"github.com/sells-group/travelsearch/internal/model"
)

// Aggregator fans a search out to providers.
type Aggregator interface {
	Search(ctx context.Context, vertical model.Vertical, params model.SearchParams, opts aggregate.SearchOptions) []model.ProviderResponse
}

// Ranker tags the cheapest and best value offers.
type Ranker interface {
	Decide(ctx context.Context, offers []model.Offer, vertical model.Vertical) decision.Result
}

// Result is the outcome of Service.Search.
type Result struct {
	RequestID string                   `json:"request_id"`
	Vertical  model.Vertical           `json:"vertical"`
	Offers    []model.Offer            `json:"offers"`
	Responses []model.ProviderResponse `json:"responses"`
	Decision  decision.Result          `json:"decision"`
}

// Service combines an aggregator and a ranker.
type Service struct {
	agg    Aggregator
	ranker Ranker
	now    func() time.Time
}

// NewService creates a Service.
func NewService(agg Aggregator, ranker Ranker) *Service {
	return &Service{agg: agg, ranker: ranker, now: time.Now}
}

// Search never fails on provider errors; those are reported per response.
func (s *Service) Search(ctx context.Context, vertical model.Vertical, params model.SearchParams, opts aggregate.SearchOptions) Result {
	start := s.now()
	reqID := uuid.New().String()

	responses := s.agg.Search(ctx, vertical, params, opts)

	var pool []model.Offer
	failed := 0
	for _, r := range responses {
		pool = append(pool, r.Offers...)
		if r.Error != "" {
			failed++
		}
	}
	pool = aggregate.Dedupe(pool)

	dec := s.ranker.Decide(ctx, pool, vertical)

	zap.L().Info("search: completed",
		zap.String("request_id", reqID),
		zap.String("vertical", string(vertical)),
		zap.Int("providers", len(responses)),
		zap.Int("failed_providers", failed),
		zap.Int("offers", len(dec.Offers)),
		zap.Int("tie_set", dec.TieSetSize),
		zap.Bool("guardrail", dec.GuardrailApplied),
		zap.Duration("duration", s.now().Sub(start)),
	)

	return Result{
		RequestID: reqID,
		Vertical:  vertical,
		Offers:    dec.Offers,
		Responses: responses,
		Decision:  dec,
	}
}
