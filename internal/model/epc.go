package model

import (
	"math"
	"time"
)

// confidenceScale controls how quickly confidence approaches 1 as clicks
// accumulate; 100 puts the 0.5 mark at ~69 clicks.
const confidenceScale = 100.0

// EPCRecord is one learned earnings-per-click observation window for a
// provider and vertical, produced by the offline learning job.
type EPCRecord struct {
	Provider         string    `json:"provider" yaml:"provider"`
	Vertical         Vertical  `json:"vertical" yaml:"vertical"`
	PeriodStart      time.Time `json:"period_start" yaml:"period_start"`
	PeriodEnd        time.Time `json:"period_end" yaml:"period_end"`
	TotalClicks      int64     `json:"total_clicks" yaml:"total_clicks"`
	TotalConversions int64     `json:"total_conversions" yaml:"total_conversions"`
	TotalRevenue     float64   `json:"total_revenue" yaml:"total_revenue"`
	CalculatedEPC    float64   `json:"calculated_epc" yaml:"calculated_epc"`
	ConfidenceScore  float64   `json:"confidence_score" yaml:"confidence_score"`
}

// NewEPCRecord derives CalculatedEPC and ConfidenceScore from raw period
// totals.
func NewEPCRecord(provider string, vertical Vertical, start, end time.Time, clicks, conversions int64, revenue float64) EPCRecord {
	rec := EPCRecord{
		Provider:         provider,
		Vertical:         vertical,
		PeriodStart:      start.UTC(),
		PeriodEnd:        end.UTC(),
		TotalClicks:      clicks,
		TotalConversions: conversions,
		TotalRevenue:     revenue,
		ConfidenceScore:  Confidence(clicks),
	}
	if clicks > 0 {
		rec.CalculatedEPC = revenue / float64(clicks)
	}
	return rec
}

// Confidence maps a click sample size to [0,1], monotonically increasing.
func Confidence(clicks int64) float64 {
	if clicks <= 0 {
		return 0
	}
	c := 1 - math.Exp(-float64(clicks)/confidenceScale)
	return math.Min(1, math.Max(0, c))
}
