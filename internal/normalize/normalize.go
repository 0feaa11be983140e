// Package normalize converts loosely typed provider payloads into canonical
// offers.
package normalize

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/sells-group/travelsearch/internal/model"
)

const (
	// DefaultCurrency is used when a payload has no valid ISO 4217 code.
	DefaultCurrency = "USD"

	placeholderImageURL = "https://picsum.photos/seed/%s/640/420"
	maxRating           = 5.0
)

var verticalLabels = map[model.Vertical]string{
	model.VerticalFlights:    "Flight",
	model.VerticalStays:      "Stay",
	model.VerticalCars:       "Car rental",
	model.VerticalPackages:   "Package",
	model.VerticalCruises:    "Cruise",
	model.VerticalActivities: "Activity",
}

// Normalize maps one raw payload to an Offer. It never fails; fields that
// cannot be resolved fall back to vertical-appropriate defaults. Normalizing
// the same raw offer twice yields identical results.
func Normalize(raw model.RawOffer, provider string, vertical model.Vertical, defaultEPC float64) model.Offer {
	m := MappingFor(provider)

	o := model.Offer{
		Provider: provider,
		Vertical: vertical,
	}

	o.ID, _ = resolve(m, raw, FieldID, cast.ToStringE)
	if o.ID == "" {
		o.ID = derivedID(provider, raw)
	}

	o.Title, _ = resolve(m, raw, FieldTitle, cast.ToStringE)
	if o.Title == "" {
		o.Title = defaultTitle(provider, vertical)
	}
	o.DeepLink, _ = resolve(m, raw, FieldDeepLink, cast.ToStringE)
	o.ImageURL, _ = resolve(m, raw, FieldImageURL, cast.ToStringE)
	if o.ImageURL == "" {
		o.ImageURL = PlaceholderImage(o.ID)
	}

	taxes, _ := resolve(m, raw, FieldTaxesFees, toFloat)
	o.TaxesFees = math.Max(0, taxes)

	base, hasBase := resolve(m, raw, FieldBasePrice, toFloat)
	if !hasBase {
		if total, ok := resolve(m, raw, FieldTotalPrice, toFloat); ok {
			base = total - o.TaxesFees
		}
	}
	o.BasePrice = base
	o.TotalPrice = o.BasePrice + o.TaxesFees

	code, _ := resolve(m, raw, FieldCurrency, cast.ToStringE)
	o.Currency = currencyCode(code)

	rating, _ := resolve(m, raw, FieldRating, toFloat)
	if m.RatingScale > 0 && m.RatingScale != maxRating {
		rating = rating * maxRating / m.RatingScale
	}
	o.Rating = clamp(rating, 0, maxRating)

	reviews, _ := resolve(m, raw, FieldReviewCount, cast.ToIntE)
	o.ReviewCount = max(0, reviews)

	if refundable, ok := resolve(m, raw, FieldRefundable, cast.ToBoolE); ok {
		o.Refundable = model.BoolPtr(refundable)
	}

	epc, ok := resolve(m, raw, FieldEPC, toFloat)
	if !ok {
		epc = defaultEPC
	}
	o.EPC = clamp(epc, 0, 1)

	attachDetails(&o, m, raw)
	return o
}

// NormalizeOffers normalizes a provider batch and drops offers whose base or
// total price is not strictly positive.
func NormalizeOffers(raws []model.RawOffer, provider string, vertical model.Vertical, defaultEPC float64) []model.Offer {
	out := make([]model.Offer, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		o := Normalize(raw, provider, vertical, defaultEPC)
		if o.BasePrice <= 0 || o.TotalPrice <= 0 {
			dropped++
			continue
		}
		out = append(out, o)
	}
	if dropped > 0 {
		zap.L().Debug("normalize: dropped offers without a positive price",
			zap.String("provider", provider),
			zap.String("vertical", string(vertical)),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(out)),
		)
	}
	return out
}

// PlaceholderImage returns a deterministic stock image URL seeded by id.
func PlaceholderImage(id string) string {
	return fmt.Sprintf(placeholderImageURL, url.PathEscape(id))
}

// derivedID hashes the raw payload so an id-less offer gets the same id on
// every normalization. encoding/json sorts map keys.
func derivedID(provider string, raw model.RawOffer) string {
	data, err := json.Marshal(raw)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", map[string]any(raw)))
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%s-%x", provider, h[:6])
}

func defaultTitle(provider string, vertical model.Vertical) string {
	label, ok := verticalLabels[vertical]
	if !ok {
		label = "Offer"
	}
	return fmt.Sprintf("%s from %s", label, provider)
}

func currencyCode(code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return DefaultCurrency
	}
	return unit.String()
}

// toFloat coerces v to a finite float64.
func toFloat(v any) (float64, error) {
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("normalize: non-finite number %v", v)
	}
	return f, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}
