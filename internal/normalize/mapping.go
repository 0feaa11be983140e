package normalize

import (
	"slices"
	"strconv"
	"strings"

	"github.com/sells-group/travelsearch/internal/model"
)

// Field is a canonical offer attribute resolved from a raw payload.
type Field string

const (
	FieldID          Field = "id"
	FieldTitle       Field = "title"
	FieldDeepLink    Field = "deep_link"
	FieldImageURL    Field = "image_url"
	FieldBasePrice   Field = "base_price"
	FieldTotalPrice  Field = "total_price"
	FieldTaxesFees   Field = "taxes_fees"
	FieldCurrency    Field = "currency"
	FieldRating      Field = "rating"
	FieldReviewCount Field = "review_count"
	FieldRefundable  Field = "refundable"
	FieldEPC         Field = "epc"

	FieldAirline         Field = "airline"
	FieldStops           Field = "stops"
	FieldFlightDuration  Field = "flight_duration"
	FieldLayover         Field = "layover"
	FieldBaggageIncluded Field = "baggage_included"
	FieldCarryOnIncluded Field = "carryon_included"
	FieldDepartAt        Field = "depart_at"
	FieldArriveAt        Field = "arrive_at"

	FieldStarRating   Field = "star_rating"
	FieldPropertyType Field = "property_type"
	FieldNights       Field = "nights"

	FieldCarClass     Field = "car_class"
	FieldSeats        Field = "seats"
	FieldTransmission Field = "transmission"

	FieldActivityDuration Field = "activity_duration"
	FieldCategory         Field = "category"
	FieldMeetingPoint     Field = "meeting_point"

	FieldCruiseLine    Field = "cruise_line"
	FieldShip          Field = "ship"
	FieldDeparturePort Field = "departure_port"
)

// defaultAliases lists, per canonical field, the raw keys probed in order.
// Dotted keys address nested objects; numeric segments index arrays.
var defaultAliases = map[Field][]string{
	FieldID:          {"id", "offer_id", "offerId", "product_code", "productCode", "hotel_id", "booking_token", "uuid"},
	FieldTitle:       {"title", "name", "product_name", "hotel_name", "vehicle.name", "summary"},
	FieldDeepLink:    {"deep_link", "deeplink", "deepLink", "booking_url", "url", "link"},
	FieldImageURL:    {"image_url", "imageUrl", "image", "thumbnail", "photo", "images.0"},
	FieldBasePrice:   {"base_price", "basePrice", "price.base", "price.amount", "rate.amount", "price", "fare", "amount"},
	FieldTotalPrice:  {"total_price", "totalPrice", "price.total", "rate.total", "total"},
	FieldTaxesFees:   {"taxes_fees", "taxesFees", "price.taxes", "rate.taxes", "taxes", "fees"},
	FieldCurrency:    {"currency", "currency_code", "currencyCode", "price.currency", "rate.currency"},
	FieldRating:      {"rating", "review_rating", "reviews.rating", "score"},
	FieldReviewCount: {"review_count", "reviewCount", "reviews.count", "num_reviews", "reviews"},
	FieldRefundable:  {"refundable", "is_refundable", "free_cancellation", "cancellation.free"},
	FieldEPC:         {"epc", "earnings_per_click"},

	FieldAirline:         {"airline", "carrier", "airline_name", "marketing_carrier"},
	FieldStops:           {"stops", "stop_count", "number_of_stops"},
	FieldFlightDuration:  {"duration_minutes", "flight_duration", "duration"},
	FieldLayover:         {"layover_minutes", "max_layover_minutes", "layover"},
	FieldBaggageIncluded: {"baggage_included", "checked_bag_included", "bags_included", "baggage.checked"},
	FieldCarryOnIncluded: {"carryon_included", "carry_on_included", "cabin_bag_included", "baggage.carry_on"},
	FieldDepartAt:        {"depart_at", "departure_time", "departure", "local_departure"},
	FieldArriveAt:        {"arrive_at", "arrival_time", "arrival", "local_arrival"},

	FieldStarRating:   {"star_rating", "stars", "hotel_class"},
	FieldPropertyType: {"property_type", "accommodation_type", "type"},
	FieldNights:       {"nights", "length_of_stay", "duration_nights"},

	FieldCarClass:     {"car_class", "vehicle_class", "vehicle.class", "category"},
	FieldSeats:        {"seats", "passengers", "vehicle.seats"},
	FieldTransmission: {"transmission", "vehicle.transmission"},

	FieldActivityDuration: {"duration_minutes", "duration"},
	FieldCategory:         {"category", "activity_type"},
	FieldMeetingPoint:     {"meeting_point", "meetingPoint", "location"},

	FieldCruiseLine:    {"cruise_line", "cruiseLine", "line", "operator"},
	FieldShip:          {"ship", "ship_name", "shipName"},
	FieldDeparturePort: {"departure_port", "embarkation_port", "port"},
}

// Mapping holds provider-specific overrides. Aliases are probed before the
// defaults for the same field.
type Mapping struct {
	Aliases map[Field][]string
	// RatingScale is the maximum of the provider's rating scale. Ratings are
	// rescaled to 0-5. Zero means the provider already reports 0-5.
	RatingScale float64
}

// providerMappings captures the known quirks of each affiliate payload.
var providerMappings = map[string]Mapping{
	"booking": {
		Aliases: map[Field][]string{
			FieldRating:     {"review_score"},
			FieldBasePrice:  {"min_total_price_excl_taxes"},
			FieldTotalPrice: {"min_total_price"},
			FieldDeepLink:   {"url"},
		},
		RatingScale: 10,
	},
	"expedia": {
		Aliases: map[Field][]string{
			FieldID:         {"property_id"},
			FieldRating:     {"guest_rating"},
			FieldBasePrice:  {"rate.base_rate"},
			FieldTotalPrice: {"rate.inclusive"},
		},
	},
	"kiwi": {
		Aliases: map[Field][]string{
			FieldID:         {"booking_token"},
			FieldTotalPrice: {"price"},
			FieldBasePrice:  {"fare.base"},
			FieldAirline:    {"airlines.0"},
		},
	},
	"skyscanner": {
		Aliases: map[Field][]string{
			FieldTotalPrice: {"pricing_options.0.price.amount"},
			FieldDeepLink:   {"pricing_options.0.items.0.deep_link"},
		},
	},
	"viator": {
		Aliases: map[Field][]string{
			FieldID:          {"productCode"},
			FieldBasePrice:   {"pricing.summary.fromPriceBeforeDiscount"},
			FieldTotalPrice:  {"pricing.summary.fromPrice"},
			FieldRating:      {"reviews.combinedAverageRating"},
			FieldReviewCount: {"reviews.totalReviews"},
		},
	},
	"getyourguide": {
		Aliases: map[Field][]string{
			FieldID:     {"tour_id"},
			FieldRating: {"overall_rating"},
		},
	},
	"discovercars": {
		Aliases: map[Field][]string{
			FieldRating: {"supplier_rating"},
		},
		RatingScale: 10,
	},
}

// MappingFor returns the overrides registered for provider.
func MappingFor(provider string) Mapping {
	return providerMappings[strings.ToLower(provider)]
}

// aliases returns the provider's own aliases for f followed by the defaults.
// A default alias the provider has claimed for another field is skipped.
func (m Mapping) aliases(f Field) []string {
	own := m.Aliases[f]
	if len(m.Aliases) == 0 {
		return defaultAliases[f]
	}
	out := make([]string, 0, len(own)+len(defaultAliases[f]))
	out = append(out, own...)
	for _, alias := range defaultAliases[f] {
		if m.claimedElsewhere(alias, f) {
			continue
		}
		out = append(out, alias)
	}
	return out
}

func (m Mapping) claimedElsewhere(alias string, f Field) bool {
	for field, names := range m.Aliases {
		if field != f && slices.Contains(names, alias) {
			return true
		}
	}
	return false
}

// resolve returns the first present, non-empty value for f that convert
// accepts. Aliases whose value does not convert are skipped.
func resolve[T any](m Mapping, raw model.RawOffer, f Field, convert func(any) (T, error)) (T, bool) {
	var zero T
	for _, alias := range m.aliases(f) {
		v, ok := lookup(raw, alias)
		if !ok {
			continue
		}
		out, err := convert(v)
		if err != nil {
			continue
		}
		return out, true
	}
	return zero, false
}

// lookup walks a dotted path through nested maps and slices.
func lookup(raw model.RawOffer, path string) (any, bool) {
	var cur any = map[string]any(raw)
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = next
		case model.RawOffer:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	if isEmpty(cur) {
		return nil, false
	}
	return cur, true
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}
