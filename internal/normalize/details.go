package normalize

import (
	"github.com/spf13/cast"

	"github.com/sells-group/travelsearch/internal/model"
)

// attachDetails fills the vertical-specific attribute block. Packages carry a
// flight and a stay block only when the payload has data for them.
func attachDetails(o *model.Offer, m Mapping, raw model.RawOffer) {
	switch o.Vertical {
	case model.VerticalFlights:
		o.Flight = flightDetails(m, raw)
	case model.VerticalStays:
		o.Stay = stayDetails(m, raw)
	case model.VerticalCars:
		o.Car = carDetails(m, raw)
	case model.VerticalActivities:
		o.Activity = activityDetails(m, raw)
	case model.VerticalCruises:
		o.Cruise = cruiseDetails(m, raw)
	case model.VerticalPackages:
		if f := flightDetails(m, raw); *f != (model.FlightDetails{}) {
			o.Flight = f
		}
		if s := stayDetails(m, raw); *s != (model.StayDetails{}) {
			o.Stay = s
		}
	}
}

func flightDetails(m Mapping, raw model.RawOffer) *model.FlightDetails {
	d := &model.FlightDetails{
		Stops:           optInt(m, raw, FieldStops),
		DurationMinutes: optInt(m, raw, FieldFlightDuration),
		LayoverMinutes:  optInt(m, raw, FieldLayover),
		BaggageIncluded: optBool(m, raw, FieldBaggageIncluded),
		CarryOnIncluded: optBool(m, raw, FieldCarryOnIncluded),
	}
	d.Airline, _ = resolve(m, raw, FieldAirline, cast.ToStringE)
	d.DepartAt, _ = resolve(m, raw, FieldDepartAt, cast.ToStringE)
	d.ArriveAt, _ = resolve(m, raw, FieldArriveAt, cast.ToStringE)
	return d
}

func stayDetails(m Mapping, raw model.RawOffer) *model.StayDetails {
	d := &model.StayDetails{
		Nights: optInt(m, raw, FieldNights),
	}
	if stars, ok := resolve(m, raw, FieldStarRating, toFloat); ok {
		stars = clamp(stars, 0, maxRating)
		d.StarRating = &stars
	}
	d.PropertyType, _ = resolve(m, raw, FieldPropertyType, cast.ToStringE)
	return d
}

func carDetails(m Mapping, raw model.RawOffer) *model.CarDetails {
	d := &model.CarDetails{
		Seats: optInt(m, raw, FieldSeats),
	}
	d.CarClass, _ = resolve(m, raw, FieldCarClass, cast.ToStringE)
	d.Transmission, _ = resolve(m, raw, FieldTransmission, cast.ToStringE)
	return d
}

func activityDetails(m Mapping, raw model.RawOffer) *model.ActivityDetails {
	d := &model.ActivityDetails{
		DurationMinutes: optInt(m, raw, FieldActivityDuration),
	}
	d.Category, _ = resolve(m, raw, FieldCategory, cast.ToStringE)
	d.MeetingPoint, _ = resolve(m, raw, FieldMeetingPoint, cast.ToStringE)
	return d
}

func cruiseDetails(m Mapping, raw model.RawOffer) *model.CruiseDetails {
	d := &model.CruiseDetails{
		Nights: optInt(m, raw, FieldNights),
	}
	d.CruiseLine, _ = resolve(m, raw, FieldCruiseLine, cast.ToStringE)
	d.Ship, _ = resolve(m, raw, FieldShip, cast.ToStringE)
	d.DeparturePort, _ = resolve(m, raw, FieldDeparturePort, cast.ToStringE)
	return d
}

func optInt(m Mapping, raw model.RawOffer, f Field) *int {
	n, ok := resolve(m, raw, f, cast.ToIntE)
	if !ok || n < 0 {
		return nil
	}
	return &n
}

func optBool(m Mapping, raw model.RawOffer, f Field) *bool {
	b, ok := resolve(m, raw, f, cast.ToBoolE)
	if !ok {
		return nil
	}
	return &b
}
