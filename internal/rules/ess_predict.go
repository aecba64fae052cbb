package rules

import (
	"github.com/shopspring/decimal"

	"github.com/smartenergy/aidaily/internal/domain"
)

// DefaultESSCapacity is the charge ceiling used when the solar forecast leaves
// more demand uncovered than the battery can hold
var DefaultESSCapacity = decimal.NewFromInt(3120)

// CapForecast bounds the predicted charge. When solar plus capacity still falls
// short of forecast demand the battery charges to capacity; otherwise it covers
// the remaining gap, never below zero.
func CapForecast(solarSum, meterForecast, capacity decimal.Decimal) decimal.Decimal {
	if solarSum.Add(capacity).LessThan(meterForecast) {
		return capacity
	}
	return decimal.Max(decimal.Zero, meterForecast.Sub(solarSum))
}

// ESSForecastInput is the day's diagnostic view of both feeds
type ESSForecastInput struct {
	SolarRows        int
	MeterRows        int
	SolarForecastSum decimal.Decimal
	MeterForecast    decimal.Decimal
	// false when every matched quantity of the feed is NULL
	SolarKnown bool
	MeterKnown bool
}

// Matched reports whether both feeds have rows for the day
func (in ESSForecastInput) Matched() bool {
	return in.SolarRows > 0 && in.MeterRows > 0
}

// Forecastable reports whether both feeds matched and carry at least one quantity
func (in ESSForecastInput) Forecastable() bool {
	return in.Matched() && in.SolarKnown && in.MeterKnown
}

// SourceCount is the number of source rows read for the day
func (in ESSForecastInput) SourceCount() int {
	return in.SolarRows + in.MeterRows
}

// ESSForecastInputs sums the solar forecast and takes the largest meter
// forecast inside the day. NULL quantities are skipped; a feed with no
// quantity at all is marked unknown.
func ESSForecastInputs(day domain.Day, solar []domain.SolarReading, meter []domain.MeterReading) ESSForecastInput {
	w := day.Window()
	var in ESSForecastInput
	var solarVals, meterVals []decimal.NullDecimal
	for _, r := range solar {
		if !w.Contains(r.Timestamp) {
			continue
		}
		in.SolarRows++
		solarVals = append(solarVals, r.ForecastQuantity)
	}
	for _, r := range meter {
		if !w.Contains(r.UseTime) {
			continue
		}
		in.MeterRows++
		meterVals = append(meterVals, r.ForecastQuantity)
	}
	solarSum, meterMax := Sum(solarVals), Max(meterVals)
	in.SolarForecastSum, in.SolarKnown = orZero(solarSum), solarSum.Valid
	in.MeterForecast, in.MeterKnown = orZero(meterMax), meterMax.Valid
	return in
}

// ESSForecast computes the day's predicted charge. The bool is false when
// either feed has no rows or no quantities for the day.
func ESSForecast(day domain.Day, in ESSForecastInput, capacity decimal.Decimal) (domain.ESSForecastRow, bool) {
	if !in.Forecastable() {
		return domain.ESSForecastRow{Day: day}, false
	}
	return domain.ESSForecastRow{
		Day:              day,
		SolarForecastSum: in.SolarForecastSum,
		MeterForecast:    in.MeterForecast,
		ForecastQuantity: CapForecast(in.SolarForecastSum, in.MeterForecast, capacity),
	}, true
}
