package rules

import (
	"github.com/shopspring/decimal"

	"github.com/smartenergy/aidaily/internal/domain"
)

// GenerationPart sums the day's solar forecast and generation into the
// generation feed's columns of the ESS charge row
func GenerationPart(day domain.Day, rows []domain.SolarReading) (domain.ESSChargePart, int) {
	w := day.Window()
	var forecast, today []decimal.NullDecimal
	for _, r := range rows {
		if !w.Contains(r.Timestamp) {
			continue
		}
		forecast = append(forecast, r.ForecastQuantity)
		today = append(today, r.TodayGeneration)
	}
	part := domain.ESSChargePart{Feed: domain.FeedGeneration, Day: day}
	if len(forecast) == 0 {
		return part, 0
	}
	part.Values = []domain.FieldValue{
		{Field: domain.FieldPrePwrGeneration, Value: Sum(forecast)},
		{Field: domain.FieldTodayGeneration, Value: Sum(today)},
	}
	return part, len(forecast)
}

// UsagePart sums the day's metered usage and usage forecast into the usage
// feed's columns of the ESS charge row
func UsagePart(day domain.Day, rows []domain.MeterReading) (domain.ESSChargePart, int) {
	w := day.Window()
	var usage, forecast []decimal.NullDecimal
	for _, r := range rows {
		if !w.Contains(r.UseTime) {
			continue
		}
		usage = append(usage, r.UsageTotal)
		forecast = append(forecast, r.ForecastQuantity)
	}
	part := domain.ESSChargePart{Feed: domain.FeedUsage, Day: day}
	if len(usage) == 0 {
		return part, 0
	}
	part.Values = []domain.FieldValue{
		{Field: domain.FieldPwrUsage, Value: Sum(usage)},
		{Field: domain.FieldPwrForecast, Value: Sum(forecast)},
	}
	return part, len(usage)
}

// BatteryPart maps the day's battery stat into the battery feed's columns.
// The table holds one row per day, so the first non-null sanitized value wins.
func BatteryPart(day domain.Day, rows []domain.BatteryStat) (domain.ESSChargePart, int) {
	var preCharge, charge []decimal.NullDecimal
	for _, r := range rows {
		if r.Day.Compact() != day.Compact() {
			continue
		}
		preCharge = append(preCharge, SanitizeNullString(r.ForecastQuantity))
		charge = append(charge, SanitizeNullString(r.BatterySOC))
	}
	part := domain.ESSChargePart{Feed: domain.FeedBattery, Day: day}
	if len(preCharge) == 0 {
		return part, 0
	}
	part.Values = []domain.FieldValue{
		{Field: domain.FieldPreCharge, Value: FirstNonNull(preCharge)},
		{Field: domain.FieldChargeAmount, Value: FirstNonNull(charge)},
	}
	return part, len(preCharge)
}
