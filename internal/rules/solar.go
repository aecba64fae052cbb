package rules

import (
	"github.com/shopspring/decimal"

	"github.com/smartenergy/aidaily/internal/domain"
)

// IcsPlaces is the rounding scale of the averaged insolation
const IcsPlaces = 4

// SolarPower collapses the joined solar/weather rows of a day into one row:
// generation figures are summed, tmx is the maximum, tmn the smallest positive
// reading and ics the mean. Rows outside the day are ignored. The second return
// value is the number of rows that matched.
func SolarPower(day domain.Day, rows []domain.SolarWeatherReading) (domain.SolarPowerRow, int) {
	w := day.Window()
	var (
		tmn, tmx, ics          []decimal.NullDecimal
		forecast, today, accum []decimal.NullDecimal
		matched                int
	)
	for _, r := range rows {
		if !w.Contains(r.Timestamp) {
			continue
		}
		matched++
		tmn = append(tmn, r.Tmn)
		tmx = append(tmx, r.Tmx)
		ics = append(ics, r.Ics)
		forecast = append(forecast, r.ForecastQuantity)
		today = append(today, r.TodayGeneration)
		accum = append(accum, r.AccumGeneration)
	}
	if matched == 0 {
		return domain.SolarPowerRow{Day: day}, 0
	}
	return domain.SolarPowerRow{
		Day:              day,
		Tmn:              MinPositive(tmn),
		Tmx:              Max(tmx),
		Ics:              Avg(ics, IcsPlaces),
		PrePwrGeneration: Sum(forecast),
		TodayGeneration:  Sum(today),
		AccumGeneration:  Sum(accum),
	}, matched
}
