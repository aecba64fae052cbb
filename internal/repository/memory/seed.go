package memory

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartenergy/aidaily/internal/domain"
)

// SeedDemo fills the store with one day of hourly readings so demo mode has
// something to aggregate
func (s *Store) SeedDemo(day domain.Day) {
	var (
		solar   []domain.SolarReading
		weather []domain.WeatherReading
		meter   []domain.MeterReading
		accum   = decimal.NewFromInt(125000)
		today   = decimal.Zero
	)
	for h := 0; h < 24; h++ {
		ts := day.Start().Add(time.Duration(h) * time.Hour)

		// daylight generation between 06:00 and 18:00
		gen := decimal.Zero
		if h >= 6 && h <= 18 {
			gen = decimal.NewFromInt(int64(12 - abs(12-h))).Mul(decimal.NewFromInt(35))
		}
		today = today.Add(gen)
		accum = accum.Add(gen)

		solar = append(solar, domain.SolarReading{
			Timestamp:        ts,
			ForecastQuantity: decimal.NewNullDecimal(gen.Mul(decimal.RequireFromString("0.95")).Round(2)),
			TodayGeneration:  decimal.NewNullDecimal(today),
			AccumGeneration:  decimal.NewNullDecimal(accum),
		})
		weather = append(weather, domain.WeatherReading{
			Timestamp: ts,
			Tmn:       decimal.NewNullDecimal(decimal.NewFromFloat(-5.0 + float64(h)/4).Round(1)),
			Tmx:       decimal.NewNullDecimal(decimal.NewFromFloat(2.0 + float64(h)/3).Round(1)),
			Ics:       decimal.NewNullDecimal(gen.Div(decimal.NewFromInt(100)).Round(4)),
		})
		meter = append(meter, domain.MeterReading{
			UseTime:          ts,
			UsageTotal:       decimal.NewNullDecimal(decimal.NewFromInt(int64(180 + 10*h))),
			ForecastQuantity: decimal.NewNullDecimal(decimal.NewFromInt(int64(4200 + 25*h))),
		})
	}

	s.AddSolar(solar...)
	s.AddWeather(weather...)
	s.AddMeter(meter...)
	s.AddBattery(domain.BatteryStat{
		Day:        day,
		CreatedAt:  sql.NullTime{Time: day.Start().Add(23 * time.Hour), Valid: true},
		BatterySOC: sql.NullString{String: "87.5", Valid: true},
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
