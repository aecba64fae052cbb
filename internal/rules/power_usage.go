package rules

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartenergy/aidaily/internal/domain"
)

// PowerUsage maps each smart-meter timestamp of the day to one usage row.
// Duplicate readings for the same timestamp collapse with MAX so the write set
// does not depend on source row order. Output is ordered by timestamp.
func PowerUsage(day domain.Day, rows []domain.MeterReading) ([]domain.PowerUsageRow, int) {
	w := day.Window()
	type bucket struct {
		usage, forecast []decimal.NullDecimal
	}
	buckets := make(map[time.Time]*bucket)
	matched := 0
	for _, r := range rows {
		if !w.Contains(r.UseTime) {
			continue
		}
		matched++
		key := r.UseTime.UTC()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.usage = append(b.usage, r.UsageTotal)
		b.forecast = append(b.forecast, r.ForecastQuantity)
	}

	out := make([]domain.PowerUsageRow, 0, len(buckets))
	for ts, b := range buckets {
		out = append(out, domain.PowerUsageRow{
			Timestamp:   ts.In(day.Start().Location()),
			PwrUsage:    Max(b.usage),
			PwrForecast: Max(b.forecast),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, matched
}
