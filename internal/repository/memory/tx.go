package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartenergy/aidaily/internal/domain"
)

// tx runs with the store lock held
type tx struct {
	s *Store
}

func (t *tx) SolarWeather(ctx context.Context, w domain.Window) ([]domain.SolarWeatherReading, error) {
	if err := t.s.faults[OpSolarWeather]; err != nil {
		return nil, queryErr(OpSolarWeather, err)
	}
	var out []domain.SolarWeatherReading
	for _, sr := range t.s.solar {
		if !w.Contains(sr.Timestamp) {
			continue
		}
		for _, wr := range t.s.weather {
			if !wr.Timestamp.Equal(sr.Timestamp) {
				continue
			}
			out = append(out, domain.SolarWeatherReading{
				Timestamp:        sr.Timestamp,
				ForecastQuantity: sr.ForecastQuantity,
				TodayGeneration:  sr.TodayGeneration,
				AccumGeneration:  sr.AccumGeneration,
				Tmn:              wr.Tmn,
				Tmx:              wr.Tmx,
				Ics:              wr.Ics,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (t *tx) Solar(ctx context.Context, w domain.Window) ([]domain.SolarReading, error) {
	if err := t.s.faults[OpSolar]; err != nil {
		return nil, queryErr(OpSolar, err)
	}
	var out []domain.SolarReading
	for _, r := range t.s.solar {
		if w.Contains(r.Timestamp) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (t *tx) Meter(ctx context.Context, w domain.Window) ([]domain.MeterReading, error) {
	if err := t.s.faults[OpMeter]; err != nil {
		return nil, queryErr(OpMeter, err)
	}
	var out []domain.MeterReading
	for _, r := range t.s.meter {
		if w.Contains(r.UseTime) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UseTime.Before(out[j].UseTime) })
	return out, nil
}

func (t *tx) Battery(ctx context.Context, day domain.Day) ([]domain.BatteryStat, error) {
	if err := t.s.faults[OpBattery]; err != nil {
		return nil, queryErr(OpBattery, err)
	}
	var out []domain.BatteryStat
	for _, r := range t.s.battery {
		if r.Day.Compact() == day.Compact() {
			out = append(out, r)
		}
	}
	// NULL creation times sort last
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		if !a.Valid || !b.Valid {
			return a.Valid && !b.Valid
		}
		return a.Time.Before(b.Time)
	})
	return out, nil
}

// Upsert writes only the given columns and reports unchanged when every value already matches
func (t *tx) Upsert(ctx context.Context, target domain.Target, key time.Time, values []domain.FieldValue) (domain.Change, error) {
	if err := t.s.faults[OpUpsert]; err != nil {
		return "", queryErr(OpUpsert, err)
	}
	if err := t.s.targetFaults[target]; err != nil {
		return "", queryErr(OpUpsert, err)
	}
	if len(values) == 0 {
		return domain.ChangeUnchanged, nil
	}
	if target == domain.TargetESSForecast {
		return t.upsertForecast(domain.DayOf(key.In(t.s.loc)), values)
	}

	allowed, ok := targetFields(target)
	if !ok {
		return "", fmt.Errorf("memory: unknown target %q: %w", target, domain.ErrStoreQuery)
	}
	for _, v := range values {
		if !hasField(allowed, v.Field) {
			return "", fmt.Errorf("memory: %s has no column for %q: %w", target, v.Field, domain.ErrStoreQuery)
		}
	}

	rows := t.s.targets[target]
	if rows == nil {
		rows = make(map[int64]targetRow)
		t.s.targets[target] = rows
	}

	k := key.UnixNano()
	row, exists := rows[k]
	if !exists {
		row = targetRow{key: key, values: make(map[domain.Field]decimal.NullDecimal, len(values))}
		for _, v := range values {
			row.values[v.Field] = v.Value
		}
		rows[k] = row
		return domain.ChangeCreated, nil
	}

	changed := false
	for _, v := range values {
		if !sameValue(row.values[v.Field], v.Value) {
			row.values[v.Field] = v.Value
			changed = true
		}
	}
	if !changed {
		return domain.ChangeUnchanged, nil
	}
	return domain.ChangeUpdated, nil
}

// upsertForecast writes the forecast back into the battery stat row filed under the day
func (t *tx) upsertForecast(day domain.Day, values []domain.FieldValue) (domain.Change, error) {
	var text sql.NullString
	for _, v := range values {
		if v.Field != domain.FieldForecastQuantity {
			return "", fmt.Errorf("memory: %s has no column for %q: %w", domain.TargetESSForecast, v.Field, domain.ErrStoreQuery)
		}
		if v.Value.Valid {
			text = sql.NullString{String: v.Value.Decimal.StringFixed(2), Valid: true}
		} else {
			text = sql.NullString{}
		}
	}

	for i, b := range t.s.battery {
		if b.Day.Compact() != day.Compact() {
			continue
		}
		if b.ForecastQuantity == text {
			return domain.ChangeUnchanged, nil
		}
		t.s.battery[i].ForecastQuantity = text
		return domain.ChangeUpdated, nil
	}
	t.s.battery = append(t.s.battery, domain.BatteryStat{Day: day, ForecastQuantity: text})
	return domain.ChangeCreated, nil
}

func hasField(fields []domain.Field, f domain.Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

func sameValue(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
