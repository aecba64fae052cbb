// Package memory is an in-process domain.Store for demo mode and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartenergy/aidaily/internal/domain"
)

// Op names a store operation that can be made to fail
type Op string

const (
	OpBegin        Op = "begin"
	OpSolarWeather Op = "solar_weather"
	OpSolar        Op = "solar"
	OpMeter        Op = "meter"
	OpBattery      Op = "battery"
	OpUpsert       Op = "upsert"
	OpRecent       Op = "recent"
	OpHealth       Op = "health"
)

// keyColumn is the read-back name of the timestamp key
const keyColumn = "ymdhms"

type targetRow struct {
	key    time.Time
	values map[domain.Field]decimal.NullDecimal
}

// Store keeps source and target tables in memory. Units of work are
// serialized and roll back on error.
type Store struct {
	mu  sync.Mutex
	loc *time.Location

	solar   []domain.SolarReading
	weather []domain.WeatherReading
	meter   []domain.MeterReading
	battery []domain.BatteryStat

	targets map[domain.Target]map[int64]targetRow

	faults       map[Op]error
	targetFaults map[domain.Target]error
}

// New creates an empty store. Battery V_TIME keys are resolved in loc.
func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		loc:          loc,
		targets:      make(map[domain.Target]map[int64]targetRow),
		faults:       make(map[Op]error),
		targetFaults: make(map[domain.Target]error),
	}
}

// AddSolar seeds solar generation rows
func (s *Store) AddSolar(rows ...domain.SolarReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.solar = append(s.solar, rows...)
}

// AddWeather seeds weather rows
func (s *Store) AddWeather(rows ...domain.WeatherReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weather = append(s.weather, rows...)
}

// AddMeter seeds smart-meter rows. Duplicate use times are kept.
func (s *Store) AddMeter(rows ...domain.MeterReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meter = append(s.meter, rows...)
}

// AddBattery seeds battery stat rows
func (s *Store) AddBattery(rows ...domain.BatteryStat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battery = append(s.battery, rows...)
}

// Fail makes every later call of op return err. A nil err clears the fault.
func (s *Store) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// FailTarget makes upserts into one target return err. A nil err clears the fault.
func (s *Store) FailTarget(target domain.Target, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.targetFaults, target)
		return
	}
	s.targetFaults[target] = err
}

// Row returns a copy of the target row stored under key
func (s *Store) Row(target domain.Target, key time.Time) (map[domain.Field]decimal.NullDecimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if target == domain.TargetESSForecast {
		day := domain.DayOf(key.In(s.loc))
		for _, b := range s.battery {
			if b.Day.Compact() == day.Compact() {
				return map[domain.Field]decimal.NullDecimal{
					domain.FieldForecastQuantity: nullFromText(b.ForecastQuantity.String, b.ForecastQuantity.Valid),
				}, true
			}
		}
		return nil, false
	}
	r, ok := s.targets[target][key.UnixNano()]
	if !ok {
		return nil, false
	}
	out := make(map[domain.Field]decimal.NullDecimal, len(r.values))
	for f, v := range r.values {
		out[f] = v
	}
	return out, true
}

// Rows counts the rows stored for a target
func (s *Store) Rows(target domain.Target) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if target == domain.TargetESSForecast {
		n := 0
		for _, b := range s.battery {
			if b.ForecastQuantity.Valid {
				n++
			}
		}
		return n
	}
	return len(s.targets[target])
}

// Within runs fn under the store lock and restores the target tables unless fn succeeds
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory: failed to begin: %w: %w", domain.ErrStoreConnection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.faults[OpBegin]; err != nil {
		return fmt.Errorf("memory: failed to begin: %w: %w", domain.ErrStoreConnection, err)
	}

	targets := s.snapshotTargets()
	battery := append([]domain.BatteryStat(nil), s.battery...)
	committed := false
	defer func() {
		if !committed {
			s.targets = targets
			s.battery = battery
		}
	}()

	if err := fn(ctx, &tx{s: s}); err != nil {
		return err
	}
	committed = true
	return nil
}

// Recent returns up to limit target rows, newest key first
func (s *Store) Recent(ctx context.Context, target domain.Target, limit int) (domain.RecordSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.faults[OpRecent]; err != nil {
		return domain.RecordSet{}, queryErr(OpRecent, err)
	}

	if target == domain.TargetESSForecast {
		return s.recentForecast(limit), nil
	}

	fields, ok := targetFields(target)
	if !ok {
		return domain.RecordSet{}, fmt.Errorf("memory: unknown target %q: %w", target, domain.ErrStoreQuery)
	}
	set := domain.RecordSet{Columns: []string{keyColumn}, Rows: []domain.Record{}}
	for _, f := range fields {
		set.Columns = append(set.Columns, string(f))
	}
	if limit <= 0 {
		return set, nil
	}

	rows := make([]targetRow, 0, len(s.targets[target]))
	for _, r := range s.targets[target] {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].key.After(rows[j].key) })
	if len(rows) > limit {
		rows = rows[:limit]
	}

	for _, r := range rows {
		rec := domain.Record{keyColumn: domain.FormatValue(r.key)}
		for _, f := range fields {
			rec[string(f)] = recordValue(r.values[f])
		}
		set.Rows = append(set.Rows, rec)
	}
	return set, nil
}

func (s *Store) recentForecast(limit int) domain.RecordSet {
	set := domain.RecordSet{
		Columns: []string{"v_time", string(domain.FieldForecastQuantity)},
		Rows:    []domain.Record{},
	}
	if limit <= 0 {
		return set
	}
	var rows []domain.BatteryStat
	for _, b := range s.battery {
		if b.ForecastQuantity.Valid {
			rows = append(rows, b)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Day.Compact() > rows[j].Day.Compact() })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	for _, b := range rows {
		rec := domain.Record{"v_time": b.Day.Compact()}
		rec[string(domain.FieldForecastQuantity)] = b.ForecastQuantity.String
		set.Rows = append(set.Rows, rec)
	}
	return set
}

// Health fails only when a fault is injected
func (s *Store) Health(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.faults[OpHealth]; err != nil {
		return fmt.Errorf("memory: health check failed: %w", err)
	}
	return nil
}

func (s *Store) snapshotTargets() map[domain.Target]map[int64]targetRow {
	out := make(map[domain.Target]map[int64]targetRow, len(s.targets))
	for t, rows := range s.targets {
		cp := make(map[int64]targetRow, len(rows))
		for k, r := range rows {
			vals := make(map[domain.Field]decimal.NullDecimal, len(r.values))
			for f, v := range r.values {
				vals[f] = v
			}
			cp[k] = targetRow{key: r.key, values: vals}
		}
		out[t] = cp
	}
	return out
}

// targetFields lists the read-back columns of a timestamp-keyed target
func targetFields(target domain.Target) ([]domain.Field, bool) {
	switch target {
	case domain.TargetSolarPower:
		return []domain.Field{
			domain.FieldTmn, domain.FieldTmx, domain.FieldIcs,
			domain.FieldPrePwrGeneration, domain.FieldTodayGeneration, domain.FieldAccumGeneration,
		}, true
	case domain.TargetESSCharge:
		var fields []domain.Field
		for _, f := range domain.Feeds {
			fields = append(fields, domain.FeedColumns(f)...)
		}
		return fields, true
	case domain.TargetPowerUsage:
		return []domain.Field{domain.FieldPwrUsage, domain.FieldPwrForecast}, true
	}
	return nil, false
}

func recordValue(v decimal.NullDecimal) any {
	if !v.Valid {
		return nil
	}
	return v.Decimal.String()
}

func nullFromText(s string, valid bool) decimal.NullDecimal {
	if !valid {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func queryErr(op Op, err error) error {
	return fmt.Errorf("memory: %s failed: %w: %w", op, domain.ErrStoreQuery, err)
}
