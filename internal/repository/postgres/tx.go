package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smartenergy/aidaily/internal/domain"
)

// tx implements domain.Tx on an open transaction
type tx struct {
	tx     *sql.Tx
	schema Schema
	loc    *time.Location
	logger *zap.Logger
}

// SolarWeather joins solar and weather rows on equal timestamp inside the window
func (t *tx) SolarWeather(ctx context.Context, w domain.Window) ([]domain.SolarWeatherReading, error) {
	sd, wi := t.schema.SolarDay, t.schema.WeatherInfo
	query := fmt.Sprintf(`
		SELECT sd.%s, sd.%s, sd.%s, sd.%s, wi.%s, wi.%s, wi.%s
		FROM %s AS sd
		INNER JOIN %s AS wi ON sd.%s = wi.%s
		WHERE sd.%s >= $1 AND sd.%s < $2
		ORDER BY sd.%s
	`,
		quote(sd.Timestamp), quote(sd.ForecastQuantity), quote(sd.TodayGeneration), quote(sd.AccumGeneration),
		quote(wi.Tmn), quote(wi.Tmx), quote(wi.Ics),
		quote(sd.Table), quote(wi.Table), quote(sd.Timestamp), quote(wi.Timestamp),
		quote(sd.Timestamp), quote(sd.Timestamp), quote(sd.Timestamp),
	)

	rows, err := t.tx.QueryContext(ctx, query, w.Start, w.End)
	if err != nil {
		return nil, queryErr("query solar weather", err)
	}
	defer rows.Close()

	var results []domain.SolarWeatherReading
	for rows.Next() {
		var r domain.SolarWeatherReading
		if err := rows.Scan(&r.Timestamp, &r.ForecastQuantity, &r.TodayGeneration, &r.AccumGeneration,
			&r.Tmn, &r.Tmx, &r.Ics); err != nil {
			return nil, queryErr("scan solar weather row", err)
		}
		r.Timestamp = t.inZone(r.Timestamp)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("query solar weather", err)
	}
	return results, nil
}

// Solar returns the solar generation rows inside the window
func (t *tx) Solar(ctx context.Context, w domain.Window) ([]domain.SolarReading, error) {
	sd := t.schema.SolarDay
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s
		FROM %s
		WHERE %s >= $1 AND %s < $2
		ORDER BY %s
	`,
		quote(sd.Timestamp), quote(sd.ForecastQuantity), quote(sd.TodayGeneration), quote(sd.AccumGeneration),
		quote(sd.Table), quote(sd.Timestamp), quote(sd.Timestamp), quote(sd.Timestamp),
	)

	rows, err := t.tx.QueryContext(ctx, query, w.Start, w.End)
	if err != nil {
		return nil, queryErr("query solar data", err)
	}
	defer rows.Close()

	var results []domain.SolarReading
	for rows.Next() {
		var r domain.SolarReading
		if err := rows.Scan(&r.Timestamp, &r.ForecastQuantity, &r.TodayGeneration, &r.AccumGeneration); err != nil {
			return nil, queryErr("scan solar row", err)
		}
		r.Timestamp = t.inZone(r.Timestamp)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("query solar data", err)
	}
	return results, nil
}

// Meter returns the smart-meter rows inside the window
func (t *tx) Meter(ctx context.Context, w domain.Window) ([]domain.MeterReading, error) {
	m := t.schema.SmarteyeDay
	query := fmt.Sprintf(`
		SELECT %s, %s, %s
		FROM %s
		WHERE %s >= $1 AND %s < $2
		ORDER BY %s
	`,
		quote(m.UseTime), quote(m.UsageTotal), quote(m.ForecastQuantity),
		quote(m.Table), quote(m.UseTime), quote(m.UseTime), quote(m.UseTime),
	)

	rows, err := t.tx.QueryContext(ctx, query, w.Start, w.End)
	if err != nil {
		return nil, queryErr("query meter data", err)
	}
	defer rows.Close()

	var results []domain.MeterReading
	for rows.Next() {
		var r domain.MeterReading
		if err := rows.Scan(&r.UseTime, &r.UsageTotal, &r.ForecastQuantity); err != nil {
			return nil, queryErr("scan meter row", err)
		}
		r.UseTime = t.inZone(r.UseTime)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("query meter data", err)
	}
	return results, nil
}

// Battery returns the battery stat rows filed under the day's V_TIME key
func (t *tx) Battery(ctx context.Context, day domain.Day) ([]domain.BatteryStat, error) {
	b := t.schema.BMSDailyStat
	query := fmt.Sprintf(`
		SELECT %s, %s, %s::text, %s::text
		FROM %s
		WHERE %s = $1
		ORDER BY %s NULLS LAST
	`,
		quote(b.VTime), quote(b.CreatedAt), quote(b.ForecastQuantity), quote(b.BatterySOC),
		quote(b.Table), quote(b.VTime), quote(b.CreatedAt),
	)

	rows, err := t.tx.QueryContext(ctx, query, day.Compact())
	if err != nil {
		return nil, queryErr("query battery stat", err)
	}
	defer rows.Close()

	var results []domain.BatteryStat
	for rows.Next() {
		var (
			r     domain.BatteryStat
			vtime string
		)
		if err := rows.Scan(&vtime, &r.CreatedAt, &r.ForecastQuantity, &r.BatterySOC); err != nil {
			return nil, queryErr("scan battery stat row", err)
		}
		d, err := domain.ParseCompactDay(strings.TrimSpace(vtime), t.loc)
		if err != nil {
			t.logger.Warn("Skipping battery stat row with malformed key", zap.String("v_time", vtime))
			continue
		}
		r.Day = d
		if r.CreatedAt.Valid {
			r.CreatedAt.Time = t.inZone(r.CreatedAt.Time)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("query battery stat", err)
	}
	return results, nil
}

// Upsert writes the given columns of one target row. The statement only
// touches a conflicting row when a value actually differs, and RETURNING
// tells a fresh insert (xmax = 0) from an update.
func (t *tx) Upsert(ctx context.Context, target domain.Target, key time.Time, values []domain.FieldValue) (domain.Change, error) {
	table, ok := t.schema.target(target)
	if !ok {
		return "", fmt.Errorf("postgres: unknown target %q: %w", target, domain.ErrStoreQuery)
	}
	if len(values) == 0 {
		return domain.ChangeUnchanged, nil
	}

	columns := make([]string, 0, len(values))
	args := make([]any, 0, len(values)+1)
	args = append(args, keyArg(table, key))
	for _, v := range values {
		col, ok := table.column(v.Field)
		if !ok {
			return "", fmt.Errorf("postgres: %s has no column for %q: %w", target, v.Field, domain.ErrStoreQuery)
		}
		columns = append(columns, col)
		args = append(args, valueArg(table, v))
	}

	var inserted bool
	err := t.tx.QueryRowContext(ctx, buildUpsert(table, columns), args...).Scan(&inserted)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ChangeUnchanged, nil
	case err != nil:
		return "", queryErr("upsert "+string(target), err)
	case inserted:
		return domain.ChangeCreated, nil
	default:
		return domain.ChangeUpdated, nil
	}
}

// buildUpsert renders the column-scoped upsert for a target table
func buildUpsert(table TargetTable, columns []string) string {
	key := quote(table.Key)
	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	sets := make([]string, len(columns))
	current := make([]string, len(columns))
	excluded := make([]string, len(columns))
	for i, c := range columns {
		q := quote(c)
		names[i] = q
		placeholders[i] = "$" + strconv.Itoa(i+2)
		sets[i] = q + " = EXCLUDED." + q
		current[i] = "t." + q
		excluded[i] = "EXCLUDED." + q
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s AS t (%s, %s) VALUES ($1, %s)",
		quote(table.Table), key, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(sets, ", "))
	fmt.Fprintf(&b, " WHERE (%s) IS DISTINCT FROM (%s)", strings.Join(current, ", "), strings.Join(excluded, ", "))
	b.WriteString(" RETURNING (xmax = 0) AS inserted")
	return b.String()
}

// inZone reads a scanned timestamp's wall clock in the aggregation zone.
// Source and target columns are timestamp without time zone, which pgx
// decodes as UTC, and window and key arguments are encoded by wall clock.
func (t *tx) inZone(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), t.loc)
}

func keyArg(table TargetTable, key time.Time) any {
	if table.KeyKind == KeyCompactDate {
		return domain.DayOf(key).Compact()
	}
	return key
}

func valueArg(table TargetTable, v domain.FieldValue) any {
	if !v.Value.Valid {
		return nil
	}
	if table.TextValues {
		return v.Value.Decimal.StringFixed(2)
	}
	return v.Value.Decimal.String()
}

func queryErr(op string, err error) error {
	return fmt.Errorf("postgres: failed to %s: %w: %w", op, domain.ErrStoreQuery, err)
}
