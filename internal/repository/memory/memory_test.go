package memory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartenergy/aidaily/internal/domain"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func mustDay(t *testing.T, s string) domain.Day {
	t.Helper()
	d, err := domain.ParseDay(s, time.UTC)
	require.NoError(t, err)
	return d
}

func upsert(t *testing.T, s *Store, target domain.Target, key time.Time, values []domain.FieldValue) domain.Change {
	t.Helper()
	var change domain.Change
	err := s.Within(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		var err error
		change, err = tx.Upsert(ctx, target, key, values)
		return err
	})
	require.NoError(t, err)
	return change
}

func TestUpsert_TriState(t *testing.T) {
	s := New(time.UTC)
	day := mustDay(t, "2025-09-20")
	values := []domain.FieldValue{{Field: domain.FieldPwrUsage, Value: nd("10")}}

	assert.Equal(t, domain.ChangeCreated, upsert(t, s, domain.TargetPowerUsage, day.Start(), values))
	assert.Equal(t, domain.ChangeUnchanged, upsert(t, s, domain.TargetPowerUsage, day.Start(), values))

	values[0].Value = nd("10.00")
	assert.Equal(t, domain.ChangeUnchanged, upsert(t, s, domain.TargetPowerUsage, day.Start(), values))

	values[0].Value = nd("11")
	assert.Equal(t, domain.ChangeUpdated, upsert(t, s, domain.TargetPowerUsage, day.Start(), values))
	assert.Equal(t, 1, s.Rows(domain.TargetPowerUsage))
}

func TestUpsert_ColumnScoped(t *testing.T) {
	s := New(time.UTC)
	day := mustDay(t, "2025-09-20")

	upsert(t, s, domain.TargetESSCharge, day.Start(), []domain.FieldValue{
		{Field: domain.FieldPwrUsage, Value: nd("5")},
		{Field: domain.FieldPwrForecast, Value: nd("6")},
	})
	upsert(t, s, domain.TargetESSCharge, day.Start(), []domain.FieldValue{
		{Field: domain.FieldPreCharge, Value: nd("1")},
	})

	row, ok := s.Row(domain.TargetESSCharge, day.Start())
	require.True(t, ok)
	assert.True(t, row[domain.FieldPwrUsage].Decimal.Equal(decimal.NewFromInt(5)))
	assert.True(t, row[domain.FieldPreCharge].Decimal.Equal(decimal.NewFromInt(1)))
	_, hasCharge := row[domain.FieldChargeAmount]
	assert.False(t, hasCharge)
}

func TestUpsert_UnknownField(t *testing.T) {
	s := New(time.UTC)
	day := mustDay(t, "2025-09-20")
	err := s.Within(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Upsert(ctx, domain.TargetPowerUsage, day.Start(), []domain.FieldValue{{Field: domain.FieldIcs, Value: nd("1")}})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrStoreQuery)
}

func TestWithin_RollsBackOnError(t *testing.T) {
	s := New(time.UTC)
	day := mustDay(t, "2025-09-20")
	boom := errors.New("boom")

	err := s.Within(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Upsert(ctx, domain.TargetPowerUsage, day.Start(), []domain.FieldValue{{Field: domain.FieldPwrUsage, Value: nd("1")}}); err != nil {
			return err
		}
		if _, err := tx.Upsert(ctx, domain.TargetESSForecast, day.Start(), []domain.FieldValue{{Field: domain.FieldForecastQuantity, Value: nd("1")}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Rows(domain.TargetPowerUsage))
	assert.Equal(t, 0, s.Rows(domain.TargetESSForecast))
}

func TestFaults(t *testing.T) {
	s := New(time.UTC)
	day := mustDay(t, "2025-09-20")

	s.Fail(OpBegin, errors.New("refused"))
	err := s.Within(context.Background(), func(ctx context.Context, tx domain.Tx) error { return nil })
	assert.ErrorIs(t, err, domain.ErrStoreConnection)
	s.Fail(OpBegin, nil)

	s.Fail(OpMeter, errors.New("syntax"))
	err = s.Within(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Meter(ctx, day.Window())
		return err
	})
	assert.ErrorIs(t, err, domain.ErrStoreQuery)

	s.FailTarget(domain.TargetSolarPower, errors.New("locked"))
	err = s.Within(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Upsert(ctx, domain.TargetSolarPower, day.Start(), []domain.FieldValue{{Field: domain.FieldTmn, Value: nd("1")}})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrStoreQuery)

	s.Fail(OpHealth, errors.New("down"))
	assert.Error(t, s.Health(context.Background()))
}

func TestReads_WindowAndJoin(t *testing.T) {
	s := New(time.UTC)
	day := mustDay(t, "2025-09-20")
	noon := day.Start().Add(12 * time.Hour)

	s.AddSolar(
		domain.SolarReading{Timestamp: noon, ForecastQuantity: nd("1")},
		domain.SolarReading{Timestamp: day.Next().Start(), ForecastQuantity: nd("99")},
		domain.SolarReading{Timestamp: day.Start(), ForecastQuantity: nd("2")},
	)
	s.AddWeather(domain.WeatherReading{Timestamp: noon, Tmn: nd("-3")})
	s.AddBattery(
		domain.BatteryStat{Day: day, BatterySOC: sql.NullString{String: "late", Valid: true}},
		domain.BatteryStat{Day: day, CreatedAt: sql.NullTime{Time: noon, Valid: true}, BatterySOC: sql.NullString{String: "early", Valid: true}},
		domain.BatteryStat{Day: day.Next()},
	)

	err := s.Within(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		solar, err := tx.Solar(ctx, day.Window())
		require.NoError(t, err)
		require.Len(t, solar, 2)
		assert.True(t, solar[0].Timestamp.Equal(day.Start()))

		joined, err := tx.SolarWeather(ctx, day.Window())
		require.NoError(t, err)
		require.Len(t, joined, 1)
		assert.True(t, joined[0].Tmn.Decimal.Equal(decimal.NewFromInt(-3)))

		bat, err := tx.Battery(ctx, day)
		require.NoError(t, err)
		require.Len(t, bat, 2)
		assert.Equal(t, "early", bat[0].BatterySOC.String)
		return nil
	})
	require.NoError(t, err)
}

func TestForecastWriteBack(t *testing.T) {
	s := New(time.UTC)
	day := mustDay(t, "2025-09-20")
	s.AddBattery(domain.BatteryStat{Day: day, BatterySOC: sql.NullString{String: "80", Valid: true}})

	values := []domain.FieldValue{{Field: domain.FieldForecastQuantity, Value: nd("2000")}}
	assert.Equal(t, domain.ChangeUpdated, upsert(t, s, domain.TargetESSForecast, day.Start(), values))
	assert.Equal(t, domain.ChangeUnchanged, upsert(t, s, domain.TargetESSForecast, day.Start(), values))
	assert.Equal(t, domain.ChangeCreated, upsert(t, s, domain.TargetESSForecast, day.Next().Start(), values))

	set, err := s.Recent(context.Background(), domain.TargetESSForecast, 10)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, "20250921", set.Rows[0]["v_time"])
	assert.Equal(t, "2000.00", set.Rows[1]["forecast_quantity"])
}

func TestRecent(t *testing.T) {
	s := New(time.UTC)
	day := mustDay(t, "2025-09-20")
	for i := 0; i < 3; i++ {
		upsert(t, s, domain.TargetPowerUsage, day.Start().Add(time.Duration(i)*time.Hour),
			[]domain.FieldValue{{Field: domain.FieldPwrUsage, Value: nd("1.5")}})
	}

	set, err := s.Recent(context.Background(), domain.TargetPowerUsage, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"ymdhms", "pwr_usage", "pwr_forecast"}, set.Columns)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, "2025-09-20 02:00:00", set.Rows[0]["ymdhms"])
	assert.Equal(t, "1.5", set.Rows[0]["pwr_usage"])
	assert.Nil(t, set.Rows[0]["pwr_forecast"])

	set, err = s.Recent(context.Background(), domain.TargetPowerUsage, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestSeedDemo(t *testing.T) {
	s := New(time.UTC)
	day := mustDay(t, "2025-09-20")
	s.SeedDemo(day)

	err := s.Within(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		joined, err := tx.SolarWeather(ctx, day.Window())
		require.NoError(t, err)
		assert.Len(t, joined, 24)

		bat, err := tx.Battery(ctx, day)
		require.NoError(t, err)
		assert.Len(t, bat, 1)
		return nil
	})
	require.NoError(t, err)
}
