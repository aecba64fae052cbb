package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartenergy/aidaily/internal/domain"
	"github.com/smartenergy/aidaily/internal/metrics"
	"github.com/smartenergy/aidaily/internal/notify"
	"github.com/smartenergy/aidaily/internal/repository/memory"
	"github.com/smartenergy/aidaily/internal/rules"
)

const testDate = "2025-09-20"

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func testDay(t *testing.T) domain.Day {
	t.Helper()
	d, err := domain.ParseDay(testDate, time.UTC)
	require.NoError(t, err)
	return d
}

func at(day domain.Day, h int) time.Time {
	return day.Start().Add(time.Duration(h) * time.Hour)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	store   *memory.Store
	exec    *Executor
	solar   *SolarPowerService
	charge  *ESSChargeService
	usage   *PowerUsageService
	predict *ESSPredictService
	all     *AggregateService
	pub     *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New(time.UTC)
	exec := NewExecutor(store, time.UTC, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	f := &fixture{
		store:   store,
		exec:    exec,
		solar:   NewSolarPowerService(exec),
		charge:  NewESSChargeService(exec),
		usage:   NewPowerUsageService(exec, true),
		predict: NewESSPredictService(exec, rules.DefaultESSCapacity),
		pub:     &recordingPublisher{},
	}
	f.all = NewAggregateService(f.solar, f.charge, f.usage, f.predict, f.pub, zap.NewNop())
	return f
}

func (f *fixture) seedSolarWeather(day domain.Day) {
	f.store.AddSolar(
		domain.SolarReading{Timestamp: at(day, 10), ForecastQuantity: nd("1000"), TodayGeneration: nd("40"), AccumGeneration: nd("500")},
		domain.SolarReading{Timestamp: at(day, 14), ForecastQuantity: nd("2000"), TodayGeneration: nd("60"), AccumGeneration: nd("560")},
		// next day's midnight belongs to the next day
		domain.SolarReading{Timestamp: day.Next().Start(), ForecastQuantity: nd("9999"), TodayGeneration: nd("9999")},
	)
	f.store.AddWeather(
		domain.WeatherReading{Timestamp: at(day, 10), Tmn: nd("0"), Tmx: nd("12.5"), Ics: nd("1.1")},
		domain.WeatherReading{Timestamp: at(day, 14), Tmn: nd("3.2"), Tmx: nd("18"), Ics: nd("2.2")},
		domain.WeatherReading{Timestamp: day.Next().Start(), Tmn: nd("-50"), Tmx: nd("50"), Ics: nd("9")},
	)
}

func (f *fixture) seedMeter(day domain.Day, forecast string) {
	f.store.AddMeter(
		domain.MeterReading{UseTime: at(day, 0), UsageTotal: nd("4000"), ForecastQuantity: nd(forecast)},
		domain.MeterReading{UseTime: day.Next().Start(), UsageTotal: nd("9999"), ForecastQuantity: nd("9999")},
	)
}

func TestSolarPower_AggregateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	day := testDay(t)
	f.seedSolarWeather(day)

	first := f.solar.Aggregate(context.Background(), testDate)
	require.True(t, first.Success, first.Message)
	assert.Equal(t, domain.ChangeCreated, first.Change)
	assert.Equal(t, 1, first.AffectedRows)
	assert.Equal(t, domain.ConditionOK, first.Condition)
	require.NotNil(t, first.SourceCount)
	assert.Equal(t, 2, *first.SourceCount)

	second := f.solar.Aggregate(context.Background(), testDate)
	require.True(t, second.Success)
	assert.Equal(t, domain.ChangeUnchanged, second.Change)
	assert.Equal(t, 0, second.AffectedRows)
	assert.Equal(t, 1, f.store.Rows(domain.TargetSolarPower))

	row, ok := f.store.Row(domain.TargetSolarPower, day.Start())
	require.True(t, ok)
	assert.True(t, row[domain.FieldPrePwrGeneration].Decimal.Equal(decimal.NewFromInt(3000)))
	assert.True(t, row[domain.FieldTmx].Decimal.Equal(decimal.NewFromInt(18)))
	assert.True(t, row[domain.FieldTmn].Decimal.Equal(decimal.RequireFromString("3.2")))
	assert.True(t, row[domain.FieldIcs].Decimal.Equal(decimal.RequireFromString("1.65")))
}

func TestSolarPower_SourceChangeUpdates(t *testing.T) {
	f := newFixture(t)
	day := testDay(t)
	f.seedSolarWeather(day)
	require.True(t, f.solar.Aggregate(context.Background(), testDate).Success)

	f.store.AddSolar(domain.SolarReading{Timestamp: at(day, 16), ForecastQuantity: nd("5")})
	f.store.AddWeather(domain.WeatherReading{Timestamp: at(day, 16), Tmx: nd("1")})

	res := f.solar.Aggregate(context.Background(), testDate)
	require.True(t, res.Success)
	assert.Equal(t, domain.ChangeUpdated, res.Change)
	assert.Equal(t, 1, res.AffectedRows)
}

func TestSolarPower_NoSourceData(t *testing.T) {
	f := newFixture(t)

	res := f.solar.Aggregate(context.Background(), testDate)

	assert.True(t, res.Success)
	assert.True(t, res.NoSourceData())
	assert.Equal(t, domain.ChangeUnchanged, res.Change)
	assert.Equal(t, 0, *res.SourceCount)
	assert.Equal(t, 0, f.store.Rows(domain.TargetSolarPower))
}

func TestAggregate_InvalidDateNeverTouchesStore(t *testing.T) {
	f := newFixture(t)
	f.store.Fail(memory.OpBegin, errors.New("must not be reached"))

	for _, date := range []string{"2025-02-30", "20250920", "", "yesterday"} {
		res := f.solar.Aggregate(context.Background(), date)
		assert.False(t, res.Success)
		assert.Equal(t, domain.ConditionInvalidDate, res.Condition, "date %q", date)
		assert.NotEmpty(t, res.Message)
	}
}

func TestAggregate_StoreFailures(t *testing.T) {
	f := newFixture(t)

	f.store.Fail(memory.OpBegin, errors.New("connection refused"))
	res := f.charge.Aggregate(context.Background(), testDate)
	assert.False(t, res.Success)
	assert.Equal(t, domain.ConditionStoreConnection, res.Condition)
	f.store.Fail(memory.OpBegin, nil)

	f.store.Fail(memory.OpMeter, errors.New("column does not exist"))
	res = f.usage.Aggregate(context.Background(), testDate)
	assert.False(t, res.Success)
	assert.Equal(t, domain.ConditionStoreQuery, res.Condition)
	assert.Equal(t, testDate, res.TargetDate)
}

func TestESSCharge_ColumnIsolation(t *testing.T) {
	f := newFixture(t)
	day := testDay(t)
	f.seedMeter(day, "5000")
	f.store.AddBattery(domain.BatteryStat{
		Day:              day,
		ForecastQuantity: sql.NullString{String: "1,234.50", Valid: true},
		BatterySOC:       sql.NullString{String: "N/A", Valid: true},
	})

	usage := f.charge.AggregateFeeds(context.Background(), testDate, []domain.Feed{domain.FeedUsage})
	require.True(t, usage.Success, usage.Message)
	assert.Equal(t, domain.ChangeCreated, usage.Change)

	battery := f.charge.AggregateFeeds(context.Background(), testDate, []domain.Feed{domain.FeedBattery})
	require.True(t, battery.Success, battery.Message)
	assert.Equal(t, domain.ChangeUpdated, battery.Change)

	row, ok := f.store.Row(domain.TargetESSCharge, day.Start())
	require.True(t, ok)
	assert.True(t, row[domain.FieldPwrUsage].Decimal.Equal(decimal.NewFromInt(4000)), "usage feed kept its column")
	assert.True(t, row[domain.FieldPwrForecast].Decimal.Equal(decimal.NewFromInt(5000)))
	assert.True(t, row[domain.FieldPreCharge].Decimal.Equal(decimal.RequireFromString("1234.5")))
	assert.True(t, row[domain.FieldChargeAmount].Decimal.IsZero())
	_, wrote := row[domain.FieldPrePwrGeneration]
	assert.False(t, wrote, "generation feed had no rows and must not write")
}

func TestESSCharge_AllFeedsIdempotent(t *testing.T) {
	f := newFixture(t)
	day := testDay(t)
	f.seedSolarWeather(day)
	f.seedMeter(day, "5000")

	first := f.charge.Aggregate(context.Background(), testDate)
	require.True(t, first.Success)
	assert.Equal(t, domain.ChangeCreated, first.Change)
	assert.Equal(t, 2, first.AffectedRows)
	assert.Contains(t, first.Message, "battery: no source rows")

	second := f.charge.Aggregate(context.Background(), testDate)
	require.True(t, second.Success)
	assert.Equal(t, domain.ChangeUnchanged, second.Change)
	assert.Equal(t, 0, second.AffectedRows)
}

func TestPowerUsage_OneRowPerTimestamp(t *testing.T) {
	f := newFixture(t)
	day := testDay(t)
	f.store.AddMeter(
		domain.MeterReading{UseTime: at(day, 1), UsageTotal: nd("1")},
		domain.MeterReading{UseTime: at(day, 2), UsageTotal: nd("2")},
		domain.MeterReading{UseTime: at(day, 2), UsageTotal: nd("3")},
		domain.MeterReading{UseTime: day.Next().Start(), UsageTotal: nd("4")},
	)

	res := f.usage.Aggregate(context.Background(), testDate)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.AffectedRows)
	assert.Equal(t, 3, *res.SourceCount)
	assert.Equal(t, 2, f.store.Rows(domain.TargetPowerUsage))

	row, ok := f.store.Row(domain.TargetPowerUsage, at(day, 2))
	require.True(t, ok)
	assert.True(t, row[domain.FieldPwrUsage].Decimal.Equal(decimal.NewFromInt(3)))

	again := f.usage.Aggregate(context.Background(), testDate)
	assert.Equal(t, domain.ChangeUnchanged, again.Change)
}

func TestPowerUsage_Disabled(t *testing.T) {
	f := newFixture(t)
	usage := NewPowerUsageService(f.exec, false)

	res := usage.Aggregate(context.Background(), testDate)
	assert.False(t, res.Success)
	assert.Equal(t, domain.ConditionNotImplemented, res.Condition)

	res = usage.Aggregate(context.Background(), "2025-13-01")
	assert.Equal(t, domain.ConditionInvalidDate, res.Condition)
}

func TestESSPredict_Cap(t *testing.T) {
	cases := []struct {
		meter string
		want  string
	}{
		{"6500", "3120.00"},
		{"5000", "2000.00"},
	}
	for _, tc := range cases {
		t.Run(tc.meter, func(t *testing.T) {
			f := newFixture(t)
			day := testDay(t)
			f.seedSolarWeather(day)
			f.seedMeter(day, tc.meter)

			res := f.predict.Aggregate(context.Background(), testDate)
			require.True(t, res.Success, res.Message)
			assert.Equal(t, domain.ChangeCreated, res.Change)

			set, err := f.predict.Verify(context.Background(), 10)
			require.NoError(t, err)
			require.Equal(t, 1, set.Len())
			assert.Equal(t, "20250920", set.Rows[0]["v_time"])
			assert.Equal(t, tc.want, set.Rows[0]["forecast_quantity"])
		})
	}
}

func TestESSPredict_NeedsBothFeeds(t *testing.T) {
	f := newFixture(t)
	day := testDay(t)
	f.seedSolarWeather(day)

	res := f.predict.Aggregate(context.Background(), testDate)
	assert.True(t, res.NoSourceData())
	assert.Equal(t, 2, *res.SourceCount)
	assert.Equal(t, 0, f.store.Rows(domain.TargetESSForecast))
}

func TestESSPredict_NullMeterForecast(t *testing.T) {
	f := newFixture(t)
	day := testDay(t)
	f.seedSolarWeather(day)
	f.store.AddMeter(domain.MeterReading{UseTime: at(day, 0), UsageTotal: nd("4000")})

	res := f.predict.Aggregate(context.Background(), testDate)
	require.True(t, res.Success, res.Message)
	assert.True(t, res.NoSourceData())
	assert.Equal(t, domain.ChangeUnchanged, res.Change)
	assert.Equal(t, 0, f.store.Rows(domain.TargetESSForecast))
}

func TestAggregateAll_IsolatesFailures(t *testing.T) {
	f := newFixture(t)
	day := testDay(t)
	f.seedSolarWeather(day)
	f.seedMeter(day, "5000")
	f.store.FailTarget(domain.TargetPowerUsage, errors.New("deadlock detected"))

	batch := f.all.AggregateAll(context.Background(), testDate)
	f.all.WaitBackground()

	require.Len(t, batch, 4)
	assert.False(t, batch["power_usage"].Success)
	assert.Equal(t, domain.ConditionStoreQuery, batch["power_usage"].Condition)
	assert.True(t, batch["solar_power"].Success)
	assert.True(t, batch["ess_charge"].Success)
	assert.True(t, batch["ess_predict"].Success)
	assert.Equal(t, 1, batch.Failed())

	assert.Equal(t, 1, f.store.Rows(domain.TargetSolarPower))
	assert.Equal(t, 0, f.store.Rows(domain.TargetPowerUsage))

	f.pub.mu.Lock()
	defer f.pub.mu.Unlock()
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, testDate, f.pub.events[0].TargetDate)
	assert.Equal(t, 1, f.pub.events[0].Failed)
	assert.NotEmpty(t, f.pub.events[0].RunID)
}

func TestAggregateAll_InvalidDate(t *testing.T) {
	f := newFixture(t)

	batch := f.all.AggregateAll(context.Background(), "2025-02-29")
	f.all.WaitBackground()

	require.Len(t, batch, 4)
	for name, res := range batch {
		assert.Equal(t, domain.ConditionInvalidDate, res.Condition, name)
	}
}

func TestExecutor_RecoversPanics(t *testing.T) {
	f := newFixture(t)
	day := testDay(t)

	res := f.exec.Run(context.Background(), domain.TargetSolarPower, testDate, func(ctx context.Context, tx domain.Tx, d domain.Day) (Outcome, error) {
		if _, err := tx.Upsert(ctx, domain.TargetSolarPower, d.Start(), []domain.FieldValue{{Field: domain.FieldTmn, Value: nd("1")}}); err != nil {
			return Outcome{}, err
		}
		panic("nil map write")
	})

	assert.False(t, res.Success)
	assert.Equal(t, domain.ConditionInternal, res.Condition)
	_, ok := f.store.Row(domain.TargetSolarPower, day.Start())
	assert.False(t, ok, "work of a panicking rule is rolled back")
}

func TestAggregateService_RuleLookup(t *testing.T) {
	f := newFixture(t)
	for _, target := range domain.Targets {
		r, ok := f.all.Rule(target)
		require.True(t, ok)
		assert.Equal(t, target, r.Target())
	}
	_, ok := f.all.Rule("unknown")
	assert.False(t, ok)
}
