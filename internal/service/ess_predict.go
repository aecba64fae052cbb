package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/smartenergy/aidaily/internal/domain"
	"github.com/smartenergy/aidaily/internal/rules"
)

// ESSPredictService writes the day's predicted ESS charge into the battery stat table
type ESSPredictService struct {
	exec     *Executor
	capacity decimal.Decimal
}

// NewESSPredictService creates a new ESS predict service. A non-positive
// capacity falls back to the default.
func NewESSPredictService(exec *Executor, capacity decimal.Decimal) *ESSPredictService {
	if !capacity.IsPositive() {
		capacity = rules.DefaultESSCapacity
	}
	return &ESSPredictService{exec: exec, capacity: capacity}
}

// Target returns the table this service writes
func (s *ESSPredictService) Target() domain.Target { return domain.TargetESSForecast }

// Aggregate reads both forecast feeds and writes the capped charge in the same transaction
func (s *ESSPredictService) Aggregate(ctx context.Context, date string) domain.Result {
	return s.exec.Run(ctx, domain.TargetESSForecast, date, func(ctx context.Context, tx domain.Tx, day domain.Day) (Outcome, error) {
		solar, err := tx.Solar(ctx, day.Window())
		if err != nil {
			return Outcome{}, err
		}
		meter, err := tx.Meter(ctx, day.Window())
		if err != nil {
			return Outcome{}, err
		}

		in := rules.ESSForecastInputs(day, solar, meter)
		s.exec.logger.Debug("ESS forecast inputs",
			zap.String("target_date", day.String()),
			zap.Int("solar_rows", in.SolarRows),
			zap.Int("meter_rows", in.MeterRows),
			zap.String("solar_forecast_sum", in.SolarForecastSum.String()),
			zap.String("meter_forecast", in.MeterForecast.String()),
		)

		row, ok := rules.ESSForecast(day, in, s.capacity)
		if !ok {
			msg := fmt.Sprintf("%s: need both feeds, got %d solar and %d meter rows", day, in.SolarRows, in.MeterRows)
			if in.Matched() {
				msg = fmt.Sprintf("%s: forecast quantities missing (solar known %t, meter known %t)", day, in.SolarKnown, in.MeterKnown)
			}
			return Outcome{Sources: in.SourceCount(), NoSource: true, Message: msg}, nil
		}

		change, err := tx.Upsert(ctx, domain.TargetESSForecast, day.Start(), row.Fields())
		if err != nil {
			return Outcome{}, err
		}

		var out Outcome
		out.Tally.Add(change)
		out.Sources = in.SourceCount()
		out.Message = fmt.Sprintf("%s: forecast %s (solar %s, meter %s, capacity %s) %s",
			day, row.ForecastQuantity.StringFixed(2), row.SolarForecastSum, row.MeterForecast, s.capacity, change)
		return out, nil
	})
}

// Verify reads back the newest days that carry a forecast
func (s *ESSPredictService) Verify(ctx context.Context, limit int) (domain.RecordSet, error) {
	return s.exec.Store().Recent(ctx, domain.TargetESSForecast, limit)
}
