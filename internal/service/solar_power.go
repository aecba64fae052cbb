package service

import (
	"context"

	"github.com/smartenergy/aidaily/internal/domain"
	"github.com/smartenergy/aidaily/internal/rules"
)

// SolarPowerService builds the daily solar/weather row
type SolarPowerService struct {
	exec *Executor
}

// NewSolarPowerService creates a new solar power service
func NewSolarPowerService(exec *Executor) *SolarPowerService {
	return &SolarPowerService{exec: exec}
}

// Target returns the table this service writes
func (s *SolarPowerService) Target() domain.Target { return domain.TargetSolarPower }

// Aggregate reduces the day's joined solar and weather rows into one row
func (s *SolarPowerService) Aggregate(ctx context.Context, date string) domain.Result {
	return s.exec.Run(ctx, domain.TargetSolarPower, date, func(ctx context.Context, tx domain.Tx, day domain.Day) (Outcome, error) {
		readings, err := tx.SolarWeather(ctx, day.Window())
		if err != nil {
			return Outcome{}, err
		}

		row, n := rules.SolarPower(day, readings)
		if n == 0 {
			return Outcome{}, nil
		}

		change, err := tx.Upsert(ctx, domain.TargetSolarPower, day.Start(), row.Fields())
		if err != nil {
			return Outcome{}, err
		}

		var tally domain.Tally
		tally.Add(change)
		return Outcome{Tally: tally, Sources: n}, nil
	})
}

// Verify reads back the newest rows
func (s *SolarPowerService) Verify(ctx context.Context, limit int) (domain.RecordSet, error) {
	return s.exec.Store().Recent(ctx, domain.TargetSolarPower, limit)
}
