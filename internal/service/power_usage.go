package service

import (
	"context"

	"github.com/smartenergy/aidaily/internal/domain"
	"github.com/smartenergy/aidaily/internal/rules"
)

// PowerUsageService copies the day's smart-meter rows into the usage table,
// one target row per timestamp
type PowerUsageService struct {
	exec    *Executor
	enabled bool
}

// NewPowerUsageService creates a new power usage service. With the mapping
// disabled every call reports not implemented.
func NewPowerUsageService(exec *Executor, enabled bool) *PowerUsageService {
	return &PowerUsageService{exec: exec, enabled: enabled}
}

// Target returns the table this service writes
func (s *PowerUsageService) Target() domain.Target { return domain.TargetPowerUsage }

// Aggregate upserts one row per distinct use time
func (s *PowerUsageService) Aggregate(ctx context.Context, date string) domain.Result {
	if !s.enabled {
		return s.exec.Reject(domain.TargetPowerUsage, date, domain.ErrNotImplemented)
	}

	return s.exec.Run(ctx, domain.TargetPowerUsage, date, func(ctx context.Context, tx domain.Tx, day domain.Day) (Outcome, error) {
		readings, err := tx.Meter(ctx, day.Window())
		if err != nil {
			return Outcome{}, err
		}

		rows, n := rules.PowerUsage(day, readings)
		var out Outcome
		for _, row := range rows {
			change, err := tx.Upsert(ctx, domain.TargetPowerUsage, row.Timestamp, row.Fields())
			if err != nil {
				return Outcome{}, err
			}
			out.Tally.Add(change)
		}
		out.Sources = n
		return out, nil
	})
}

// Verify reads back the newest rows
func (s *PowerUsageService) Verify(ctx context.Context, limit int) (domain.RecordSet, error) {
	return s.exec.Store().Recent(ctx, domain.TargetPowerUsage, limit)
}
