package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartenergy/aidaily/internal/domain"
	"github.com/smartenergy/aidaily/internal/notify"
)

// Rule is one aggregation rule exposed to the transport layer
type Rule interface {
	Target() domain.Target
	Aggregate(ctx context.Context, date string) domain.Result
	Verify(ctx context.Context, limit int) (domain.RecordSet, error)
}

// AggregateService runs every rule for a day
type AggregateService struct {
	solar   *SolarPowerService
	charge  *ESSChargeService
	usage   *PowerUsageService
	predict *ESSPredictService

	publisher notify.Publisher
	logger    *zap.Logger

	wgBg sync.WaitGroup // tracks background publishes for graceful shutdown
}

// NewAggregateService creates a new batch service
func NewAggregateService(
	solar *SolarPowerService,
	charge *ESSChargeService,
	usage *PowerUsageService,
	predict *ESSPredictService,
	publisher notify.Publisher,
	logger *zap.Logger,
) *AggregateService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregateService{
		solar:     solar,
		charge:    charge,
		usage:     usage,
		predict:   predict,
		publisher: publisher,
		logger:    logger,
	}
}

// Rules lists the rules in batch order
func (s *AggregateService) Rules() []Rule {
	return []Rule{s.solar, s.charge, s.usage, s.predict}
}

// Rule finds a rule by target
func (s *AggregateService) Rule(target domain.Target) (Rule, bool) {
	for _, r := range s.Rules() {
		if r.Target() == target {
			return r, true
		}
	}
	return nil, false
}

// WaitBackground blocks until all background publishes complete.
// Call during graceful shutdown to avoid dropped events.
func (s *AggregateService) WaitBackground() {
	s.wgBg.Wait()
}

// AggregateAll runs every rule for date. Each rule has its own unit of work,
// so one failure never rolls back or skips another. The rules whose tables
// do not feed each other run concurrently; ess_predict runs last because it
// overwrites the forecast the ess_charge battery feed reads.
func (s *AggregateService) AggregateAll(ctx context.Context, date string) domain.BatchResult {
	runID := uuid.NewString()
	start := time.Now()

	var (
		results = make(domain.BatchResult, len(domain.Targets))
		wg      sync.WaitGroup
		mu      sync.Mutex
	)

	for _, r := range []Rule{s.solar, s.charge, s.usage} {
		wg.Add(1)
		go func(r Rule) {
			defer wg.Done()
			res := r.Aggregate(ctx, date)
			mu.Lock()
			results[string(r.Target())] = res
			mu.Unlock()
		}(r)
	}
	wg.Wait()

	results[string(s.predict.Target())] = s.predict.Aggregate(ctx, date)

	failed := results.Failed()
	s.logger.Info("Aggregate all finished",
		zap.String("run_id", runID),
		zap.String("target_date", date),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
	)

	// Publish asynchronously (tracked for graceful shutdown)
	ev := notify.Event{
		RunID:      runID,
		TargetDate: date,
		Failed:     failed,
		Results:    copyBatch(results),
		FinishedAt: time.Now().UTC(),
	}
	s.wgBg.Add(1)
	go func() {
		defer s.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.Publish(bgCtx, ev); err != nil {
			s.logger.Warn("Failed to publish batch event", zap.String("run_id", runID), zap.Error(err))
		}
	}()

	return results
}

func copyBatch(b domain.BatchResult) domain.BatchResult {
	out := make(domain.BatchResult, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
