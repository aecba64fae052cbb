package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smartenergy/aidaily/internal/domain"
	"github.com/smartenergy/aidaily/internal/metrics"
)

// Outcome is what a rule's unit of work reports back to the executor
type Outcome struct {
	Tally   domain.Tally
	Sources int
	// NoSource marks a run whose rows did not add up to anything to write
	NoSource bool
	Message  string
}

// Work is one rule's reads and writes for a single day
type Work func(ctx context.Context, tx domain.Tx, day domain.Day) (Outcome, error)

// Executor turns a rule invocation into a Result. Every failure, panics
// included, comes back as data.
type Executor struct {
	store   domain.Store
	loc     *time.Location
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewExecutor creates a new executor
func NewExecutor(store domain.Store, loc *time.Location, m *metrics.Metrics, logger *zap.Logger) *Executor {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{store: store, loc: loc, metrics: m, logger: logger}
}

// Store returns the backing store
func (e *Executor) Store() domain.Store { return e.store }

// Run validates date, runs work as one unit of work and reports the result
func (e *Executor) Run(ctx context.Context, rule domain.Target, date string, work Work) (res domain.Result) {
	start := time.Now()
	var out Outcome

	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("Rule panicked",
				zap.String("rule", string(rule)),
				zap.String("target_date", date),
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
			res = failure(date, fmt.Errorf("%s: unexpected failure: %v", rule, p))
		}
		e.metrics.Observe(rule, res, out.Tally, time.Since(start))
	}()

	day, err := domain.ParseDay(date, e.loc)
	if err != nil {
		return e.failed(rule, date, err)
	}

	err = e.store.Within(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		out, err = work(ctx, tx, day)
		return err
	})
	if err != nil {
		out = Outcome{}
		return e.failed(rule, day.String(), err)
	}

	res = success(day, out)
	e.logger.Info("Rule finished",
		zap.String("rule", string(rule)),
		zap.String("target_date", res.TargetDate),
		zap.String("condition", string(res.Condition)),
		zap.String("change", string(res.Change)),
		zap.Int("affected_rows", res.AffectedRows),
		zap.Int("source_count", out.Sources),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}

// Reject reports err without touching the store. An invalid date still wins.
func (e *Executor) Reject(rule domain.Target, date string, err error) domain.Result {
	start := time.Now()
	if _, perr := domain.ParseDay(date, e.loc); perr != nil {
		err = perr
	}
	res := e.failed(rule, date, err)
	e.metrics.Observe(rule, res, domain.Tally{}, time.Since(start))
	return res
}

func (e *Executor) failed(rule domain.Target, date string, err error) domain.Result {
	res := failure(date, err)
	level := e.logger.Error
	switch res.Condition {
	case domain.ConditionInvalidDate, domain.ConditionNotImplemented:
		level = e.logger.Warn
	}
	level("Rule failed",
		zap.String("rule", string(rule)),
		zap.String("target_date", date),
		zap.String("condition", string(res.Condition)),
		zap.Error(err),
	)
	return res
}

func success(day domain.Day, out Outcome) domain.Result {
	sources := out.Sources
	res := domain.Result{
		Success:      true,
		Change:       out.Tally.Change(),
		AffectedRows: out.Tally.Affected(),
		Condition:    domain.ConditionOK,
		TargetDate:   day.String(),
		Message:      out.Message,
		SourceCount:  &sources,
	}
	if sources == 0 || out.NoSource {
		res.Condition = domain.ConditionNoSourceData
		if res.Message == "" {
			res.Message = fmt.Sprintf("no source data for %s", day)
		}
	}
	if res.Message == "" {
		res.Message = fmt.Sprintf("%s: %d created, %d updated, %d unchanged from %d source rows",
			day, out.Tally.Created, out.Tally.Updated, out.Tally.Unchanged, sources)
	}
	return res
}

func failure(date string, err error) domain.Result {
	return domain.Result{
		Success:    false,
		Change:     domain.ChangeUnchanged,
		Condition:  domain.ClassifyError(err),
		TargetDate: date,
		Message:    err.Error(),
	}
}
