package replay

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent requests when the caller does not
const DefaultWorkers = 10

// Poster sends one date to the service
type Poster interface {
	Post(ctx context.Context, date string) (Response, error)
}

// Outcome is the per-date replay result
type Outcome struct {
	Response
	Err error
}

// Run posts every date with at most workers requests in flight. A failed date
// is recorded and does not stop the others. Outcomes keep the order of dates.
func Run(ctx context.Context, p Poster, dates []string, workers int, logger *zap.Logger) []Outcome {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	outcomes := make([]Outcome, len(dates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, date := range dates {
		i, date := i, date
		g.Go(func() error {
			resp, err := p.Post(gctx, date)
			outcomes[i] = Outcome{Response: resp, Err: err}
			if err != nil {
				logger.Error("Replay failed", zap.String("target_date", date), zap.Error(err))
				return nil
			}
			logger.Info("Replay finished",
				zap.String("target_date", date),
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", resp.Body),
			)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Failed counts outcomes that carry an error
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
