package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/smartenergy/aidaily/internal/domain"
	"github.com/smartenergy/aidaily/internal/rules"
)

// ESSChargeService fills the daily ESS charge row from three independent feeds.
// Each feed writes only its own columns.
type ESSChargeService struct {
	exec *Executor
}

// NewESSChargeService creates a new ESS charge service
func NewESSChargeService(exec *Executor) *ESSChargeService {
	return &ESSChargeService{exec: exec}
}

// Target returns the table this service writes
func (s *ESSChargeService) Target() domain.Target { return domain.TargetESSCharge }

// Aggregate runs every feed
func (s *ESSChargeService) Aggregate(ctx context.Context, date string) domain.Result {
	return s.AggregateFeeds(ctx, date, domain.Feeds)
}

// AggregateFeeds runs the listed feeds in one unit of work. An empty list means all feeds.
func (s *ESSChargeService) AggregateFeeds(ctx context.Context, date string, feeds []domain.Feed) domain.Result {
	feeds = normalizeFeeds(feeds)

	return s.exec.Run(ctx, domain.TargetESSCharge, date, func(ctx context.Context, tx domain.Tx, day domain.Day) (Outcome, error) {
		var (
			out   Outcome
			notes []string
		)
		for _, feed := range feeds {
			part, n, err := s.part(ctx, tx, day, feed)
			if err != nil {
				return Outcome{}, err
			}
			if n == 0 {
				notes = append(notes, fmt.Sprintf("%s: no source rows", feed))
				continue
			}

			change, err := tx.Upsert(ctx, domain.TargetESSCharge, day.Start(), part.Values)
			if err != nil {
				return Outcome{}, err
			}
			out.Tally.Add(change)
			out.Sources += n
			notes = append(notes, fmt.Sprintf("%s: %s from %d rows", feed, change, n))

			s.exec.logger.Debug("ESS charge feed written",
				zap.String("feed", string(feed)),
				zap.String("target_date", day.String()),
				zap.String("change", string(change)),
				zap.Int("source_count", n),
			)
		}
		out.Message = fmt.Sprintf("%s: %s", day, strings.Join(notes, "; "))
		return out, nil
	})
}

func (s *ESSChargeService) part(ctx context.Context, tx domain.Tx, day domain.Day, feed domain.Feed) (domain.ESSChargePart, int, error) {
	switch feed {
	case domain.FeedGeneration:
		rows, err := tx.Solar(ctx, day.Window())
		if err != nil {
			return domain.ESSChargePart{}, 0, err
		}
		part, n := rules.GenerationPart(day, rows)
		return part, n, nil
	case domain.FeedUsage:
		rows, err := tx.Meter(ctx, day.Window())
		if err != nil {
			return domain.ESSChargePart{}, 0, err
		}
		part, n := rules.UsagePart(day, rows)
		return part, n, nil
	case domain.FeedBattery:
		rows, err := tx.Battery(ctx, day)
		if err != nil {
			return domain.ESSChargePart{}, 0, err
		}
		part, n := rules.BatteryPart(day, rows)
		return part, n, nil
	}
	return domain.ESSChargePart{}, 0, fmt.Errorf("ess charge: unknown feed %q", feed)
}

// Verify reads back the newest rows
func (s *ESSChargeService) Verify(ctx context.Context, limit int) (domain.RecordSet, error) {
	return s.exec.Store().Recent(ctx, domain.TargetESSCharge, limit)
}

// normalizeFeeds drops duplicates and keeps the canonical write order
func normalizeFeeds(feeds []domain.Feed) []domain.Feed {
	if len(feeds) == 0 {
		return domain.Feeds
	}
	want := make(map[domain.Feed]bool, len(feeds))
	for _, f := range feeds {
		want[f] = true
	}
	out := make([]domain.Feed, 0, len(want))
	for _, f := range domain.Feeds {
		if want[f] {
			out = append(out, f)
			delete(want, f)
		}
	}
	for f := range want {
		out = append(out, f)
	}
	return out
}
