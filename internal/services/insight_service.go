package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mindspend/internal/cache"
	"mindspend/internal/core"
	"mindspend/internal/insight"
	"mindspend/internal/log"
)

// MaxPeriodDays bounds the trailing window an insight may cover.
const MaxPeriodDays = 366

// EventReader lists an owner's events with from <= date <= to.
type EventReader interface {
	ListStressEvents(ctx context.Context, ownerID, from, to string) ([]core.StressEvent, error)
	ListFinanceEvents(ctx context.Context, ownerID, from, to string) ([]core.FinanceEvent, error)
}

// InsightService builds period insights from stored events and memoizes them
// per (owner, period, end, focus) until the owner's events change.
type InsightService struct {
	events EventReader
	cache  cache.Cache[core.StressSpendInsight]
}

// NewInsightService creates the service. A nil cache disables memoization.
func NewInsightService(events EventReader, c cache.Cache[core.StressSpendInsight]) *InsightService {
	return &InsightService{events: events, cache: c}
}

// StressSpend returns the insight for the days-long window ending at end.
// An empty focus means the last day of the window.
func (s *InsightService) StressSpend(ctx context.Context, ownerID string, days int, end time.Time, focus string) (core.StressSpendInsight, error) {
	if strings.TrimSpace(ownerID) == "" {
		return core.StressSpendInsight{}, &core.ValidationError{Field: "ownerId", Reason: "required"}
	}
	if days < 1 || days > MaxPeriodDays {
		return core.StressSpendInsight{}, &core.ValidationError{Field: "days", Reason: fmt.Sprintf("must be between 1 and %d", MaxPeriodDays)}
	}
	if focus != "" {
		if err := core.ValidateDateKey(focus); err != nil {
			return core.StressSpendInsight{}, err
		}
	}

	key := cacheKey(ownerID, days, end, focus)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	dates := insight.BuildDateRange(days, end)
	from, to := dates[0], dates[len(dates)-1]

	var (
		stress  []core.StressEvent
		finance []core.FinanceEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stress, err = s.events.ListStressEvents(gctx, ownerID, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		finance, err = s.events.ListFinanceEvents(gctx, ownerID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "Failed to load insight window",
			log.FieldComponent, log.ComponentInsight,
			log.FieldOwnerID, ownerID,
			log.FieldError, err)
		return core.StressSpendInsight{}, fmt.Errorf("load events: %w", err)
	}

	result := insight.BuildStressSpendInsight(insight.Params{
		Stress:     stress,
		Finance:    finance,
		PeriodDays: days,
		End:        end,
		FocusDate:  focus,
	})
	if s.cache != nil {
		s.cache.Set(key, result)
	}
	return result, nil
}

// Invalidate drops every memoized insight of the owner.
func (s *InsightService) Invalidate(ownerID string) {
	if s.cache == nil {
		return
	}
	if n := s.cache.DeletePrefix(ownerID + "|"); n > 0 {
		slog.Debug("Insight cache invalidated",
			log.FieldComponent, log.ComponentCache,
			log.FieldOwnerID, ownerID,
			"entries", n)
	}
}

func cacheKey(ownerID string, days int, end time.Time, focus string) string {
	return fmt.Sprintf("%s|%d|%s|%s", ownerID, days, core.DateKey(end), focus)
}
