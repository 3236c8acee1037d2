package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"mindspend/internal/coaching"
	"mindspend/internal/core"
	"mindspend/internal/insight"
	"mindspend/internal/log"
)

// DefaultConcurrency bounds parallel per-date upserts.
const DefaultConcurrency = 4

type (
	// EventReader lists an owner's events with from <= date <= to.
	EventReader interface {
		ListStressEvents(ctx context.Context, ownerID, from, to string) ([]core.StressEvent, error)
		ListFinanceEvents(ctx context.Context, ownerID, from, to string) ([]core.FinanceEvent, error)
	}

	// Store merge-upserts derived daily fields and reads back cached coaching.
	// UpsertDailySummary must leave ai and aiVersion untouched.
	Store interface {
		UpsertDailySummary(ctx context.Context, s core.DailySummary) error
		GetDailyCoaching(ctx context.Context, ownerID string, dates []string) (map[string]core.CachedCoaching, error)
	}
)

// Syncer recomputes daily summaries from events and persists them.
type Syncer struct {
	events      EventReader
	store       Store
	opts        coaching.Options
	concurrency int
}

func NewSyncer(events EventReader, store Store, opts coaching.Options) *Syncer {
	return &Syncer{
		events:      events,
		store:       store,
		opts:        opts,
		concurrency: DefaultConcurrency,
	}
}

// WithConcurrency sets how many dates are written in parallel.
func (s *Syncer) WithConcurrency(n int) *Syncer {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// UpdateForDate recomputes and persists a single day.
func (s *Syncer) UpdateForDate(ctx context.Context, ownerID, date string) (core.DailySummary, error) {
	out, err := s.SyncRange(ctx, ownerID, []string{date})
	if err != nil {
		return core.DailySummary{}, err
	}
	return out[0], nil
}

// SyncRange loads the owner's events for the span of dates once, recomputes
// every day, merge-upserts the derived fields, and returns the summaries in
// input order with any valid cached coaching attached.
func (s *Syncer) SyncRange(ctx context.Context, ownerID string, dates []string) ([]core.DailySummary, error) {
	if len(dates) == 0 {
		return []core.DailySummary{}, nil
	}
	for _, d := range dates {
		if err := core.ValidateDateKey(d); err != nil {
			return nil, err
		}
	}
	from, to := slices.Min(dates), slices.Max(dates)

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
		return nil, syncError(ctx, "load events", ownerID, err)
	}

	summaries := make([]core.DailySummary, len(dates))
	for i, d := range dates {
		summaries[i] = insight.ComputeDailySummary(ownerID, d, stress, finance)
	}

	wg, wctx := errgroup.WithContext(ctx)
	wg.SetLimit(s.concurrency)
	for _, summary := range summaries {
		wg.Go(func() error {
			return s.store.UpsertDailySummary(wctx, summary)
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, syncError(ctx, "upsert summary", ownerID, err)
	}

	cached, err := s.store.GetDailyCoaching(ctx, ownerID, dates)
	if err != nil {
		return nil, syncError(ctx, "read coaching", ownerID, err)
	}
	for i := range summaries {
		s.attachCoaching(ctx, &summaries[i], cached)
	}

	slog.DebugContext(ctx, "Daily summaries synced",
		log.FieldOwnerID, ownerID, log.FieldDates, len(dates))
	return summaries, nil
}

// attachCoaching re-validates a stored payload before exposing it. Payloads
// that no longer pass normalization are left out.
func (s *Syncer) attachCoaching(ctx context.Context, summary *core.DailySummary, cached map[string]core.CachedCoaching) {
	stored, ok := cached[summary.Date]
	if !ok || len(stored.Raw) == 0 {
		return
	}
	payload, err := coaching.NormalizeCached(stored, s.opts)
	if err != nil {
		slog.DebugContext(ctx, "Dropping invalid cached coaching",
			log.FieldOwnerID, summary.OwnerID, log.FieldDate, summary.Date, log.FieldError, err)
		return
	}
	version := stored.Version
	summary.AI = payload
	summary.AIVersion = &version
}

func syncError(ctx context.Context, op, ownerID string, err error) error {
	var se *core.StoreError
	if !errors.As(err, &se) {
		se = &core.StoreError{Op: op, Err: err}
	}
	slog.ErrorContext(ctx, "Summary sync failed",
		log.FieldOwnerID, ownerID, log.FieldOperation, op, log.FieldError, err)
	return fmt.Errorf("%w: %w", core.ErrSummarySync, se)
}
