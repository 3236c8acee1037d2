package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mindspend/internal/amqp"
	"mindspend/internal/core"
	"mindspend/internal/insight"
	"mindspend/internal/log"
	"mindspend/internal/sheets"
)

// DefaultResyncDays is the trailing window re-derived by each resync pass.
const DefaultResyncDays = 7

type (
	// Refresher recomputes stored daily summaries.
	Refresher interface {
		UpdateForDate(ctx context.Context, ownerID, date string) (core.DailySummary, error)
		SyncRange(ctx context.Context, ownerID string, dates []string) ([]core.DailySummary, error)
	}

	// OwnerLister enumerates owners with at least one event.
	OwnerLister interface {
		ListOwners(ctx context.Context) ([]string, error)
	}
)

// RefreshWorker applies queued summary refreshes and periodically re-derives
// recent days for every owner so that lost messages heal.
type RefreshWorker struct {
	refresher  Refresher
	owners     OwnerLister
	exporter   sheets.SummaryExporter
	resyncDays int
	now        func() time.Time
}

// NewRefreshWorker creates the worker. exporter may be nil.
func NewRefreshWorker(refresher Refresher, owners OwnerLister, exporter sheets.SummaryExporter, resyncDays int) *RefreshWorker {
	if resyncDays <= 0 {
		resyncDays = DefaultResyncDays
	}
	return &RefreshWorker{
		refresher:  refresher,
		owners:     owners,
		exporter:   exporter,
		resyncDays: resyncDays,
		now:        time.Now,
	}
}

// HandleRefreshMessage recomputes the summary named by msg. A returned error
// makes the consumer requeue the message.
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.SummaryRefreshMessage) error {
	s, err := w.refresher.UpdateForDate(ctx, msg.OwnerID, msg.Date)
	if err != nil {
		return fmt.Errorf("refresh summary: %w", err)
	}
	slog.DebugContext(ctx, "Summary refreshed",
		log.FieldComponent, log.ComponentWorker,
		log.FieldOwnerID, msg.OwnerID,
		log.FieldDate, msg.Date,
		log.FieldReason, msg.Reason)
	w.export(ctx, s)
	return nil
}

// ResyncRecent re-derives the last resyncDays for every owner. Failures for one
// owner do not stop the pass; the count of failed owners is returned.
func (w *RefreshWorker) ResyncRecent(ctx context.Context) (int, error) {
	owners, err := w.owners.ListOwners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list owners: %w", err)
	}
	dates := insight.BuildDateRange(w.resyncDays, w.now())

	failed := 0
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		summaries, err := w.refresher.SyncRange(ctx, owner, dates)
		if err != nil {
			failed++
			slog.ErrorContext(ctx, "Resync failed for owner",
				log.FieldComponent, log.ComponentWorker,
				log.FieldOwnerID, owner,
				log.FieldError, err)
			continue
		}
		for _, s := range summaries {
			w.export(ctx, s)
		}
	}

	slog.InfoContext(ctx, "Resync completed",
		log.FieldComponent, log.ComponentWorker,
		"owners", len(owners),
		"days", len(dates),
		"failed", failed)
	return failed, nil
}

// RunPeriodicResync calls ResyncRecent every interval until ctx is done.
func (w *RefreshWorker) RunPeriodicResync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ResyncRecent(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Periodic resync failed",
					log.FieldComponent, log.ComponentWorker,
					log.FieldError, err)
			}
		}
	}
}

func (w *RefreshWorker) export(ctx context.Context, s core.DailySummary) {
	if w.exporter == nil {
		return
	}
	if err := w.exporter.ExportDailySummary(ctx, s); err != nil {
		slog.WarnContext(ctx, "Summary export failed",
			log.FieldComponent, log.ComponentSheets,
			log.FieldOwnerID, s.OwnerID,
			log.FieldDate, s.Date,
			log.FieldError, err)
	}
}
