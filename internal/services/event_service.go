package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"mindspend/internal/amqp"
	"mindspend/internal/core"
	"mindspend/internal/log"
)

type (
	// EventStore is the owner-scoped event persistence the service writes to.
	EventStore interface {
		CreateStressEvent(ctx context.Context, e core.StressEvent) error
		GetStressEvent(ctx context.Context, ownerID, id string) (core.StressEvent, error)
		UpdateStressEvent(ctx context.Context, e core.StressEvent) error
		DeleteStressEvent(ctx context.Context, ownerID, id string) error

		CreateFinanceEvent(ctx context.Context, e core.FinanceEvent) error
		GetFinanceEvent(ctx context.Context, ownerID, id string) (core.FinanceEvent, error)
		UpdateFinanceEvent(ctx context.Context, e core.FinanceEvent) error
		DeleteFinanceEvent(ctx context.Context, ownerID, id string) error
	}

	// Refresher recomputes one day's summary in process.
	Refresher interface {
		UpdateForDate(ctx context.Context, ownerID, date string) (core.DailySummary, error)
	}

	// RefreshPublisher queues a summary recompute for a worker.
	RefreshPublisher interface {
		PublishSummaryRefresh(ctx context.Context, ownerID, date, reason string) error
	}

	// Invalidator drops an owner's memoized insights.
	Invalidator interface {
		Invalidate(ownerID string)
	}
)

type (
	StressInput struct {
		Date    string `json:"date"`
		Mood    string `json:"mood"`
		Context string `json:"context"`
		Memo    string `json:"memo"`
	}

	// StressPatch updates only the non-nil fields.
	StressPatch struct {
		Date    *string `json:"date"`
		Mood    *string `json:"mood"`
		Context *string `json:"context"`
		Memo    *string `json:"memo"`
	}

	FinanceInput struct {
		Date     string `json:"date"`
		Category string `json:"category"`
		Type     string `json:"type"`
		Amount   int64  `json:"amount"`
		Memo     string `json:"memo"`
	}

	// FinancePatch updates only the non-nil fields.
	FinancePatch struct {
		Date     *string `json:"date"`
		Category *string `json:"category"`
		Type     *string `json:"type"`
		Amount   *int64  `json:"amount"`
		Memo     *string `json:"memo"`
	}
)

// EventService writes stress and finance events and keeps the derived daily
// summaries of every touched date current.
type EventService struct {
	store     EventStore
	refresher Refresher
	publisher RefreshPublisher
	insights  Invalidator
	newID     func() string
}

// NewEventService wires the service. A nil publisher refreshes summaries
// inline; a nil invalidator disables insight cache invalidation.
func NewEventService(store EventStore, refresher Refresher, publisher RefreshPublisher, insights Invalidator) *EventService {
	return &EventService{
		store:     store,
		refresher: refresher,
		publisher: publisher,
		insights:  insights,
		newID:     uuid.NewString,
	}
}

func (s *EventService) CreateStressEvent(ctx context.Context, ownerID string, in StressInput) (core.StressEvent, error) {
	e := core.StressEvent{
		ID:      s.newID(),
		OwnerID: strings.TrimSpace(ownerID),
		Date:    strings.TrimSpace(in.Date),
		Mood:    strings.TrimSpace(in.Mood),
		Context: strings.TrimSpace(in.Context),
		Memo:    in.Memo,
	}
	e.Score = core.ClassifyMood(e.Mood)
	if err := e.Validate(); err != nil {
		return core.StressEvent{}, err
	}
	if err := s.store.CreateStressEvent(ctx, e); err != nil {
		return core.StressEvent{}, fmt.Errorf("create stress event: %w", err)
	}

	slog.InfoContext(ctx, "Stress event created",
		log.FieldComponent, log.ComponentEvents,
		log.FieldOwnerID, e.OwnerID,
		log.FieldEventID, e.ID,
		log.FieldDate, e.Date)
	s.refresh(ctx, e.OwnerID, amqp.ReasonEventCreated, e.Date)
	return e, nil
}

func (s *EventService) UpdateStressEvent(ctx context.Context, ownerID, id string, p StressPatch) (core.StressEvent, error) {
	prev, err := s.store.GetStressEvent(ctx, ownerID, id)
	if err != nil {
		return core.StressEvent{}, err
	}

	e := prev
	if p.Date != nil {
		e.Date = strings.TrimSpace(*p.Date)
	}
	if p.Mood != nil {
		e.Mood = strings.TrimSpace(*p.Mood)
	}
	if p.Context != nil {
		e.Context = strings.TrimSpace(*p.Context)
	}
	if p.Memo != nil {
		e.Memo = *p.Memo
	}
	e.Score = core.ClassifyMood(e.Mood)
	if err := e.Validate(); err != nil {
		return core.StressEvent{}, err
	}
	if err := s.store.UpdateStressEvent(ctx, e); err != nil {
		return core.StressEvent{}, fmt.Errorf("update stress event: %w", err)
	}

	slog.InfoContext(ctx, "Stress event updated",
		log.FieldComponent, log.ComponentEvents,
		log.FieldOwnerID, e.OwnerID,
		log.FieldEventID, e.ID)
	s.refresh(ctx, e.OwnerID, amqp.ReasonEventUpdated, prev.Date, e.Date)
	return e, nil
}

func (s *EventService) DeleteStressEvent(ctx context.Context, ownerID, id string) error {
	prev, err := s.store.GetStressEvent(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteStressEvent(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete stress event: %w", err)
	}

	slog.InfoContext(ctx, "Stress event deleted",
		log.FieldComponent, log.ComponentEvents,
		log.FieldOwnerID, ownerID,
		log.FieldEventID, id)
	s.refresh(ctx, ownerID, amqp.ReasonEventDeleted, prev.Date)
	return nil
}

func (s *EventService) CreateFinanceEvent(ctx context.Context, ownerID string, in FinanceInput) (core.FinanceEvent, error) {
	e := core.FinanceEvent{
		ID:       s.newID(),
		OwnerID:  strings.TrimSpace(ownerID),
		Date:     strings.TrimSpace(in.Date),
		Category: strings.TrimSpace(in.Category),
		Type:     normalizeType(in.Type),
		Amount:   in.Amount,
		Memo:     in.Memo,
	}
	if err := e.Validate(); err != nil {
		return core.FinanceEvent{}, err
	}
	if err := s.store.CreateFinanceEvent(ctx, e); err != nil {
		return core.FinanceEvent{}, fmt.Errorf("create finance event: %w", err)
	}

	slog.InfoContext(ctx, "Finance event created",
		log.FieldComponent, log.ComponentEvents,
		log.FieldOwnerID, e.OwnerID,
		log.FieldEventID, e.ID,
		log.FieldDate, e.Date)
	s.refresh(ctx, e.OwnerID, amqp.ReasonEventCreated, e.Date)
	return e, nil
}

func (s *EventService) UpdateFinanceEvent(ctx context.Context, ownerID, id string, p FinancePatch) (core.FinanceEvent, error) {
	prev, err := s.store.GetFinanceEvent(ctx, ownerID, id)
	if err != nil {
		return core.FinanceEvent{}, err
	}

	e := prev
	if p.Date != nil {
		e.Date = strings.TrimSpace(*p.Date)
	}
	if p.Category != nil {
		e.Category = strings.TrimSpace(*p.Category)
	}
	if p.Type != nil {
		e.Type = normalizeType(*p.Type)
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Memo != nil {
		e.Memo = *p.Memo
	}
	if err := e.Validate(); err != nil {
		return core.FinanceEvent{}, err
	}
	if err := s.store.UpdateFinanceEvent(ctx, e); err != nil {
		return core.FinanceEvent{}, fmt.Errorf("update finance event: %w", err)
	}

	slog.InfoContext(ctx, "Finance event updated",
		log.FieldComponent, log.ComponentEvents,
		log.FieldOwnerID, e.OwnerID,
		log.FieldEventID, e.ID)
	s.refresh(ctx, e.OwnerID, amqp.ReasonEventUpdated, prev.Date, e.Date)
	return e, nil
}

func (s *EventService) DeleteFinanceEvent(ctx context.Context, ownerID, id string) error {
	prev, err := s.store.GetFinanceEvent(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteFinanceEvent(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete finance event: %w", err)
	}

	slog.InfoContext(ctx, "Finance event deleted",
		log.FieldComponent, log.ComponentEvents,
		log.FieldOwnerID, ownerID,
		log.FieldEventID, id)
	s.refresh(ctx, ownerID, amqp.ReasonEventDeleted, prev.Date)
	return nil
}

// refresh brings the summaries of the touched dates up to date. The event
// write has already succeeded, so failures are logged and not returned.
func (s *EventService) refresh(ctx context.Context, ownerID, reason string, dates ...string) {
	if s.insights != nil {
		s.insights.Invalidate(ownerID)
	}

	seen := make(map[string]bool, len(dates))
	for _, date := range dates {
		if date == "" || seen[date] {
			continue
		}
		seen[date] = true

		if s.publisher != nil {
			err := s.publisher.PublishSummaryRefresh(ctx, ownerID, date, reason)
			if err == nil {
				continue
			}
			slog.WarnContext(ctx, "Summary refresh not queued, refreshing inline",
				log.FieldComponent, log.ComponentEvents,
				log.FieldOwnerID, ownerID,
				log.FieldDate, date,
				log.FieldError, err)
		}
		if s.refresher == nil {
			continue
		}
		if _, err := s.refresher.UpdateForDate(ctx, ownerID, date); err != nil {
			slog.ErrorContext(ctx, "Summary refresh failed",
				log.FieldComponent, log.ComponentEvents,
				log.FieldOwnerID, ownerID,
				log.FieldDate, date,
				log.FieldError, err)
		}
	}
}

// normalizeType lowercases the type label but keeps a missing type missing.
func normalizeType(t string) core.FinanceType {
	return core.FinanceType(strings.ToLower(strings.TrimSpace(t)))
}
