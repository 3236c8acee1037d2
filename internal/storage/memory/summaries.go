package memory

import (
	"context"
	"errors"
	"reflect"

	"mindspend/internal/core"
)

var errDuplicateID = errors.New("duplicate id")

// UpsertDailySummary stores the derived fields, keeping cached coaching. An
// unchanged summary leaves the row and its timestamp as they were.
func (s *Store) UpsertDailySummary(_ context.Context, summary core.DailySummary) error {
	derived := derivedOnly(summary)

	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(summary.OwnerID, summary.Date)
	row, ok := s.daily[k]
	if !ok {
		s.daily[k] = &dailyRow{summary: derived, updatedAt: s.now()}
		return nil
	}
	if reflect.DeepEqual(row.summary, derived) {
		return nil
	}
	row.summary = derived
	row.updatedAt = s.now()
	return nil
}

func (s *Store) GetDailyRecord(_ context.Context, ownerID, date string) (core.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.daily[key(ownerID, date)]
	if !ok {
		return core.DailyRecord{}, core.ErrNotFound
	}
	return core.DailyRecord{
		Summary:   cloneSummary(row.summary),
		Coaching:  cloneCoaching(row.coaching),
		UpdatedAt: row.updatedAt,
	}, nil
}

func (s *Store) GetDailyCoaching(_ context.Context, ownerID string, dates []string) (map[string]core.CachedCoaching, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]core.CachedCoaching)
	for _, d := range dates {
		if row, ok := s.daily[key(ownerID, d)]; ok && len(row.coaching.Raw) > 0 {
			out[d] = cloneCoaching(row.coaching)
		}
	}
	return out, nil
}

func (s *Store) SetDailyCoaching(_ context.Context, ownerID, date string, c core.CachedCoaching) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(ownerID, date)
	row, ok := s.daily[k]
	if !ok {
		row = &dailyRow{summary: core.DailySummary{
			OwnerID:       ownerID,
			Date:          date,
			TopCategories: []core.CategoryAmount{},
		}}
		s.daily[k] = row
	}
	row.coaching = cloneCoaching(c)
	row.updatedAt = s.now()
	return nil
}

func (s *Store) GetPeriodCoaching(_ context.Context, ownerID, periodKey string) (core.CachedCoaching, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.period[key(ownerID, periodKey)]
	if !ok || len(row.coaching.Raw) == 0 {
		return core.CachedCoaching{}, core.ErrNotFound
	}
	return cloneCoaching(row.coaching), nil
}

func (s *Store) SetPeriodCoaching(_ context.Context, ownerID, periodKey string, periodDays int, c core.CachedCoaching) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period[key(ownerID, periodKey)] = &periodRow{
		periodDays: periodDays,
		coaching:   cloneCoaching(c),
		updatedAt:  s.now(),
	}
	return nil
}

func derivedOnly(s core.DailySummary) core.DailySummary {
	s.AI = nil
	s.AIVersion = nil
	return cloneSummary(s)
}

func cloneSummary(s core.DailySummary) core.DailySummary {
	if s.TopMood != nil {
		v := *s.TopMood
		s.TopMood = &v
	}
	if s.TopContext != nil {
		v := *s.TopContext
		s.TopContext = &v
	}
	categories := make([]core.CategoryAmount, len(s.TopCategories))
	copy(categories, s.TopCategories)
	s.TopCategories = categories
	return s
}

func cloneCoaching(c core.CachedCoaching) core.CachedCoaching {
	if c.Raw == nil {
		return c
	}
	raw := make([]byte, len(c.Raw))
	copy(raw, c.Raw)
	return core.CachedCoaching{Raw: raw, Version: c.Version}
}
