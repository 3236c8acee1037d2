// Package memory keeps events and summaries in process memory. It mirrors the
// SQLite repository's merge semantics and is used for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mindspend/internal/core"
)

type (
	stressRow struct {
		event core.StressEvent
		seq   int64
	}

	financeRow struct {
		event core.FinanceEvent
		seq   int64
	}

	dailyRow struct {
		summary   core.DailySummary
		coaching  core.CachedCoaching
		updatedAt time.Time
	}

	periodRow struct {
		periodDays int
		coaching   core.CachedCoaching
		updatedAt  time.Time
	}
)

type Store struct {
	mu      sync.RWMutex
	seq     int64
	stress  map[string]*stressRow
	finance map[string]*financeRow
	daily   map[string]*dailyRow
	period  map[string]*periodRow
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		stress:  make(map[string]*stressRow),
		finance: make(map[string]*financeRow),
		daily:   make(map[string]*dailyRow),
		period:  make(map[string]*periodRow),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for updated-at stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error              { return nil }

func key(ownerID, k string) string { return ownerID + "\x00" + k }

func (s *Store) CreateStressEvent(_ context.Context, e core.StressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stress[e.ID]; ok {
		return &core.StoreError{Op: "create stress event", Err: errDuplicateID}
	}
	s.seq++
	s.stress[e.ID] = &stressRow{event: e, seq: s.seq}
	return nil
}

func (s *Store) GetStressEvent(_ context.Context, ownerID, id string) (core.StressEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.stress[id]
	if !ok || row.event.OwnerID != ownerID {
		return core.StressEvent{}, core.ErrNotFound
	}
	return row.event, nil
}

func (s *Store) UpdateStressEvent(_ context.Context, e core.StressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.stress[e.ID]
	if !ok || row.event.OwnerID != e.OwnerID {
		return core.ErrNotFound
	}
	row.event = e
	return nil
}

func (s *Store) DeleteStressEvent(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.stress[id]
	if !ok || row.event.OwnerID != ownerID {
		return core.ErrNotFound
	}
	delete(s.stress, id)
	return nil
}

func (s *Store) ListStressEvents(_ context.Context, ownerID, from, to string) ([]core.StressEvent, error) {
	s.mu.RLock()
	rows := make([]*stressRow, 0)
	for _, row := range s.stress {
		if row.event.OwnerID == ownerID && row.event.Date >= from && row.event.Date <= to {
			rows = append(rows, row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].event.Date != rows[j].event.Date {
			return rows[i].event.Date < rows[j].event.Date
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]core.StressEvent, len(rows))
	for i, row := range rows {
		out[i] = row.event
	}
	return out, nil
}

func (s *Store) CreateFinanceEvent(_ context.Context, e core.FinanceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.finance[e.ID]; ok {
		return &core.StoreError{Op: "create finance event", Err: errDuplicateID}
	}
	s.seq++
	s.finance[e.ID] = &financeRow{event: e, seq: s.seq}
	return nil
}

func (s *Store) GetFinanceEvent(_ context.Context, ownerID, id string) (core.FinanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.finance[id]
	if !ok || row.event.OwnerID != ownerID {
		return core.FinanceEvent{}, core.ErrNotFound
	}
	return row.event, nil
}

func (s *Store) UpdateFinanceEvent(_ context.Context, e core.FinanceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.finance[e.ID]
	if !ok || row.event.OwnerID != e.OwnerID {
		return core.ErrNotFound
	}
	row.event = e
	return nil
}

func (s *Store) DeleteFinanceEvent(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.finance[id]
	if !ok || row.event.OwnerID != ownerID {
		return core.ErrNotFound
	}
	delete(s.finance, id)
	return nil
}

func (s *Store) ListFinanceEvents(_ context.Context, ownerID, from, to string) ([]core.FinanceEvent, error) {
	s.mu.RLock()
	rows := make([]*financeRow, 0)
	for _, row := range s.finance {
		if row.event.OwnerID == ownerID && row.event.Date >= from && row.event.Date <= to {
			rows = append(rows, row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].event.Date != rows[j].event.Date {
			return rows[i].event.Date < rows[j].event.Date
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]core.FinanceEvent, len(rows))
	for i, row := range rows {
		out[i] = row.event
	}
	return out, nil
}

func (s *Store) ListOwners(context.Context) ([]string, error) {
	s.mu.RLock()
	seen := make(map[string]struct{})
	for _, row := range s.stress {
		seen[row.event.OwnerID] = struct{}{}
	}
	for _, row := range s.finance {
		seen[row.event.OwnerID] = struct{}{}
	}
	s.mu.RUnlock()

	owners := make([]string, 0, len(seen))
	for id := range seen {
		owners = append(owners, id)
	}
	sort.Strings(owners)
	return owners, nil
}
