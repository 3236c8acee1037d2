package coaching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mindspend/internal/core"
)

const validReply = `{"summary":"요약","pattern":"패턴","recommendations":[{"title":"호흡","duration":"3분","type":"Quick","steps":["숨"],"reason":"이유"}]}`

type fakeDaily struct {
	summary core.DailySummary
	err     error
}

func (f *fakeDaily) UpdateForDate(ctx context.Context, ownerID, date string) (core.DailySummary, error) {
	s := f.summary
	s.OwnerID, s.Date = ownerID, date
	return s, f.err
}

type fakeInsights struct {
	insight core.StressSpendInsight
	calls   []string
}

func (f *fakeInsights) StressSpend(ctx context.Context, ownerID string, days int, end time.Time, focus string) (core.StressSpendInsight, error) {
	f.calls = append(f.calls, core.DateKey(end)+"/"+focus)
	in := f.insight
	in.PeriodDays = days
	return in, nil
}

type fakeStore struct {
	mu     sync.Mutex
	daily  map[string]core.CachedCoaching
	period map[string]core.CachedCoaching
}

func newFakeStore() *fakeStore {
	return &fakeStore{daily: map[string]core.CachedCoaching{}, period: map[string]core.CachedCoaching{}}
}

func (s *fakeStore) SetDailyCoaching(ctx context.Context, ownerID, date string, c core.CachedCoaching) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily[ownerID+"/"+date] = c
	return nil
}

func (s *fakeStore) GetPeriodCoaching(ctx context.Context, ownerID, periodKey string) (core.CachedCoaching, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.period[ownerID+"/"+periodKey]
	if !ok {
		return core.CachedCoaching{}, core.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) SetPeriodCoaching(ctx context.Context, ownerID, periodKey string, periodDays int, c core.CachedCoaching) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period[ownerID+"/"+periodKey] = c
	return nil
}

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func newTestCoach(daily *fakeDaily, store *fakeStore, completer *fakeCompleter, insights *fakeInsights) *Coach {
	return NewCoach(daily, insights, store, completer, nil, Options{Model: "test-model", Now: fixedNow})
}

func TestCoach_EnsureDailyGeneratesAndStores(t *testing.T) {
	daily := &fakeDaily{summary: core.DailySummary{StressCount: 1, StressScoreAvg: 80, DailyExpense: 20000,
		TopCategories: []core.CategoryAmount{{Category: "배달", Amount: 20000}}}}
	store := newFakeStore()
	completer := &fakeCompleter{reply: "```json\n" + validReply + "\n```"}
	insights := &fakeInsights{insight: core.StressSpendInsight{AvgExpense: 9000, SpendSpike: true}}
	coach := newTestCoach(daily, store, completer, insights)

	got, err := coach.EnsureDaily(context.Background(), "u1", "2024-06-10")
	if err != nil {
		t.Fatalf("EnsureDaily: %v", err)
	}
	if got == nil || got.Model != "test-model" || got.GeneratedAt != "2024-06-10T12:00:00Z" {
		t.Fatalf("payload = %+v", got)
	}
	stored, ok := store.daily["u1/2024-06-10"]
	if !ok || stored.Version != core.DailyAIVersion {
		t.Fatalf("stored = %+v", stored)
	}
	if len(insights.calls) != 1 || insights.calls[0] != "2024-06-10/2024-06-10" {
		t.Errorf("context window calls = %v", insights.calls)
	}
}

func TestCoach_EnsureDailyUsesCache(t *testing.T) {
	version := core.DailyAIVersion
	cached := &core.CoachingPayload{Summary: "cached"}
	daily := &fakeDaily{summary: core.DailySummary{StressCount: 1, AI: cached, AIVersion: &version}}
	completer := &fakeCompleter{reply: validReply}
	coach := newTestCoach(daily, newFakeStore(), completer, &fakeInsights{})

	got, err := coach.EnsureDaily(context.Background(), "u1", "2024-06-10")
	if err != nil || got != cached {
		t.Fatalf("EnsureDaily = %+v, %v, want cached payload", got, err)
	}
	if completer.calls != 0 {
		t.Errorf("completer called %d times", completer.calls)
	}

	if _, err := coach.GenerateDaily(context.Background(), "u1", "2024-06-10"); err != nil {
		t.Fatalf("GenerateDaily: %v", err)
	}
	if completer.calls != 1 {
		t.Errorf("GenerateDaily did not bypass the cache")
	}
}

func TestCoach_EnsureDailySkipsEmptyDay(t *testing.T) {
	completer := &fakeCompleter{reply: validReply}
	coach := newTestCoach(&fakeDaily{}, newFakeStore(), completer, &fakeInsights{})

	got, err := coach.EnsureDaily(context.Background(), "u1", "2024-06-10")
	if err != nil || got != nil {
		t.Fatalf("EnsureDaily = %+v, %v, want nil, nil", got, err)
	}
	if completer.calls != 0 {
		t.Error("completer called for an empty day")
	}
}

func TestCoach_FailuresStoreNothing(t *testing.T) {
	daily := &fakeDaily{summary: core.DailySummary{StressCount: 1}}

	tests := []struct {
		name      string
		completer *fakeCompleter
		check     func(error) bool
	}{
		{"completion error", &fakeCompleter{err: &core.CompletionError{StatusCode: 500, Err: errors.New("boom")}},
			func(err error) bool { var ce *core.CompletionError; return errors.As(err, &ce) }},
		{"rejected payload", &fakeCompleter{reply: `{"summary":"s","pattern":"p","recommendations":[]}`},
			func(err error) bool { return errors.Is(err, core.ErrPayloadRejected) }},
		{"not json", &fakeCompleter{reply: "sorry"},
			func(err error) bool { return errors.Is(err, core.ErrPayloadRejected) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			coach := newTestCoach(daily, store, tt.completer, &fakeInsights{})

			got, err := coach.EnsureDaily(context.Background(), "u1", "2024-06-10")
			if got != nil || !tt.check(err) {
				t.Fatalf("EnsureDaily = %+v, %v", got, err)
			}
			if len(store.daily) != 0 {
				t.Errorf("store written on failure: %+v", store.daily)
			}
		})
	}
}

func TestCoach_RateLimited(t *testing.T) {
	completer := &fakeCompleter{reply: validReply}
	coach := NewCoach(&fakeDaily{summary: core.DailySummary{StressCount: 1}}, &fakeInsights{}, newFakeStore(),
		completer, denyAll{}, Options{Now: fixedNow})

	if _, err := coach.EnsureDaily(context.Background(), "u1", "2024-06-10"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if completer.calls != 0 {
		t.Error("completer called while rate limited")
	}
}

func TestCoach_EnsurePeriod(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{reply: validReply}
	insights := &fakeInsights{insight: core.StressSpendInsight{AvgExpense: 1000}}
	coach := newTestCoach(&fakeDaily{}, store, completer, insights)
	end := fixedNow()

	first, err := coach.EnsurePeriod(context.Background(), "u1", 14, end)
	if err != nil || first == nil {
		t.Fatalf("EnsurePeriod = %+v, %v", first, err)
	}
	if stored := store.period["u1/last-14d"]; stored.Version != core.PeriodAIVersion {
		t.Fatalf("stored version = %d", stored.Version)
	}

	second, err := coach.EnsurePeriod(context.Background(), "u1", 14, end)
	if err != nil || second == nil || second.Summary != first.Summary {
		t.Fatalf("cached EnsurePeriod = %+v, %v", second, err)
	}
	if completer.calls != 1 {
		t.Errorf("completer calls = %d, want 1 (second served from cache)", completer.calls)
	}

	// a card generated on an earlier day is stale
	if _, err := coach.EnsurePeriod(context.Background(), "u1", 14, end.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("EnsurePeriod next day: %v", err)
	}
	if completer.calls != 2 {
		t.Errorf("completer calls = %d, want 2", completer.calls)
	}
}

func TestCoach_EnsurePeriodWithoutData(t *testing.T) {
	completer := &fakeCompleter{reply: validReply}
	coach := newTestCoach(&fakeDaily{}, newFakeStore(), completer, &fakeInsights{})

	got, err := coach.EnsurePeriod(context.Background(), "u1", 14, fixedNow())
	if err != nil || got != nil {
		t.Fatalf("EnsurePeriod = %+v, %v, want nil, nil", got, err)
	}
	if completer.calls != 0 {
		t.Error("completer called without data")
	}
}

func TestPeriodKey(t *testing.T) {
	if got := PeriodKey(14); got != "last-14d" {
		t.Errorf("PeriodKey(14) = %q", got)
	}
}

// blockingCompleter holds every completion until release is closed.
type blockingCompleter struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func newBlockingCompleter() *blockingCompleter {
	return &blockingCompleter{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.started <- struct{}{}
	select {
	case <-b.release:
		return validReply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *blockingCompleter) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type dailyResult struct {
	payload *core.CoachingPayload
	err     error
}

func TestCoach_ConcurrentEnsureDailySharesOneCompletion(t *testing.T) {
	completer := newBlockingCompleter()
	coach := NewCoach(&fakeDaily{summary: core.DailySummary{StressCount: 1}}, &fakeInsights{}, newFakeStore(),
		completer, nil, Options{Model: "test-model", Now: fixedNow})

	const callers = 5
	results := make(chan dailyResult, callers)
	ensure := func() {
		p, err := coach.EnsureDaily(context.Background(), "u1", "2024-06-10")
		results <- dailyResult{p, err}
	}

	go ensure()
	<-completer.started
	for i := 1; i < callers; i++ {
		go ensure()
	}
	// let the remaining callers join the in-flight generation
	time.Sleep(50 * time.Millisecond)
	close(completer.release)

	for i := 0; i < callers; i++ {
		r := <-results
		if r.err != nil || r.payload == nil {
			t.Fatalf("caller %d: %+v, %v", i, r.payload, r.err)
		}
	}
	if n := completer.callCount(); n != 1 {
		t.Errorf("completer calls = %d, want 1", n)
	}
}

func TestCoach_CancelledCallerDoesNotFailOthers(t *testing.T) {
	completer := newBlockingCompleter()
	store := newFakeStore()
	coach := NewCoach(&fakeDaily{summary: core.DailySummary{StressCount: 1}}, &fakeInsights{}, store,
		completer, nil, Options{Model: "test-model", Now: fixedNow})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	first := make(chan dailyResult, 1)
	go func() {
		p, err := coach.EnsureDaily(firstCtx, "u1", "2024-06-10")
		first <- dailyResult{p, err}
	}()
	<-completer.started

	second := make(chan dailyResult, 1)
	go func() {
		p, err := coach.EnsureDaily(context.Background(), "u1", "2024-06-10")
		second <- dailyResult{p, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	if r := <-first; !errors.Is(r.err, context.Canceled) {
		t.Fatalf("cancelled caller err = %v, want context.Canceled", r.err)
	}

	close(completer.release)
	r := <-second
	if r.err != nil || r.payload == nil {
		t.Fatalf("live caller = %+v, %v", r.payload, r.err)
	}
	if n := completer.callCount(); n != 1 {
		t.Errorf("completer calls = %d, want 1", n)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.daily["u1/2024-06-10"]; !ok {
		t.Error("shared generation was not stored")
	}
}
