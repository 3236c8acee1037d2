package coaching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"mindspend/internal/core"
	"mindspend/internal/log"
)

const (
	// ContextDays is the trailing window used for the daily average and spike flag.
	ContextDays = 14

	DefaultModel = "gpt-4o-mini"

	// sharedTimeout bounds a generation shared by concurrent callers.
	sharedTimeout = 2 * time.Minute
)

// ErrRateLimited is returned when an owner exceeds the coaching request rate.
var ErrRateLimited = errors.New("coaching rate limit exceeded")

type (
	// DailySource recomputes and returns the stored summary for one day.
	DailySource interface {
		UpdateForDate(ctx context.Context, ownerID, date string) (core.DailySummary, error)
	}

	// InsightSource builds the period insight for an owner's window.
	InsightSource interface {
		StressSpend(ctx context.Context, ownerID string, days int, end time.Time, focus string) (core.StressSpendInsight, error)
	}

	// Store persists coaching payloads next to the derived summaries.
	Store interface {
		SetDailyCoaching(ctx context.Context, ownerID, date string, c core.CachedCoaching) error
		GetPeriodCoaching(ctx context.Context, ownerID, periodKey string) (core.CachedCoaching, error)
		SetPeriodCoaching(ctx context.Context, ownerID, periodKey string, periodDays int, c core.CachedCoaching) error
	}

	// Limiter admits or rejects a request for a key.
	Limiter interface {
		Allow(key string) bool
	}
)

// Coach produces cached coaching cards for days and periods.
type Coach struct {
	daily     DailySource
	insights  InsightSource
	store     Store
	completer Completer
	limiter   Limiter
	opts      Options
	group     singleflight.Group
}

func NewCoach(daily DailySource, insights InsightSource, store Store, completer Completer, limiter Limiter, opts Options) *Coach {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coach{
		daily:     daily,
		insights:  insights,
		store:     store,
		completer: completer,
		limiter:   limiter,
		opts:      opts,
	}
}

// PeriodKey names the stored period document for a trailing window.
func PeriodKey(days int) string {
	return fmt.Sprintf("last-%dd", days)
}

// EnsureDaily returns the day's cached card, generating one when none of the
// current version exists. A nil payload means the day has nothing to coach on.
func (c *Coach) EnsureDaily(ctx context.Context, ownerID, date string) (*core.CoachingPayload, error) {
	return c.dailyCard(ctx, ownerID, date, false)
}

// GenerateDaily always asks the completer for a fresh daily card.
func (c *Coach) GenerateDaily(ctx context.Context, ownerID, date string) (*core.CoachingPayload, error) {
	return c.dailyCard(ctx, ownerID, date, true)
}

// EnsurePeriod returns today's cached card for the trailing window, or
// generates one. A nil payload means the window has no data.
func (c *Coach) EnsurePeriod(ctx context.Context, ownerID string, days int, end time.Time) (*core.CoachingPayload, error) {
	return c.periodCard(ctx, ownerID, days, end, false)
}

// GeneratePeriod always asks the completer for a fresh period card.
func (c *Coach) GeneratePeriod(ctx context.Context, ownerID string, days int, end time.Time) (*core.CoachingPayload, error) {
	return c.periodCard(ctx, ownerID, days, end, true)
}

func (c *Coach) dailyCard(ctx context.Context, ownerID, date string, force bool) (*core.CoachingPayload, error) {
	key := fmt.Sprintf("daily:%s:%s:%t", ownerID, date, force)
	return c.shared(ctx, key, func(ctx context.Context) (*core.CoachingPayload, error) {
		return c.runDaily(ctx, ownerID, date, force)
	})
}

func (c *Coach) runDaily(ctx context.Context, ownerID, date string, force bool) (*core.CoachingPayload, error) {
	summary, err := c.daily.UpdateForDate(ctx, ownerID, date)
	if err != nil {
		return nil, err
	}
	if !force && summary.AI != nil && summary.AIVersion != nil && *summary.AIVersion == core.DailyAIVersion {
		return summary.AI, nil
	}
	if summary.StressCount == 0 && summary.DailyExpense == 0 {
		return nil, nil
	}

	end, err := core.ParseDateKey(date, c.opts.Now().Location())
	if err != nil {
		return nil, err
	}
	window, err := c.insights.StressSpend(ctx, ownerID, ContextDays, end, date)
	if err != nil {
		return nil, fmt.Errorf("load coaching context: %w", err)
	}
	messages := BuildDailyPrompt(summary, DailyContext{
		AvgExpense14:  window.AvgExpense,
		SpendSpike:    window.SpendSpike,
		TopCategories: CategoryNames(summary.TopCategories),
	})

	payload, err := c.generate(ctx, ownerID, messages)
	if err != nil {
		slog.WarnContext(ctx, "Daily coaching not generated",
			log.FieldOwnerID, ownerID, log.FieldDate, date, log.FieldError, err)
		return nil, err
	}
	cached, err := EncodeCached(payload, core.DailyAIVersion)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetDailyCoaching(ctx, ownerID, date, cached); err != nil {
		return nil, fmt.Errorf("store daily coaching: %w", err)
	}

	slog.InfoContext(ctx, "Daily coaching generated",
		log.FieldOwnerID, ownerID, log.FieldDate, date, log.FieldModel, payload.Model)
	return &payload, nil
}

func (c *Coach) periodCard(ctx context.Context, ownerID string, days int, end time.Time, force bool) (*core.CoachingPayload, error) {
	key := fmt.Sprintf("period:%s:%d:%s:%t", ownerID, days, core.DateKey(end), force)
	return c.shared(ctx, key, func(ctx context.Context) (*core.CoachingPayload, error) {
		return c.runPeriod(ctx, ownerID, days, end, force)
	})
}

// shared runs fn once per key across concurrent callers. The work runs on a
// context detached from any single caller, so one caller going away does not
// fail the others; each caller still returns when its own ctx is done.
func (c *Coach) shared(ctx context.Context, key string, fn func(context.Context) (*core.CoachingPayload, error)) (*core.CoachingPayload, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedTimeout)
		defer cancel()
		return fn(runCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*core.CoachingPayload), nil
	}
}

func (c *Coach) runPeriod(ctx context.Context, ownerID string, days int, end time.Time, force bool) (*core.CoachingPayload, error) {
	periodKey := PeriodKey(days)

	if !force {
		cached, err := c.cachedPeriod(ctx, ownerID, periodKey, end)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
	}

	in, err := c.insights.StressSpend(ctx, ownerID, days, end, "")
	if err != nil {
		return nil, fmt.Errorf("load period insight: %w", err)
	}
	if !in.HasData() {
		return nil, nil
	}

	payload, err := c.generate(ctx, ownerID, BuildPeriodPrompt(in))
	if err != nil {
		slog.WarnContext(ctx, "Period coaching not generated",
			log.FieldOwnerID, ownerID, log.FieldPeriodKey, periodKey, log.FieldError, err)
		return nil, err
	}
	cached, err := EncodeCached(payload, core.PeriodAIVersion)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetPeriodCoaching(ctx, ownerID, periodKey, in.PeriodDays, cached); err != nil {
		return nil, fmt.Errorf("store period coaching: %w", err)
	}

	slog.InfoContext(ctx, "Period coaching generated",
		log.FieldOwnerID, ownerID, log.FieldPeriodKey, periodKey, log.FieldModel, payload.Model)
	return &payload, nil
}

// cachedPeriod returns a stored card of the current version generated on
// end's calendar day. Stale, foreign or invalid cards are ignored.
func (c *Coach) cachedPeriod(ctx context.Context, ownerID, periodKey string, end time.Time) (*core.CoachingPayload, error) {
	stored, err := c.store.GetPeriodCoaching(ctx, ownerID, periodKey)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if stored.Version != core.PeriodAIVersion {
		return nil, nil
	}
	payload, err := NormalizeCached(stored, c.opts)
	if err != nil {
		slog.DebugContext(ctx, "Ignoring stored period coaching",
			log.FieldOwnerID, ownerID, log.FieldPeriodKey, periodKey, log.FieldError, err)
		return nil, nil
	}
	generated, err := time.Parse(time.RFC3339, payload.GeneratedAt)
	if err != nil || core.DateKey(generated.In(end.Location())) != core.DateKey(end) {
		return nil, nil
	}
	return payload, nil
}

// generate runs one completion and normalizes it. Model and time are stamped
// from this process, not taken from the response.
func (c *Coach) generate(ctx context.Context, ownerID string, messages []Message) (core.CoachingPayload, error) {
	if c.limiter != nil && !c.limiter.Allow(ownerID) {
		return core.CoachingPayload{}, ErrRateLimited
	}
	content, err := c.completer.Complete(ctx, messages)
	if err != nil {
		return core.CoachingPayload{}, err
	}
	value, err := ExtractJSON(content)
	if err != nil {
		return core.CoachingPayload{}, err
	}
	payload, err := NormalizeCoachingPayload(value, c.opts)
	if err != nil {
		return core.CoachingPayload{}, err
	}
	payload.Model = c.opts.Model
	payload.GeneratedAt = c.opts.Now().UTC().Format(time.RFC3339)
	return payload, nil
}
