package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"mindspend/internal/core"
)

// UpsertDailySummary merge-writes the derived fields of a summary. The row is
// left untouched, updated_at included, when nothing changed. Cached coaching
// columns are never written here.
func (r *SQLiteRepository) UpsertDailySummary(ctx context.Context, s core.DailySummary) error {
	categories := s.TopCategories
	if categories == nil {
		categories = []core.CategoryAmount{}
	}
	encoded, err := json.Marshal(categories)
	if err != nil {
		return storeErr("encode top categories", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO daily_summaries (
			owner_id, date, stress_score_avg, stress_score_max, stress_count,
			top_mood, top_context, daily_expense, top_categories, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, date) DO UPDATE SET
			stress_score_avg = excluded.stress_score_avg,
			stress_score_max = excluded.stress_score_max,
			stress_count     = excluded.stress_count,
			top_mood         = excluded.top_mood,
			top_context      = excluded.top_context,
			daily_expense    = excluded.daily_expense,
			top_categories   = excluded.top_categories,
			updated_at       = excluded.updated_at
		WHERE daily_summaries.stress_score_avg IS NOT excluded.stress_score_avg
		   OR daily_summaries.stress_score_max IS NOT excluded.stress_score_max
		   OR daily_summaries.stress_count     IS NOT excluded.stress_count
		   OR daily_summaries.top_mood         IS NOT excluded.top_mood
		   OR daily_summaries.top_context      IS NOT excluded.top_context
		   OR daily_summaries.daily_expense    IS NOT excluded.daily_expense
		   OR daily_summaries.top_categories   IS NOT excluded.top_categories`,
		s.OwnerID, s.Date, s.StressScoreAvg, s.StressScoreMax, s.StressCount,
		nullString(s.TopMood), nullString(s.TopContext), s.DailyExpense, string(encoded), r.timestamp())
	if err != nil {
		return storeErr("upsert daily summary", err)
	}
	return nil
}

// GetDailyRecord returns the stored row for one day.
func (r *SQLiteRepository) GetDailyRecord(ctx context.Context, ownerID, date string) (core.DailyRecord, error) {
	var (
		rec        core.DailyRecord
		topMood    sql.NullString
		topContext sql.NullString
		categories string
		ai         sql.NullString
		aiVersion  sql.NullInt64
		updatedAt  string
	)
	s := &rec.Summary
	err := r.db.QueryRowContext(ctx, `
		SELECT owner_id, date, stress_score_avg, stress_score_max, stress_count,
		       top_mood, top_context, daily_expense, top_categories, ai, ai_version, updated_at
		FROM daily_summaries WHERE owner_id = ? AND date = ?`, ownerID, date).
		Scan(&s.OwnerID, &s.Date, &s.StressScoreAvg, &s.StressScoreMax, &s.StressCount,
			&topMood, &topContext, &s.DailyExpense, &categories, &ai, &aiVersion, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, core.ErrNotFound
	}
	if err != nil {
		return rec, storeErr("get daily summary", err)
	}

	s.TopMood = stringPtr(topMood)
	s.TopContext = stringPtr(topContext)
	if err := json.Unmarshal([]byte(categories), &s.TopCategories); err != nil {
		return rec, storeErr("decode top categories", err)
	}
	rec.Coaching = cachedCoaching(ai, aiVersion)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return rec, nil
}

// GetDailyCoaching returns the raw cached coaching of the given days, keyed by date.
// Days without a payload are absent from the map.
func (r *SQLiteRepository) GetDailyCoaching(ctx context.Context, ownerID string, dates []string) (map[string]core.CachedCoaching, error) {
	out := make(map[string]core.CachedCoaching)
	if len(dates) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(dates)+1)
	args = append(args, ownerID)
	for _, d := range dates {
		args = append(args, d)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(dates)), ",")

	rows, err := r.db.QueryContext(ctx, `
		SELECT date, ai, ai_version FROM daily_summaries
		WHERE owner_id = ? AND ai IS NOT NULL AND date IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, storeErr("get daily coaching", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			date      string
			ai        sql.NullString
			aiVersion sql.NullInt64
		)
		if err := rows.Scan(&date, &ai, &aiVersion); err != nil {
			return nil, storeErr("scan daily coaching", err)
		}
		out[date] = cachedCoaching(ai, aiVersion)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("get daily coaching", err)
	}
	return out, nil
}

// SetDailyCoaching merges a coaching payload into the day's row, creating the
// row when the day has not been synced yet.
func (r *SQLiteRepository) SetDailyCoaching(ctx context.Context, ownerID, date string, c core.CachedCoaching) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_summaries (owner_id, date, ai, ai_version, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, date) DO UPDATE SET
			ai         = excluded.ai,
			ai_version = excluded.ai_version,
			updated_at = excluded.updated_at`,
		ownerID, date, string(c.Raw), c.Version, r.timestamp())
	if err != nil {
		return storeErr("set daily coaching", err)
	}
	return nil
}

func (r *SQLiteRepository) GetPeriodCoaching(ctx context.Context, ownerID, periodKey string) (core.CachedCoaching, error) {
	var (
		ai        sql.NullString
		aiVersion sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT ai, ai_version FROM period_summaries
		WHERE owner_id = ? AND period_key = ?`, ownerID, periodKey).Scan(&ai, &aiVersion)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !ai.Valid) {
		return core.CachedCoaching{}, core.ErrNotFound
	}
	if err != nil {
		return core.CachedCoaching{}, storeErr("get period coaching", err)
	}
	return cachedCoaching(ai, aiVersion), nil
}

func (r *SQLiteRepository) SetPeriodCoaching(ctx context.Context, ownerID, periodKey string, periodDays int, c core.CachedCoaching) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO period_summaries (owner_id, period_key, period_days, ai, ai_version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, period_key) DO UPDATE SET
			period_days = excluded.period_days,
			ai          = excluded.ai,
			ai_version  = excluded.ai_version,
			updated_at  = excluded.updated_at`,
		ownerID, periodKey, periodDays, string(c.Raw), c.Version, r.timestamp())
	if err != nil {
		return storeErr("set period coaching", err)
	}
	return nil
}

func cachedCoaching(ai sql.NullString, version sql.NullInt64) core.CachedCoaching {
	if !ai.Valid {
		return core.CachedCoaching{}
	}
	return core.CachedCoaching{Raw: []byte(ai.String), Version: int(version.Int64)}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
