package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mindspend/internal/core"
	"mindspend/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores events, daily summaries and period coaching in one
// SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("SQLite repository ready", log.FieldComponent, log.ComponentStorage, "db_path", dbPath)
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

func storeErr(op string, err error) error {
	return &core.StoreError{Op: op, Err: err}
}

func (r *SQLiteRepository) CreateStressEvent(ctx context.Context, e core.StressEvent) error {
	ts := r.timestamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stress_events (id, owner_id, date, mood, context, memo, score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Date, e.Mood, e.Context, e.Memo, e.Score, ts, ts)
	if err != nil {
		return storeErr("create stress event", err)
	}
	return nil
}

func (r *SQLiteRepository) GetStressEvent(ctx context.Context, ownerID, id string) (core.StressEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, date, mood, context, memo, score
		FROM stress_events WHERE owner_id = ? AND id = ?`, ownerID, id)
	e, err := scanStress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.StressEvent{}, core.ErrNotFound
	}
	if err != nil {
		return core.StressEvent{}, storeErr("get stress event", err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateStressEvent(ctx context.Context, e core.StressEvent) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE stress_events
		SET date = ?, mood = ?, context = ?, memo = ?, score = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`,
		e.Date, e.Mood, e.Context, e.Memo, e.Score, r.timestamp(), e.OwnerID, e.ID)
	return affected(res, err, "update stress event")
}

func (r *SQLiteRepository) DeleteStressEvent(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stress_events WHERE owner_id = ? AND id = ?`, ownerID, id)
	return affected(res, err, "delete stress event")
}

// ListStressEvents returns events with from <= date <= to in insertion order per day.
func (r *SQLiteRepository) ListStressEvents(ctx context.Context, ownerID, from, to string) ([]core.StressEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, date, mood, context, memo, score
		FROM stress_events
		WHERE owner_id = ? AND date BETWEEN ? AND ?
		ORDER BY date, rowid`, ownerID, from, to)
	if err != nil {
		return nil, storeErr("list stress events", err)
	}
	defer rows.Close()

	events := []core.StressEvent{}
	for rows.Next() {
		e, err := scanStress(rows)
		if err != nil {
			return nil, storeErr("scan stress event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list stress events", err)
	}
	return events, nil
}

func (r *SQLiteRepository) CreateFinanceEvent(ctx context.Context, e core.FinanceEvent) error {
	ts := r.timestamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO finance_events (id, owner_id, date, category, type, amount, memo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Date, e.Category, nullType(e.Type), e.Amount, e.Memo, ts, ts)
	if err != nil {
		return storeErr("create finance event", err)
	}
	return nil
}

func (r *SQLiteRepository) GetFinanceEvent(ctx context.Context, ownerID, id string) (core.FinanceEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, date, category, type, amount, memo
		FROM finance_events WHERE owner_id = ? AND id = ?`, ownerID, id)
	e, err := scanFinance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FinanceEvent{}, core.ErrNotFound
	}
	if err != nil {
		return core.FinanceEvent{}, storeErr("get finance event", err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateFinanceEvent(ctx context.Context, e core.FinanceEvent) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE finance_events
		SET date = ?, category = ?, type = ?, amount = ?, memo = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`,
		e.Date, e.Category, nullType(e.Type), e.Amount, e.Memo, r.timestamp(), e.OwnerID, e.ID)
	return affected(res, err, "update finance event")
}

func (r *SQLiteRepository) DeleteFinanceEvent(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM finance_events WHERE owner_id = ? AND id = ?`, ownerID, id)
	return affected(res, err, "delete finance event")
}

func (r *SQLiteRepository) ListFinanceEvents(ctx context.Context, ownerID, from, to string) ([]core.FinanceEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, date, category, type, amount, memo
		FROM finance_events
		WHERE owner_id = ? AND date BETWEEN ? AND ?
		ORDER BY date, rowid`, ownerID, from, to)
	if err != nil {
		return nil, storeErr("list finance events", err)
	}
	defer rows.Close()

	events := []core.FinanceEvent{}
	for rows.Next() {
		e, err := scanFinance(rows)
		if err != nil {
			return nil, storeErr("scan finance event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list finance events", err)
	}
	return events, nil
}

// ListOwners returns every owner that has at least one event.
func (r *SQLiteRepository) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT owner_id FROM stress_events
		UNION
		SELECT owner_id FROM finance_events
		ORDER BY 1`)
	if err != nil {
		return nil, storeErr("list owners", err)
	}
	defer rows.Close()

	owners := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan owner", err)
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list owners", err)
	}
	return owners, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStress(s scanner) (core.StressEvent, error) {
	var e core.StressEvent
	err := s.Scan(&e.ID, &e.OwnerID, &e.Date, &e.Mood, &e.Context, &e.Memo, &e.Score)
	return e, err
}

func scanFinance(s scanner) (core.FinanceEvent, error) {
	var (
		e   core.FinanceEvent
		typ sql.NullString
	)
	if err := s.Scan(&e.ID, &e.OwnerID, &e.Date, &e.Category, &typ, &e.Amount, &e.Memo); err != nil {
		return e, err
	}
	e.Type = core.FinanceType(typ.String)
	return e, nil
}

// nullType keeps legacy untyped rows distinguishable from explicit expenses.
func nullType(t core.FinanceType) sql.NullString {
	return sql.NullString{String: string(t), Valid: t != ""}
}

func affected(res sql.Result, err error, op string) error {
	if err != nil {
		return storeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
