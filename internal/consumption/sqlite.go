package consumption

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
)

// SQLiteStore keeps records in the local database opened by package storage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Driver() string { return "sqlite" }

const recordColumns = `id, entity_id, period_start, period_end, electricity, fuel, waste, water,
	activities, notes, created_at, updated_at`

// Create inserts a new record.
func (s *SQLiteStore) Create(ctx context.Context, r Record) error {
	activities, err := json.Marshal(activitiesOrEmpty(r.Activities))
	if err != nil {
		return fmt.Errorf("encode activities: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO consumption_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EntityID, formatDate(r.PeriodStart), formatDate(r.PeriodEnd),
		r.Data.Electricity, r.Data.Fuel, r.Data.Waste, r.Data.Water,
		string(activities), r.Notes, formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert record %s: %w", r.ID, err)
	}
	return nil
}

// Get loads one record by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM consumption_records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return r, nil
}

// List returns matching records ordered by period start, then id.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Record, error) {
	var where []string
	var args []any
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if !f.From.IsZero() {
		where = append(where, "period_start >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "period_start < ?")
		args = append(args, formatDate(f.To))
	}

	query := `SELECT ` + recordColumns + ` FROM consumption_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period_start, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Update replaces every mutable field of an existing record.
func (s *SQLiteStore) Update(ctx context.Context, r Record) error {
	activities, err := json.Marshal(activitiesOrEmpty(r.Activities))
	if err != nil {
		return fmt.Errorf("encode activities: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE consumption_records SET entity_id = ?, period_start = ?, period_end = ?,
			electricity = ?, fuel = ?, waste = ?, water = ?, activities = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		r.EntityID, formatDate(r.PeriodStart), formatDate(r.PeriodEnd),
		r.Data.Electricity, r.Data.Fuel, r.Data.Waste, r.Data.Water,
		string(activities), r.Notes, formatTime(r.UpdatedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update record %s: %w", r.ID, err)
	}
	return requireAffected(res, r.ID)
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM consumption_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var start, end, activities, created, updated string
	err := row.Scan(&r.ID, &r.EntityID, &start, &end,
		&r.Data.Electricity, &r.Data.Fuel, &r.Data.Waste, &r.Data.Water,
		&activities, &r.Notes, &created, &updated)
	if err != nil {
		return Record{}, err
	}
	if r.PeriodStart, err = time.Parse(time.DateOnly, start); err != nil {
		return Record{}, fmt.Errorf("parse period_start: %w", err)
	}
	if r.PeriodEnd, err = time.Parse(time.DateOnly, end); err != nil {
		return Record{}, fmt.Errorf("parse period_end: %w", err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Record{}, fmt.Errorf("parse updated_at: %w", err)
	}
	var entries []carbon.ActivityEntry
	if err := json.Unmarshal([]byte(activities), &entries); err != nil {
		return Record{}, fmt.Errorf("decode activities: %w", err)
	}
	if len(entries) > 0 {
		r.Activities = entries
	}
	return r, nil
}

func activitiesOrEmpty(a []carbon.ActivityEntry) []carbon.ActivityEntry {
	if a == nil {
		return []carbon.ActivityEntry{}
	}
	return a
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
