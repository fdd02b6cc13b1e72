package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Delivery is one attempt to send a scheduled report.
type Delivery struct {
	ID         string    `json:"id"`
	ScheduleID string    `json:"scheduleId"`
	SentAt     time.Time `json:"sentAt"`
	Recipients int       `json:"recipients"`
	Error      string    `json:"error,omitempty"`
}

// ScheduleStore keeps report schedules and their delivery history in the
// local database opened by package storage.
type ScheduleStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewScheduleStore wraps an already-migrated database.
func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db, now: time.Now}
}

const scheduleColumns = `id, name, entity_id, frequency, format, recipients, enabled,
	last_run_at, next_run_at, created_at, updated_at`

// Create validates s, assigns an ID and timestamps, and stores it. A zero
// NextRunAt is set to the first run after now.
func (st *ScheduleStore) Create(ctx context.Context, s Schedule) (Schedule, error) {
	if err := ValidateSchedule(s); err != nil {
		return Schedule{}, err
	}
	now := st.now().UTC()
	s.ID = uuid.New().String()
	s.CreatedAt = now
	s.UpdatedAt = now
	s.LastRunAt = time.Time{}
	if s.NextRunAt.IsZero() {
		s.NextRunAt = NextRun(s.Frequency, now)
	}

	recipients, err := json.Marshal(s.Recipients)
	if err != nil {
		return Schedule{}, fmt.Errorf("encode recipients: %w", err)
	}
	_, err = st.db.ExecContext(ctx,
		`INSERT INTO report_schedules (`+scheduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.EntityID, string(s.Frequency), string(s.Format), string(recipients), boolInt(s.Enabled),
		formatOptionalTime(s.LastRunAt), formatTime(s.NextRunAt), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return Schedule{}, fmt.Errorf("insert schedule: %w", err)
	}
	return s, nil
}

// Get loads a schedule by id.
func (st *ScheduleStore) Get(ctx context.Context, id string) (Schedule, error) {
	row := st.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM report_schedules WHERE id = ?`, id)
	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Schedule{}, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	if err != nil {
		return Schedule{}, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return s, nil
}

// List returns every schedule ordered by name.
func (st *ScheduleStore) List(ctx context.Context) ([]Schedule, error) {
	return st.query(ctx, `SELECT `+scheduleColumns+` FROM report_schedules ORDER BY name, id`)
}

// Due returns enabled schedules whose next run is at or before now, oldest
// first.
func (st *ScheduleStore) Due(ctx context.Context, now time.Time) ([]Schedule, error) {
	return st.query(ctx,
		`SELECT `+scheduleColumns+` FROM report_schedules
		WHERE enabled = 1 AND next_run_at <= ? ORDER BY next_run_at, id`,
		formatTime(now))
}

// Update replaces the editable fields of schedule s.ID. Changing the
// frequency reschedules the next run from now.
func (st *ScheduleStore) Update(ctx context.Context, s Schedule) (Schedule, error) {
	existing, err := st.Get(ctx, s.ID)
	if err != nil {
		return Schedule{}, err
	}
	if err := ValidateSchedule(s); err != nil {
		return Schedule{}, err
	}

	now := st.now().UTC()
	s.CreatedAt = existing.CreatedAt
	s.LastRunAt = existing.LastRunAt
	s.UpdatedAt = now
	switch {
	case s.Frequency != existing.Frequency:
		s.NextRunAt = NextRun(s.Frequency, now)
	case s.NextRunAt.IsZero():
		s.NextRunAt = existing.NextRunAt
	}

	recipients, err := json.Marshal(s.Recipients)
	if err != nil {
		return Schedule{}, fmt.Errorf("encode recipients: %w", err)
	}
	_, err = st.db.ExecContext(ctx,
		`UPDATE report_schedules SET name = ?, entity_id = ?, frequency = ?, format = ?, recipients = ?,
			enabled = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?`,
		s.Name, s.EntityID, string(s.Frequency), string(s.Format), string(recipients),
		boolInt(s.Enabled), formatTime(s.NextRunAt), formatTime(s.UpdatedAt), s.ID)
	if err != nil {
		return Schedule{}, fmt.Errorf("update schedule %s: %w", s.ID, err)
	}
	return s, nil
}

// Delete removes a schedule and its delivery history.
func (st *ScheduleStore) Delete(ctx context.Context, id string) error {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM report_schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM report_deliveries WHERE schedule_id = ?`, id); err != nil {
		return fmt.Errorf("delete deliveries of %s: %w", id, err)
	}
	return tx.Commit()
}

// MarkRun records a run at ranAt and advances the schedule to its next run.
func (st *ScheduleStore) MarkRun(ctx context.Context, id string, ranAt time.Time) (Schedule, error) {
	s, err := st.Get(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	s.LastRunAt = ranAt.UTC()
	s.NextRunAt = NextRun(s.Frequency, ranAt)
	s.UpdatedAt = st.now().UTC()

	_, err = st.db.ExecContext(ctx,
		`UPDATE report_schedules SET last_run_at = ?, next_run_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(s.LastRunAt), formatTime(s.NextRunAt), formatTime(s.UpdatedAt), id)
	if err != nil {
		return Schedule{}, fmt.Errorf("mark schedule %s run: %w", id, err)
	}
	return s, nil
}

// RecordDelivery appends to a schedule's delivery history.
func (st *ScheduleStore) RecordDelivery(ctx context.Context, d Delivery) (Delivery, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.SentAt.IsZero() {
		d.SentAt = st.now()
	}
	d.SentAt = d.SentAt.UTC()
	_, err := st.db.ExecContext(ctx,
		`INSERT INTO report_deliveries (id, schedule_id, sent_at, recipients, error) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.ScheduleID, formatTime(d.SentAt), d.Recipients, d.Error)
	if err != nil {
		return Delivery{}, fmt.Errorf("insert delivery: %w", err)
	}
	return d, nil
}

// Deliveries returns a schedule's history, most recent first.
func (st *ScheduleStore) Deliveries(ctx context.Context, scheduleID string, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := st.db.QueryContext(ctx,
		`SELECT id, schedule_id, sent_at, recipients, error FROM report_deliveries
		WHERE schedule_id = ? ORDER BY sent_at DESC, id LIMIT ?`, scheduleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var sent string
		if err := rows.Scan(&d.ID, &d.ScheduleID, &sent, &d.Recipients, &d.Error); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		if d.SentAt, err = time.Parse(timeLayout, sent); err != nil {
			return nil, fmt.Errorf("parse sent_at: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (st *ScheduleStore) query(ctx context.Context, q string, args ...any) ([]Schedule, error) {
	rows, err := st.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (Schedule, error) {
	var s Schedule
	var freq, format, recipients, lastRun, nextRun, created, updated string
	var enabled int
	err := row.Scan(&s.ID, &s.Name, &s.EntityID, &freq, &format, &recipients, &enabled,
		&lastRun, &nextRun, &created, &updated)
	if err != nil {
		return Schedule{}, err
	}
	s.Frequency = Frequency(freq)
	s.Format = Format(format)
	s.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(recipients), &s.Recipients); err != nil {
		return Schedule{}, fmt.Errorf("decode recipients: %w", err)
	}
	if lastRun != "" {
		if s.LastRunAt, err = time.Parse(timeLayout, lastRun); err != nil {
			return Schedule{}, fmt.Errorf("parse last_run_at: %w", err)
		}
	}
	if s.NextRunAt, err = time.Parse(timeLayout, nextRun); err != nil {
		return Schedule{}, fmt.Errorf("parse next_run_at: %w", err)
	}
	if s.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Schedule{}, fmt.Errorf("parse created_at: %w", err)
	}
	if s.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return Schedule{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return s, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout is fixed-width so stored times compare correctly as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatTime(t)
}
