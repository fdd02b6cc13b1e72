// Package report builds emission reports from consumption summaries, renders
// them as text, JSON or XLSX, and keeps the schedules that deliver them.
package report

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

var (
	// ErrInvalidSchedule is returned when a schedule fails validation.
	ErrInvalidSchedule = errors.New("invalid report schedule")

	// ErrScheduleNotFound is returned when a schedule does not exist.
	ErrScheduleNotFound = errors.New("report schedule not found")
)

// Frequency is how often a schedule runs.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// Format is a report rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	switch f {
	case FormatText, FormatJSON, FormatXLSX:
		return true
	}
	return false
}

// ContentType returns the MIME type of a rendered report.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/plain; charset=utf-8"
}

// Ext returns the file extension of a rendered report.
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatXLSX:
		return ".xlsx"
	}
	return ".txt"
}

// Recipient receives scheduled reports.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Schedule delivers a report for one entity (or all entities when EntityID is
// empty) at a fixed frequency.
type Schedule struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	EntityID   string      `json:"entityId,omitempty"`
	Frequency  Frequency   `json:"frequency"`
	Format     Format      `json:"format"`
	Recipients []Recipient `json:"recipients"`
	Enabled    bool        `json:"enabled"`
	LastRunAt  time.Time   `json:"lastRunAt"`
	NextRunAt  time.Time   `json:"nextRunAt"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// ValidateSchedule checks that s has a name, a known frequency and format,
// and at least one recipient, with every email parseable and unique.
func ValidateSchedule(s Schedule) error {
	var problems []string
	if strings.TrimSpace(s.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !s.Frequency.Valid() {
		problems = append(problems, fmt.Sprintf("unknown frequency %q", s.Frequency))
	}
	if !s.Format.Valid() {
		problems = append(problems, fmt.Sprintf("unknown format %q", s.Format))
	}
	if len(s.Recipients) == 0 {
		problems = append(problems, "at least one recipient is required")
	}

	seen := make(map[string]bool, len(s.Recipients))
	for i, r := range s.Recipients {
		addr, err := mail.ParseAddress(r.Email)
		if err != nil {
			problems = append(problems, fmt.Sprintf("recipients[%d]: invalid email %q", i, r.Email))
			continue
		}
		key := strings.ToLower(addr.Address)
		if seen[key] {
			problems = append(problems, fmt.Sprintf("recipients[%d]: duplicate email %q", i, r.Email))
		}
		seen[key] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSchedule, strings.Join(problems, "; "))
	}
	return nil
}

// NextRun returns the next run after from: one day, seven days or one
// calendar month later, at midnight UTC. A monthly run from a day the next
// month lacks lands on that month's last day (Jan 31 -> Feb 28).
func NextRun(freq Frequency, from time.Time) time.Time {
	d := midnightUTC(from)
	switch freq {
	case Weekly:
		return d.AddDate(0, 0, 7)
	case Monthly:
		return addMonth(d, 1)
	default:
		return d.AddDate(0, 0, 1)
	}
}

// PreviousPeriod returns the half-open period [from, to) a run at runAt
// reports on: the frequency-length window ending at runAt's midnight UTC.
func PreviousPeriod(freq Frequency, runAt time.Time) (from, to time.Time) {
	to = midnightUTC(runAt)
	switch freq {
	case Weekly:
		return to.AddDate(0, 0, -7), to
	case Monthly:
		return addMonth(to, -1), to
	default:
		return to.AddDate(0, 0, -1), to
	}
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func addMonth(d time.Time, n int) time.Time {
	first := time.Date(d.Year(), d.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d.Day(), last)-1)
}
