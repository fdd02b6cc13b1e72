// Package consumption stores logged consumption records and turns them into
// emission assessments and summaries.
package consumption

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("consumption record not found")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("invalid consumption record")
)

// Record is one period of logged consumption for an entity (a site, plant or
// business unit).
type Record struct {
	ID          string                 `json:"id"`
	EntityID    string                 `json:"entityId"`
	PeriodStart time.Time              `json:"periodStart"`
	PeriodEnd   time.Time              `json:"periodEnd"`
	Data        carbon.EmissionData    `json:"data"`
	Activities  []carbon.ActivityEntry `json:"activities,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	EntityID string
	// From and To bound PeriodStart to [From, To).
	From  time.Time
	To    time.Time
	Limit int
}

// Normalize truncates From and To to midnight UTC, the granularity stores
// compare period starts at.
func (f Filter) Normalize() Filter {
	f.From = normalizePeriod(f.From)
	f.To = normalizePeriod(f.To)
	return f
}

// Matches reports whether r passes the filter, ignoring Limit.
func (f Filter) Matches(r Record) bool {
	if f.EntityID != "" && r.EntityID != f.EntityID {
		return false
	}
	if !f.From.IsZero() && r.PeriodStart.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.PeriodStart.Before(f.To) {
		return false
	}
	return true
}

// FieldError names one field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every failing field of a record.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidRecord, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRecord
}

// Validate applies the form-boundary schema: an entity is required, every
// quantity must be finite and non-negative, the period must not end before it
// starts, and activities must reference a known type.
func Validate(r Record, table *carbon.FactorTable) error {
	var v ValidationError
	add := func(field, msg string) {
		v.Fields = append(v.Fields, FieldError{Field: field, Message: msg})
	}

	if strings.TrimSpace(r.EntityID) == "" {
		add("entityId", "is required")
	}
	if r.PeriodStart.IsZero() {
		add("periodStart", "is required")
	}
	if r.PeriodEnd.IsZero() {
		add("periodEnd", "is required")
	}
	if !r.PeriodStart.IsZero() && !r.PeriodEnd.IsZero() && r.PeriodEnd.Before(r.PeriodStart) {
		add("periodEnd", "is before periodStart")
	}

	for _, c := range carbon.Categories {
		if msg := checkQuantity(r.Data.Quantity(c)); msg != "" {
			add("data."+string(c), msg)
		}
	}

	for i, a := range r.Activities {
		field := fmt.Sprintf("activities[%d]", i)
		if _, ok := table.Activity(a.Type); !ok {
			add(field+".type", fmt.Sprintf("unknown activity type %q", a.Type))
		}
		if msg := checkQuantity(a.Quantity); msg != "" {
			add(field+".quantity", msg)
		}
	}

	if len(v.Fields) > 0 {
		return &v
	}
	return nil
}

func checkQuantity(q float64) string {
	switch {
	case math.IsNaN(q) || math.IsInf(q, 0):
		return "must be a finite number"
	case q < 0:
		return "must not be negative"
	}
	return ""
}

// normalizePeriod truncates period bounds to midnight UTC.
func normalizePeriod(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
