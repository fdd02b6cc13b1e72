package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSchedule() Schedule {
	return Schedule{
		Name:      "Monthly board pack",
		EntityID:  "plant-a",
		Frequency: Monthly,
		Format:    FormatXLSX,
		Recipients: []Recipient{
			{Name: "Ops", Email: "ops@example.com"},
			{Name: "CFO", Email: "Jane Doe <cfo@example.com>"},
		},
		Enabled: true,
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Schedule)
		wantErr string
	}{
		{name: "valid", mutate: func(*Schedule) {}},
		{name: "no name", mutate: func(s *Schedule) { s.Name = " " }, wantErr: "name is required"},
		{name: "bad frequency", mutate: func(s *Schedule) { s.Frequency = "hourly" }, wantErr: `unknown frequency "hourly"`},
		{name: "bad format", mutate: func(s *Schedule) { s.Format = "pdf" }, wantErr: `unknown format "pdf"`},
		{name: "no recipients", mutate: func(s *Schedule) { s.Recipients = nil }, wantErr: "at least one recipient"},
		{
			name:    "invalid email",
			mutate:  func(s *Schedule) { s.Recipients[0].Email = "not-an-address" },
			wantErr: `recipients[0]: invalid email "not-an-address"`,
		},
		{
			name:    "duplicate email ignores case",
			mutate:  func(s *Schedule) { s.Recipients[1].Email = "OPS@example.com" },
			wantErr: "recipients[1]: duplicate email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchedule()
			tt.mutate(&s)
			err := ValidateSchedule(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidSchedule)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 1, 31, 17, 45, 0, 0, time.UTC)

	tests := []struct {
		freq Frequency
		want time.Time
	}{
		{Daily, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{Weekly, time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC)},
		{Monthly, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			assert.Equal(t, tt.want, NextRun(tt.freq, from))
		})
	}

	// 00:30 CET is still the previous day in UTC.
	local := time.Date(2026, 3, 1, 0, 30, 0, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), NextRun(Daily, local))

	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
		NextRun(Monthly, time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)))
}

func TestPreviousPeriod(t *testing.T) {
	runAt := time.Date(2026, 3, 31, 0, 5, 0, 0, time.UTC)

	from, to := PreviousPeriod(Daily, runAt)
	assert.Equal(t, time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), to)

	from, _ = PreviousPeriod(Weekly, runAt)
	assert.Equal(t, time.Date(2026, 3, 24, 0, 0, 0, 0, time.UTC), from)

	from, _ = PreviousPeriod(Monthly, runAt)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), from)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, ".xlsx", FormatXLSX.Ext())
	assert.Equal(t, "application/json", FormatJSON.ContentType())
	assert.Equal(t, ".txt", FormatText.Ext())
	assert.False(t, Format("csv").Valid())
	assert.True(t, Weekly.Valid())
}
