package report

import (
	"time"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/consumption"
)

// Report is a rendered-ready emissions report for one period.
type Report struct {
	Title         string               `json:"title"`
	EntityID      string               `json:"entityId,omitempty"`
	From          time.Time            `json:"from"`
	To            time.Time            `json:"to"`
	GeneratedAt   time.Time            `json:"generatedAt"`
	Summary       consumption.Summary  `json:"summary"`
	Units         map[string]string    `json:"units"`
	Equivalencies []carbon.Equivalency `json:"equivalencies,omitempty"`
}

// Period bounds a report. To is exclusive; zero bounds are open.
type Period struct {
	EntityID string
	From     time.Time
	To       time.Time
}

// Build wraps a summary into a report. Units are taken from the factor table
// the summary was calculated with.
func Build(title string, summary consumption.Summary, period Period, table *carbon.FactorTable, now time.Time) Report {
	if title == "" {
		title = "Emissions report"
	}
	units := make(map[string]string, len(carbon.Categories))
	for _, c := range carbon.Categories {
		units[string(c)] = table.Factor(c).Unit
	}
	return Report{
		Title:         title,
		EntityID:      period.EntityID,
		From:          period.From,
		To:            period.To,
		GeneratedAt:   now.UTC(),
		Summary:       summary,
		Units:         units,
		Equivalencies: carbon.Equivalencies(summary.Scopes.Total),
	}
}

// PeriodLabel describes the report period with an inclusive end date.
func (r Report) PeriodLabel() string {
	from, to := r.From, r.To
	if from.IsZero() {
		from = r.Summary.From
	}
	if to.IsZero() {
		to = r.Summary.To
	} else {
		to = to.AddDate(0, 0, -1)
	}
	if from.IsZero() && to.IsZero() {
		return "all time"
	}
	return from.UTC().Format(time.DateOnly) + " to " + to.UTC().Format(time.DateOnly)
}

// EntityLabel names the reported entity.
func (r Report) EntityLabel() string {
	if r.EntityID == "" {
		return "all entities"
	}
	return r.EntityID
}
