// Package dashboard shapes consumption summaries into chart datasets for the
// prebuilt dashboards.
package dashboard

import (
	"errors"
	"fmt"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/consumption"
)

// ErrUnknownDashboard is returned for a dashboard name that is not prebuilt.
var ErrUnknownDashboard = errors.New("unknown dashboard")

// Prebuilt dashboard names.
const (
	Overview   = "overview"
	Trend      = "trend"
	Categories = "categories"
)

// Names lists the prebuilt dashboards in display order.
func Names() []string {
	return []string{Overview, Trend, Categories}
}

// Chart kinds understood by the front end.
const (
	KindBar      = "bar"
	KindLine     = "line"
	KindDoughnut = "doughnut"
)

// Dataset is one series of a chart, aligned with the chart's labels.
type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// Chart is a labelled set of series.
type Chart struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Kind     string    `json:"kind"`
	Unit     string    `json:"unit"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dashboard is a named collection of charts plus headline totals.
type Dashboard struct {
	Name    string             `json:"name"`
	Title   string             `json:"title"`
	Records int                `json:"records"`
	Totals  carbon.ScopeTotals `json:"totals"`
	Charts  []Chart            `json:"charts"`
}

const unitKg = "kg CO2e"

// Build returns the named dashboard for a summary.
func Build(name string, s consumption.Summary) (Dashboard, error) {
	d := Dashboard{Name: name, Records: s.Records, Totals: s.Scopes}
	switch name {
	case Overview:
		d.Title = "Emissions overview"
		d.Charts = []Chart{scopeChart(s), categoryChart(s)}
	case Trend:
		d.Title = "Monthly emissions trend"
		d.Charts = []Chart{trendChart(s)}
	case Categories:
		d.Title = "Emissions by category per month"
		d.Charts = []Chart{categoryMonthlyChart(s)}
	default:
		return Dashboard{}, fmt.Errorf("%w: %q", ErrUnknownDashboard, name)
	}
	return d, nil
}

func scopeChart(s consumption.Summary) Chart {
	return Chart{
		ID:     "scopes",
		Title:  "Emissions by scope",
		Kind:   KindDoughnut,
		Unit:   unitKg,
		Labels: []string{carbon.Scope1.String(), carbon.Scope2.String(), carbon.Scope3.String()},
		Datasets: []Dataset{{
			Label: "emissions",
			Data:  []float64{s.Scopes.Scope1, s.Scopes.Scope2, s.Scopes.Scope3},
		}},
	}
}

func categoryChart(s consumption.Summary) Chart {
	c := Chart{ID: "categories", Title: "Emissions by category", Kind: KindBar, Unit: unitKg}
	data := make([]float64, 0, len(carbon.Categories)+len(s.Activities))
	for _, cat := range carbon.Categories {
		c.Labels = append(c.Labels, string(cat))
		data = append(data, s.Emissions.Emissions(cat))
	}
	for _, a := range s.Activities {
		c.Labels = append(c.Labels, a.Type)
		data = append(data, a.Emissions)
	}
	c.Datasets = []Dataset{{Label: "emissions", Data: data}}
	return c
}

func trendChart(s consumption.Summary) Chart {
	c := Chart{ID: "trend", Title: "Monthly total", Kind: KindLine, Unit: unitKg, Labels: months(s)}
	total := Dataset{Label: "total", Data: make([]float64, 0, len(s.Monthly))}
	byScope := []Dataset{
		{Label: carbon.Scope1.String()},
		{Label: carbon.Scope2.String()},
		{Label: carbon.Scope3.String()},
	}
	for _, m := range s.Monthly {
		total.Data = append(total.Data, m.Scopes.Total)
		byScope[0].Data = append(byScope[0].Data, m.Scopes.Scope1)
		byScope[1].Data = append(byScope[1].Data, m.Scopes.Scope2)
		byScope[2].Data = append(byScope[2].Data, m.Scopes.Scope3)
	}
	c.Datasets = append([]Dataset{total}, byScope...)
	return c
}

func categoryMonthlyChart(s consumption.Summary) Chart {
	c := Chart{ID: "category-months", Title: "Category emissions per month", Kind: KindBar, Unit: unitKg, Labels: months(s)}
	for _, cat := range carbon.Categories {
		ds := Dataset{Label: string(cat), Data: make([]float64, 0, len(s.Monthly))}
		for _, m := range s.Monthly {
			ds.Data = append(ds.Data, m.Emissions.Emissions(cat))
		}
		c.Datasets = append(c.Datasets, ds)
	}
	return c
}

func months(s consumption.Summary) []string {
	labels := make([]string, 0, len(s.Monthly))
	for _, m := range s.Monthly {
		labels = append(labels, m.Month)
	}
	return labels
}
