package consumption

import (
	"slices"
	"time"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
)

// MonthKeyLayout formats the Month key of a MonthTotal.
const MonthKeyLayout = "2006-01"

// Summary aggregates a set of records.
type Summary struct {
	Records     int                       `json:"records"`
	Entities    []string                  `json:"entities"`
	From        time.Time                 `json:"from"`
	To          time.Time                 `json:"to"`
	Consumption carbon.EmissionData       `json:"consumption"`
	Emissions   carbon.EmissionResult     `json:"emissions"`
	Activities  []carbon.ActivityEmission `json:"activities"`
	Scopes      carbon.ScopeTotals        `json:"scopes"`
	Monthly     []MonthTotal              `json:"monthly"`
}

// MonthTotal is the aggregate of records whose period starts in Month.
type MonthTotal struct {
	Month       string                `json:"month"`
	Consumption carbon.EmissionData   `json:"consumption"`
	Emissions   carbon.EmissionResult `json:"emissions"`
	Scopes      carbon.ScopeTotals    `json:"scopes"`
}

// Summarize totals records per category, per scope and per month.
//
// Category emissions are calculated from the summed consumption, so the total
// matches a single calculation over the same aggregate input. Activity entries
// are summed per type and their emissions are added to the scope totals.
func Summarize(records []Record, table *carbon.FactorTable) (Summary, error) {
	s := Summary{Records: len(records), Entities: []string{}, Monthly: []MonthTotal{}}

	months := map[string]*monthAcc{}
	activityQty := map[string]float64{}
	entities := map[string]struct{}{}
	var activityScopes carbon.ScopeTotals

	for _, r := range records {
		s.Consumption = s.Consumption.Add(r.Data)
		entities[r.EntityID] = struct{}{}
		if s.From.IsZero() || r.PeriodStart.Before(s.From) {
			s.From = r.PeriodStart
		}
		if r.PeriodEnd.After(s.To) {
			s.To = r.PeriodEnd
		}

		key := r.PeriodStart.UTC().Format(MonthKeyLayout)
		m, ok := months[key]
		if !ok {
			m = &monthAcc{}
			months[key] = m
		}
		m.data = m.data.Add(r.Data)

		act, err := carbon.CalculateActivities(r.Activities, table)
		if err != nil {
			return Summary{}, err
		}
		for _, e := range act.Entries {
			activityQty[e.Type] += e.Quantity
		}
		m.activityScopes = m.activityScopes.Merge(act.Scopes)
		activityScopes = activityScopes.Merge(act.Scopes)
	}

	s.Emissions = carbon.Calculate(s.Consumption, table)
	s.Scopes = carbon.ScopeBreakdown(s.Emissions).Merge(activityScopes)

	for e := range entities {
		s.Entities = append(s.Entities, e)
	}
	slices.Sort(s.Entities)

	s.Activities = []carbon.ActivityEmission{}
	for _, name := range sortedKeys(activityQty) {
		at, _ := table.Activity(name)
		s.Activities = append(s.Activities, carbon.ActivityEmission{
			Type:      name,
			Quantity:  activityQty[name],
			Unit:      at.Unit,
			Scope:     at.Scope,
			Emissions: activityQty[name] * at.Factor,
		})
	}

	for _, key := range sortedKeys(months) {
		m := months[key]
		result := carbon.Calculate(m.data, table)
		s.Monthly = append(s.Monthly, MonthTotal{
			Month:       key,
			Consumption: m.data,
			Emissions:   result,
			Scopes:      carbon.ScopeBreakdown(result).Merge(m.activityScopes),
		})
	}
	return s, nil
}

type monthAcc struct {
	data           carbon.EmissionData
	activityScopes carbon.ScopeTotals
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
