package carbon

import (
	"errors"
	"fmt"
)

// ErrUnknownActivity is returned when an activity entry names a type the
// factor table does not define.
var ErrUnknownActivity = errors.New("unknown activity type")

// ActivityType is a categorized activity beyond the four tracked categories,
// such as natural gas or business travel.
type ActivityType struct {
	Name   string  `json:"name" yaml:"name"`
	Unit   string  `json:"unit" yaml:"unit"`
	Factor float64 `json:"factor" yaml:"factor"`
	Scope  Scope   `json:"scope" yaml:"scope"`
}

// ActivityEntry is a logged quantity of one activity type.
type ActivityEntry struct {
	Type     string  `json:"type"`
	Quantity float64 `json:"quantity"`
}

// ActivityEmission is the calculated emission of one entry.
type ActivityEmission struct {
	Type      string  `json:"type"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	Scope     Scope   `json:"scope"`
	Emissions float64 `json:"emissions"`
}

// ActivityResult holds per-entry emissions and their per-scope sums.
type ActivityResult struct {
	Entries []ActivityEmission `json:"entries"`
	Scopes  ScopeTotals        `json:"scopes"`
}

// CalculateActivities multiplies each entry by its activity factor and sums
// the results by scope. Like Calculate, quantities are not validated.
func CalculateActivities(entries []ActivityEntry, table *FactorTable) (ActivityResult, error) {
	result := ActivityResult{Entries: make([]ActivityEmission, 0, len(entries))}
	for _, e := range entries {
		at, ok := table.Activity(e.Type)
		if !ok {
			return ActivityResult{}, fmt.Errorf("%w: %q", ErrUnknownActivity, e.Type)
		}
		kg := e.Quantity * at.Factor
		result.Entries = append(result.Entries, ActivityEmission{
			Type:      e.Type,
			Quantity:  e.Quantity,
			Unit:      at.Unit,
			Scope:     at.Scope,
			Emissions: kg,
		})
		result.Scopes.Add(at.Scope, kg)
	}
	return result, nil
}
