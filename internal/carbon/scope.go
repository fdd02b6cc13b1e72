package carbon

import "fmt"

// Scope is a GHG Protocol emissions scope.
type Scope int

const (
	// Scope1 covers direct emissions from owned or controlled sources.
	Scope1 Scope = 1

	// Scope2 covers indirect emissions from purchased energy.
	Scope2 Scope = 2

	// Scope3 covers all other value-chain emissions.
	Scope3 Scope = 3
)

// Valid reports whether s is 1, 2 or 3.
func (s Scope) Valid() bool {
	return s >= Scope1 && s <= Scope3
}

func (s Scope) String() string {
	return fmt.Sprintf("scope%d", int(s))
}

// CategoryScope returns the scope a tracked category reports under.
// Fuel is direct combustion, electricity is purchased energy, and waste and
// water are upstream or downstream value-chain activities.
func CategoryScope(c Category) Scope {
	switch c {
	case CategoryFuel:
		return Scope1
	case CategoryElectricity:
		return Scope2
	default:
		return Scope3
	}
}

// ScopeTotals holds emissions in kg CO2e grouped by scope.
type ScopeTotals struct {
	Scope1 float64 `json:"scope1"`
	Scope2 float64 `json:"scope2"`
	Scope3 float64 `json:"scope3"`
	Total  float64 `json:"total"`
}

// Add accumulates kg into the given scope and the total.
func (s *ScopeTotals) Add(scope Scope, kg float64) {
	switch scope {
	case Scope1:
		s.Scope1 += kg
	case Scope2:
		s.Scope2 += kg
	case Scope3:
		s.Scope3 += kg
	default:
		return
	}
	s.Total += kg
}

// Merge returns the sum of s and other.
func (s ScopeTotals) Merge(other ScopeTotals) ScopeTotals {
	return ScopeTotals{
		Scope1: s.Scope1 + other.Scope1,
		Scope2: s.Scope2 + other.Scope2,
		Scope3: s.Scope3 + other.Scope3,
		Total:  s.Total + other.Total,
	}
}

// Get returns the total for one scope.
func (s ScopeTotals) Get(scope Scope) float64 {
	switch scope {
	case Scope1:
		return s.Scope1
	case Scope2:
		return s.Scope2
	case Scope3:
		return s.Scope3
	}
	return 0
}

// ScopeBreakdown groups a category result by scope. Total is copied from the
// result so it stays identical to EmissionResult.TotalEmissions.
func ScopeBreakdown(r EmissionResult) ScopeTotals {
	var s ScopeTotals
	for _, c := range Categories {
		switch CategoryScope(c) {
		case Scope1:
			s.Scope1 += r.Emissions(c)
		case Scope2:
			s.Scope2 += r.Emissions(c)
		case Scope3:
			s.Scope3 += r.Emissions(c)
		}
	}
	s.Total = r.TotalEmissions
	return s
}
