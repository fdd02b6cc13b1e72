package carbon

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EquivalencyType enumerates the everyday comparisons shown next to a total.
type EquivalencyType string

const (
	EquivalencyMilesDriven        EquivalencyType = "miles_driven"
	EquivalencySmartphonesCharged EquivalencyType = "smartphones_charged"
	EquivalencyTreeSeedlings      EquivalencyType = "tree_seedlings"
	EquivalencyHomeDays           EquivalencyType = "home_days"
)

// Equivalency expresses an emission total as an everyday activity.
type Equivalency struct {
	Type           EquivalencyType `json:"type"`
	Value          float64         `json:"value"`
	FormattedValue string          `json:"formatted"`
	Label          string          `json:"label"`
}

var equivalencyTable = []struct {
	typ    EquivalencyType
	factor float64
	label  string
}{
	{EquivalencyMilesDriven, EPAMilesDrivenFactor, "miles driven"},
	{EquivalencySmartphonesCharged, EPASmartphoneChargeFactor, "smartphones charged"},
	{EquivalencyTreeSeedlings, EPATreeSeedlingFactor, "tree seedlings grown for 10 years"},
	{EquivalencyHomeDays, EPAHomeDayFactor, "days of home electricity"},
}

// Equivalencies converts kg CO2e into everyday equivalents:
//
//	equivalency = kg / factor
//
// Totals below MinEquivalencyThresholdKg, or non-finite totals, yield nil.
func Equivalencies(kg float64) []Equivalency {
	if math.IsNaN(kg) || math.IsInf(kg, 0) || kg < MinEquivalencyThresholdKg {
		return nil
	}
	out := make([]Equivalency, 0, len(equivalencyTable))
	for _, e := range equivalencyTable {
		v := kg / e.factor
		out = append(out, Equivalency{
			Type:           e.typ,
			Value:          v,
			FormattedValue: FormatLarge(v),
			Label:          e.label,
		})
	}
	return out
}

// DisplayText renders equivalencies as one sentence, or "" when empty.
func DisplayText(eqs []Equivalency) string {
	if len(eqs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(eqs))
	for _, e := range eqs {
		parts = append(parts, fmt.Sprintf("~%s %s", e.FormattedValue, e.Label))
	}
	return "Equivalent to " + strings.Join(parts, ", ")
}

// FormatNumber formats n with thousands separators, e.g. 18248 -> "18,248".
func FormatNumber(n int64) string {
	neg := n < 0
	u := uint64(n)
	if neg {
		u = -u // two's complement, so math.MinInt64 survives
	}
	s := strconv.FormatUint(u, 10)
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// FormatLarge rounds v for display, abbreviating millions and billions.
func FormatLarge(v float64) string {
	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.1f billion", v/1_000_000_000)
	case v >= LargeNumberThreshold:
		return fmt.Sprintf("%.1f million", v/1_000_000)
	}
	return FormatNumber(int64(math.Round(v)))
}
