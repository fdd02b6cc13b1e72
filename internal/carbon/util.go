package carbon

import (
	"fmt"
	"math"
)

// FormatKg formats a kg CO2e value for display.
// Whole numbers are printed without decimals; everything else with two.
func FormatKg(kg float64) string {
	if math.IsNaN(kg) || math.IsInf(kg, 0) {
		return fmt.Sprintf("%v", kg)
	}
	if kg == math.Trunc(kg) && math.Abs(kg) < 1e15 {
		return fmt.Sprintf("%d", int64(kg))
	}
	return fmt.Sprintf("%.2f", kg)
}

// Tonnes converts kg to metric tonnes.
func Tonnes(kg float64) float64 {
	return kg / KgPerTonne
}
