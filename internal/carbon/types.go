// Package carbon calculates operational greenhouse-gas emissions from logged
// consumption using a static table of per-unit emission factors.
package carbon

// Category identifies one of the four tracked consumption categories.
type Category string

const (
	// CategoryElectricity is purchased electricity in kWh.
	CategoryElectricity Category = "electricity"

	// CategoryFuel is combusted fuel in liters.
	CategoryFuel Category = "fuel"

	// CategoryWaste is generated waste in kg.
	CategoryWaste Category = "waste"

	// CategoryWater is consumed water in liters.
	CategoryWater Category = "water"
)

// Categories lists the tracked categories in summation order.
var Categories = []Category{
	CategoryElectricity,
	CategoryFuel,
	CategoryWaste,
	CategoryWater,
}

// Valid reports whether c is one of the four tracked categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryElectricity, CategoryFuel, CategoryWaste, CategoryWater:
		return true
	}
	return false
}

// EmissionFactor converts a quantity of consumption into kg CO2e.
type EmissionFactor struct {
	// Category is the consumption category this factor applies to.
	Category Category `json:"category" yaml:"category"`

	// Unit is the unit the consumption quantity is measured in (e.g., "kWh").
	Unit string `json:"unit" yaml:"unit"`

	// Factor is the multiplier in kg CO2e per Unit.
	Factor float64 `json:"factor" yaml:"factor"`
}

// EmissionData is the consumption input for one calculation.
// Quantities are expected to be finite and non-negative but are not checked here.
type EmissionData struct {
	// Electricity is consumed electricity in kWh.
	Electricity float64 `json:"electricity" yaml:"electricity"`

	// Fuel is consumed fuel in liters.
	Fuel float64 `json:"fuel" yaml:"fuel"`

	// Waste is generated waste in kg.
	Waste float64 `json:"waste" yaml:"waste"`

	// Water is consumed water in liters.
	Water float64 `json:"water" yaml:"water"`
}

// Quantity returns the input quantity for the given category.
func (d EmissionData) Quantity(c Category) float64 {
	switch c {
	case CategoryElectricity:
		return d.Electricity
	case CategoryFuel:
		return d.Fuel
	case CategoryWaste:
		return d.Waste
	case CategoryWater:
		return d.Water
	}
	return 0
}

// Add returns the element-wise sum of d and other.
func (d EmissionData) Add(other EmissionData) EmissionData {
	return EmissionData{
		Electricity: d.Electricity + other.Electricity,
		Fuel:        d.Fuel + other.Fuel,
		Waste:       d.Waste + other.Waste,
		Water:       d.Water + other.Water,
	}
}

// EmissionResult holds per-category and total emissions in kg CO2e.
type EmissionResult struct {
	ElectricityEmissions float64 `json:"electricityEmissions"`
	FuelEmissions        float64 `json:"fuelEmissions"`
	WasteEmissions       float64 `json:"wasteEmissions"`
	WaterEmissions       float64 `json:"waterEmissions"`

	// TotalEmissions is the sum of the four category emissions.
	TotalEmissions float64 `json:"totalEmissions"`
}

// Emissions returns the emissions for the given category.
func (r EmissionResult) Emissions(c Category) float64 {
	switch c {
	case CategoryElectricity:
		return r.ElectricityEmissions
	case CategoryFuel:
		return r.FuelEmissions
	case CategoryWaste:
		return r.WasteEmissions
	case CategoryWater:
		return r.WaterEmissions
	}
	return 0
}
