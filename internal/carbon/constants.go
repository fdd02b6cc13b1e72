package carbon

// Default emission factors in kg CO2e per unit.
// Source: the dashboard's reference fixture (1000 kWh, 500 L, 200 kg, 10000 L -> 1573 kg CO2e).
const (
	// DefaultElectricityFactor is kg CO2e per kWh of grid electricity.
	DefaultElectricityFactor = 0.4

	// DefaultFuelFactor is kg CO2e per liter of combusted fuel.
	DefaultFuelFactor = 2.3

	// DefaultWasteFactor is kg CO2e per kg of generated waste.
	DefaultWasteFactor = 0.1

	// DefaultWaterFactor is kg CO2e per liter of supplied water.
	DefaultWaterFactor = 0.0003
)

// EPA equivalency divisors (2024 edition), kg CO2e per unit of activity.
// Source: https://www.epa.gov/energy/greenhouse-gas-equivalencies-calculator
const (
	// EPAMilesDrivenFactor is kg CO2e per mile in an average passenger vehicle.
	EPAMilesDrivenFactor = 0.393

	// EPASmartphoneChargeFactor is kg CO2e per full smartphone charge.
	EPASmartphoneChargeFactor = 0.00822

	// EPATreeSeedlingFactor is kg CO2e absorbed per tree seedling grown for 10 years.
	EPATreeSeedlingFactor = 60.0

	// EPAHomeDayFactor is kg CO2e per day of average US home electricity use.
	EPAHomeDayFactor = 18.3
)

const (
	// MinEquivalencyThresholdKg is the smallest total for which equivalencies are shown.
	MinEquivalencyThresholdKg = 1.0

	// LargeNumberThreshold switches display formatting to "~X.X million".
	LargeNumberThreshold = 1_000_000

	// KgPerTonne converts metric tonnes to kilograms.
	KgPerTonne = 1000.0
)
