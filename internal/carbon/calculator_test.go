package carbon

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_Fixture(t *testing.T) {
	table := DefaultFactorTable()

	got := Calculate(EmissionData{
		Electricity: 1000,
		Fuel:        500,
		Waste:       200,
		Water:       10000,
	}, table)

	assert.Equal(t, 400.0, got.ElectricityEmissions)
	assert.Equal(t, 1150.0, got.FuelEmissions)
	assert.Equal(t, 20.0, got.WasteEmissions)
	// 10000 × 0.0003 is 2.9999999999999996 in float64.
	assert.InDelta(t, 3.0, got.WaterEmissions, 1e-12)
	assert.Equal(t, 1573.0, got.TotalEmissions)
}

func TestCalculate_ZeroInput(t *testing.T) {
	got := Calculate(EmissionData{}, DefaultFactorTable())
	assert.Equal(t, EmissionResult{}, got)
}

func TestCalculate_TotalIsSumOfCategories(t *testing.T) {
	table := DefaultFactorTable()
	inputs := []EmissionData{
		{Electricity: 1, Fuel: 1, Waste: 1, Water: 1},
		{Electricity: 12345.678, Fuel: 0.001, Waste: 99, Water: 1e7},
		{Electricity: 0, Fuel: 42, Waste: 0, Water: 0},
		{Electricity: 3.3, Fuel: 7.7, Waste: 1.1, Water: 2.2},
	}

	for _, in := range inputs {
		got := Calculate(in, table)
		assert.Equal(t, in.Electricity*DefaultElectricityFactor, got.ElectricityEmissions)
		assert.Equal(t, in.Fuel*DefaultFuelFactor, got.FuelEmissions)
		assert.Equal(t, in.Waste*DefaultWasteFactor, got.WasteEmissions)
		assert.Equal(t, in.Water*DefaultWaterFactor, got.WaterEmissions)
		assert.Equal(t,
			got.ElectricityEmissions+got.FuelEmissions+got.WasteEmissions+got.WaterEmissions,
			got.TotalEmissions)
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	table := DefaultFactorTable()
	in := EmissionData{Electricity: 123.456, Fuel: 78.9, Waste: 0.5, Water: 333}

	first := Calculate(in, table)
	second := Calculate(in, table)

	assert.Equal(t, math.Float64bits(first.TotalEmissions), math.Float64bits(second.TotalEmissions))
	assert.Equal(t, first, second)
}

func TestCalculate_Linearity(t *testing.T) {
	table := DefaultFactorTable()
	tests := []struct {
		name string
		in   EmissionData
	}{
		{"fixture", EmissionData{Electricity: 1000, Fuel: 500, Waste: 200, Water: 10000}},
		{"fractional", EmissionData{Electricity: 0.1, Fuel: 0.2, Waste: 0.3, Water: 0.4}},
		{"large", EmissionData{Electricity: 1e9, Fuel: 3e6, Waste: 5e5, Water: 7e10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doubled := EmissionData{
				Electricity: 2 * tt.in.Electricity,
				Fuel:        2 * tt.in.Fuel,
				Waste:       2 * tt.in.Waste,
				Water:       2 * tt.in.Water,
			}
			assert.Equal(t,
				2*Calculate(tt.in, table).TotalEmissions,
				Calculate(doubled, table).TotalEmissions)
		})
	}
}

func TestCalculate_PropagatesInvalidInput(t *testing.T) {
	table := DefaultFactorTable()

	neg := Calculate(EmissionData{Electricity: -100}, table)
	assert.Equal(t, -40.0, neg.ElectricityEmissions)
	assert.Equal(t, -40.0, neg.TotalEmissions)

	nan := Calculate(EmissionData{Fuel: math.NaN()}, table)
	assert.True(t, math.IsNaN(nan.FuelEmissions))
	assert.True(t, math.IsNaN(nan.TotalEmissions))
	assert.Equal(t, 0.0, nan.ElectricityEmissions)
}

func TestCalculate_CustomTable(t *testing.T) {
	table, err := NewFactorTable([]EmissionFactor{
		{Category: CategoryElectricity, Unit: "kWh", Factor: 1},
		{Category: CategoryFuel, Unit: "liters", Factor: 2},
		{Category: CategoryWaste, Unit: "kg", Factor: 3},
		{Category: CategoryWater, Unit: "liters", Factor: 4},
	}, nil)
	require.NoError(t, err)

	got := Calculate(EmissionData{Electricity: 1, Fuel: 1, Waste: 1, Water: 1}, table)
	assert.Equal(t, 10.0, got.TotalEmissions)
}

func TestMemo_RecomputesOnlyOnChange(t *testing.T) {
	memo := NewMemo(DefaultFactorTable())
	in := EmissionData{Electricity: 1000, Fuel: 500, Waste: 200, Water: 10000}

	first := memo.Calculate(in)
	second := memo.Calculate(in)
	assert.Equal(t, first, second)

	hits, misses := memo.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)

	in.Water = 0
	third := memo.Calculate(in)
	assert.Equal(t, 1570.0, third.TotalEmissions)

	hits, misses = memo.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestMemo_NaNInputHitsCache(t *testing.T) {
	memo := NewMemo(DefaultFactorTable())
	in := EmissionData{Fuel: math.NaN()}

	memo.Calculate(in)
	memo.Calculate(in)

	hits, misses := memo.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestMemo_MatchesCalculate(t *testing.T) {
	table := DefaultFactorTable()
	memo := NewMemo(table)
	in := EmissionData{Electricity: 7, Fuel: 11, Waste: 13, Water: 17}

	assert.Equal(t, Calculate(in, table), memo.Calculate(in))
	assert.Same(t, table, memo.Table())
}

func TestMemo_ConcurrentUse(t *testing.T) {
	table := DefaultFactorTable()
	memo := NewMemo(table)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := EmissionData{Electricity: float64(i % 3)}
			for j := 0; j < 100; j++ {
				assert.Equal(t, Calculate(in, table), memo.Calculate(in))
			}
		}(i)
	}
	wg.Wait()

	hits, misses := memo.Stats()
	assert.Equal(t, uint64(1600), hits+misses)
}

func BenchmarkCalculate(b *testing.B) {
	table := DefaultFactorTable()
	in := EmissionData{Electricity: 1000, Fuel: 500, Waste: 200, Water: 10000}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Calculate(in, table)
	}
}

func BenchmarkMemo_CacheHit(b *testing.B) {
	memo := NewMemo(DefaultFactorTable())
	in := EmissionData{Electricity: 1000, Fuel: 500, Waste: 200, Water: 10000}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		memo.Calculate(in)
	}
}
