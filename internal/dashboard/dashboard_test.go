package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/consumption"
)

func sampleSummary(t *testing.T) consumption.Summary {
	t.Helper()
	month := func(m time.Month) time.Time { return time.Date(2026, m, 1, 0, 0, 0, 0, time.UTC) }
	records := []consumption.Record{
		{EntityID: "plant-a", PeriodStart: month(1), PeriodEnd: month(2), Data: carbon.EmissionData{Electricity: 1000, Fuel: 500, Waste: 200, Water: 10000}},
		{EntityID: "plant-a", PeriodStart: month(2), PeriodEnd: month(3), Data: carbon.EmissionData{Electricity: 500},
			Activities: []carbon.ActivityEntry{{Type: "natural_gas", Quantity: 10}}},
	}
	s, err := consumption.Summarize(records, carbon.DefaultFactorTable())
	require.NoError(t, err)
	return s
}

func TestBuild_Overview(t *testing.T) {
	d, err := Build(Overview, sampleSummary(t))
	require.NoError(t, err)

	assert.Equal(t, 2, d.Records)
	require.Len(t, d.Charts, 2)

	scopes := d.Charts[0]
	assert.Equal(t, KindDoughnut, scopes.Kind)
	assert.Equal(t, []string{"scope1", "scope2", "scope3"}, scopes.Labels)
	assert.InDelta(t, 1150+20.2, scopes.Datasets[0].Data[0], 1e-9)
	assert.InDelta(t, 600, scopes.Datasets[0].Data[1], 1e-9)

	cats := d.Charts[1]
	assert.Equal(t, []string{"electricity", "fuel", "waste", "water", "natural_gas"}, cats.Labels)
	assert.Len(t, cats.Datasets[0].Data, 5)
}

func TestBuild_Trend(t *testing.T) {
	d, err := Build(Trend, sampleSummary(t))
	require.NoError(t, err)

	chart := d.Charts[0]
	assert.Equal(t, KindLine, chart.Kind)
	assert.Equal(t, []string{"2026-01", "2026-02"}, chart.Labels)
	require.Len(t, chart.Datasets, 4)
	assert.Equal(t, "total", chart.Datasets[0].Label)
	assert.InDelta(t, 1573, chart.Datasets[0].Data[0], 1e-9)
	assert.InDelta(t, 200+20.2, chart.Datasets[0].Data[1], 1e-9)
}

func TestBuild_Categories(t *testing.T) {
	d, err := Build(Categories, sampleSummary(t))
	require.NoError(t, err)

	chart := d.Charts[0]
	require.Len(t, chart.Datasets, len(carbon.Categories))
	assert.Equal(t, "electricity", chart.Datasets[0].Label)
	assert.InDelta(t, 400, chart.Datasets[0].Data[0], 1e-9)
	assert.InDelta(t, 200, chart.Datasets[0].Data[1], 1e-9)
}

func TestBuild_Unknown(t *testing.T) {
	_, err := Build("sankey", consumption.Summary{})
	assert.ErrorIs(t, err, ErrUnknownDashboard)
}

func TestBuild_EmptySummary(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			s, err := consumption.Summarize(nil, carbon.DefaultFactorTable())
			require.NoError(t, err)
			d, err := Build(name, s)
			require.NoError(t, err)
			assert.NotEmpty(t, d.Charts)
		})
	}
}
