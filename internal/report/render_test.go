package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/consumption"
)

func sampleReport(t *testing.T) Report {
	t.Helper()
	table := carbon.DefaultFactorTable()
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []consumption.Record{{
		ID:          "r1",
		EntityID:    "plant-a",
		PeriodStart: jan,
		PeriodEnd:   jan.AddDate(0, 0, 30),
		Data:        carbon.EmissionData{Electricity: 1000, Fuel: 500, Waste: 200, Water: 10000},
		Activities:  []carbon.ActivityEntry{{Type: "business_travel_km", Quantity: 400}},
	}}
	summary, err := consumption.Summarize(records, table)
	require.NoError(t, err)

	period := Period{EntityID: "plant-a", From: jan, To: jan.AddDate(0, 1, 0)}
	return Build("January emissions", summary, period, table, time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC))
}

func TestBuild(t *testing.T) {
	r := sampleReport(t)

	assert.Equal(t, "January emissions", r.Title)
	assert.Equal(t, "plant-a", r.EntityLabel())
	assert.Equal(t, "2026-01-01 to 2026-01-31", r.PeriodLabel())
	assert.Equal(t, "kWh", r.Units["electricity"])
	assert.NotEmpty(t, r.Equivalencies)

	empty := Build("", consumption.Summary{}, Period{}, carbon.DefaultFactorTable(), time.Now())
	assert.Equal(t, "Emissions report", empty.Title)
	assert.Equal(t, "all entities", empty.EntityLabel())
	assert.Equal(t, "all time", empty.PeriodLabel())
	assert.Empty(t, empty.Equivalencies)
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, sampleReport(t)))
	out := buf.String()

	assert.Contains(t, out, "January emissions")
	assert.Contains(t, out, "2026-01-01 to 2026-01-31")
	assert.Contains(t, out, "Emissions by category (kg CO2e)")
	assert.Contains(t, out, "1573")
	assert.Contains(t, out, "scope1")
	assert.Contains(t, out, "business_travel_km")
	assert.Contains(t, out, "2026-01")
	assert.Contains(t, out, "\nEquivalent to ~")
	assert.NotContains(t, out, "about Equivalent")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, sampleReport(t)))

	var decoded struct {
		Title   string `json:"title"`
		Summary struct {
			Emissions carbon.EmissionResult `json:"emissions"`
			Scopes    carbon.ScopeTotals    `json:"scopes"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "January emissions", decoded.Title)
	assert.Equal(t, 1573.0, decoded.Summary.Emissions.TotalEmissions)
	assert.InDelta(t, 1633, decoded.Summary.Scopes.Total, 1e-9)
}

func TestRenderXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderXLSX(&buf, sampleReport(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetSummary, SheetScopes, SheetMonthly, SheetActivities}, f.GetSheetList())

	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, "January emissions", rows[0][0])
	assert.Equal(t, []string{"Category", "Quantity", "Unit", "kg CO2e"}, rows[5])
	assert.Equal(t, []string{"electricity", "1000", "kWh", "400"}, rows[6])

	scopes, err := f.GetRows(SheetScopes)
	require.NoError(t, err)
	assert.Equal(t, []string{"scope2", "400"}, scopes[2])

	activities, err := f.GetRows(SheetActivities)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, "business_travel_km", activities[1][0])
}

func TestRender_UnknownFormat(t *testing.T) {
	assert.Error(t, Render(&bytes.Buffer{}, sampleReport(t), "pdf"))
}
