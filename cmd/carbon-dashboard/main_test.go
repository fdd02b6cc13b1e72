package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/config"
	"github.com/ecoledger/carbon-dashboard/internal/report"
)

// isolate points storage and report output at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvPrefix+"SQLITE_PATH", filepath.Join(dir, "data", "dashboard.db"))
	t.Setenv(config.EnvPrefix+"REPORTS_OUTPUT_DIR", filepath.Join(dir, "reports"))
	t.Setenv(config.EnvPrefix+"LOG_LEVEL", "warn")
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCalc(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "calc", "--electricity", "1000", "--fuel", "500", "--waste", "200", "--water", "10000", "--json")
	require.NoError(t, err)
	var result carbon.EmissionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 400.0, result.ElectricityEmissions)
	assert.Equal(t, 1150.0, result.FuelEmissions)
	assert.InDelta(t, 1573.0, result.TotalEmissions, 1e-9)

	out, _, err = run(t, "calc", "--electricity", "1000", "--fuel", "500", "--waste", "200", "--water", "10000")
	require.NoError(t, err)
	assert.Contains(t, out, "0.4 kg/kWh")
	assert.Contains(t, out, "1573")
	assert.Contains(t, out, "miles driven")

	out, _, err = run(t, "calc")
	require.NoError(t, err)
	assert.NotContains(t, out, "miles driven")
}

func TestFactors(t *testing.T) {
	dir := isolate(t)

	out, _, err := run(t, "factors")
	require.NoError(t, err)
	assert.Contains(t, out, "electricity")
	assert.Contains(t, out, "natural_gas")
	assert.Contains(t, out, "scope2")

	factors := filepath.Join(dir, "factors.json")
	require.NoError(t, os.WriteFile(factors, []byte(`{
		"electricity": {"category": "electricity", "unit": "kWh", "factor": 0.5},
		"fuel": {"category": "fuel", "unit": "liters", "factor": 2.3},
		"waste": {"category": "waste", "unit": "kg", "factor": 0.1},
		"water": {"category": "water", "unit": "liters", "factor": 0.0003}
	}`), 0o644))
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("factors_file: "+factors+"\n"), 0o644))

	out, _, err = run(t, "--config", cfgPath, "calc", "--electricity", "10", "--json")
	require.NoError(t, err)
	var result carbon.EmissionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 5.0, result.TotalEmissions)
}

func TestInvalidConfig(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvPrefix+"LOG_FORMAT", "xml")

	_, stderr, err := run(t, "factors")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, stderr, `unknown log format "xml"`)

	_, _, err = run(t, "--log-format", "console", "factors")
	assert.NoError(t, err)
}

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestImportExportArchive(t *testing.T) {
	dir := isolate(t)

	sheet := filepath.Join(dir, "usage.xlsx")
	writeWorkbook(t, sheet, [][]any{
		{"entity", "period_start", "period_end", "electricity", "fuel", "waste", "water"},
		{"plant-a", "2026-01-01", "2026-01-31", 1000, 500, 200, 10000},
		{"plant-b", "2026-02-01", "2026-02-28", 100, 0, 0, 0},
		{"plant-c", "2026-02-01", "not a date", 1, 0, 0, 0},
	})

	out, _, err := run(t, "import", "--dry-run", sheet)
	require.NoError(t, err)
	assert.Contains(t, out, "would import 2 records, skipped 1 rows")

	out, _, err = run(t, "import", sheet)
	require.NoError(t, err)
	assert.Contains(t, out, "row 4:")
	assert.Contains(t, out, "imported 2 records, skipped 1 rows")

	reportPath := filepath.Join(dir, "all.json")
	_, _, err = run(t, "export", "--format", "json", "--out", reportPath)
	require.NoError(t, err)
	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var r report.Report
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, 2, r.Summary.Records)
	assert.InDelta(t, 1613.0, r.Summary.Scopes.Total, 1e-9)

	out, _, err = run(t, "export", "--entity", "plant-a", "--from", "2026-01-01", "--to", "2026-01-31")
	require.NoError(t, err)
	assert.Contains(t, out, "plant-a")
	assert.Contains(t, out, "2026-01-01 to 2026-01-31")

	_, _, err = run(t, "export", "--format", "pdf")
	assert.ErrorContains(t, err, `unknown format "pdf"`)
	_, _, err = run(t, "export", "--from", "2026-02-01", "--to", "2026-01-01")
	assert.Error(t, err)

	archive := filepath.Join(dir, "records.jsonl.xz")
	_, _, err = run(t, "archive", "--out", archive)
	require.NoError(t, err)
	info, err := os.Stat(archive)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	out, _, err = run(t, "archive", "restore", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "restored 2 records, skipped 0")

	out, _, err = run(t, "export", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, 4, r.Summary.Records)
}

func TestImport_Errors(t *testing.T) {
	dir := isolate(t)

	_, _, err := run(t, "import")
	assert.Error(t, err)

	_, _, err = run(t, "import", filepath.Join(dir, "missing.xlsx"))
	assert.Error(t, err)
}

func TestRunServe_StopsOnCancel(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvPrefix+"LISTEN", "127.0.0.1:0")

	opts := &rootOptions{}
	require.NoError(t, opts.loadConfig(&bytes.Buffer{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, runServe(ctx, opts))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "INFO", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"service":"carbon-dashboard"`)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	buf.Reset()
	logger, err = newLogger(config.LogConfig{Level: "debug", Format: "console"}, &buf)
	require.NoError(t, err)
	logger.Debug().Msg("console line")
	assert.Contains(t, buf.String(), "console line")
	assert.NotContains(t, buf.String(), `{"level"`)

	_, err = newLogger(config.LogConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}
