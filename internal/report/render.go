package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
)

// Render writes r in the given format.
func Render(w io.Writer, r Report, format Format) error {
	switch format {
	case FormatText:
		return RenderText(w, r)
	case FormatJSON:
		return RenderJSON(w, r)
	case FormatXLSX:
		return RenderXLSX(w, r)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// RenderText writes a plain-text report suitable for an email body.
func RenderText(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	s := r.Summary

	fmt.Fprintf(tw, "%s\n", r.Title)
	fmt.Fprintf(tw, "Entity:\t%s\t\n", r.EntityLabel())
	fmt.Fprintf(tw, "Period:\t%s\t\n", r.PeriodLabel())
	fmt.Fprintf(tw, "Records:\t%d\t\n", s.Records)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Emissions by category (kg CO2e)")
	for _, c := range carbon.Categories {
		fmt.Fprintf(tw, "%s\t%s\t\n", c, carbon.FormatKg(s.Emissions.Emissions(c)))
	}
	fmt.Fprintf(tw, "total\t%s\t\n", carbon.FormatKg(s.Emissions.TotalEmissions))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Emissions by scope (kg CO2e)")
	for _, sc := range []carbon.Scope{carbon.Scope1, carbon.Scope2, carbon.Scope3} {
		fmt.Fprintf(tw, "%s\t%s\t\n", sc, carbon.FormatKg(s.Scopes.Get(sc)))
	}
	fmt.Fprintf(tw, "total\t%s\t\n", carbon.FormatKg(s.Scopes.Total))

	if len(s.Activities) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Activities (kg CO2e)")
		for _, a := range s.Activities {
			fmt.Fprintf(tw, "%s\t%s %s\t%s\t\n", a.Type, carbon.FormatKg(a.Quantity), a.Unit, carbon.FormatKg(a.Emissions))
		}
	}

	if len(s.Monthly) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Monthly totals (kg CO2e)")
		for _, m := range s.Monthly {
			fmt.Fprintf(tw, "%s\t%s\t\n", m.Month, carbon.FormatKg(m.Scopes.Total))
		}
	}

	if text := carbon.DisplayText(r.Equivalencies); text != "" {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, text+".")
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write text report: %w", err)
	}
	return nil
}

// RenderJSON writes r as indented JSON.
func RenderJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}

// Sheet names of the XLSX report.
const (
	SheetSummary    = "Summary"
	SheetScopes     = "Scopes"
	SheetMonthly    = "Monthly"
	SheetActivities = "Activities"
)

// RenderXLSX writes r as a workbook with one sheet per breakdown.
func RenderXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetScopes, SheetMonthly, SheetActivities} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	s := r.Summary
	summary := [][]any{
		{r.Title},
		{"Entity", r.EntityLabel()},
		{"Period", r.PeriodLabel()},
		{"Records", s.Records},
		{},
		{"Category", "Quantity", "Unit", "kg CO2e"},
	}
	for _, c := range carbon.Categories {
		summary = append(summary, []any{string(c), s.Consumption.Quantity(c), r.Units[string(c)], s.Emissions.Emissions(c)})
	}
	summary = append(summary, []any{"total", nil, nil, s.Emissions.TotalEmissions})

	scopes := [][]any{
		{"Scope", "kg CO2e"},
		{carbon.Scope1.String(), s.Scopes.Scope1},
		{carbon.Scope2.String(), s.Scopes.Scope2},
		{carbon.Scope3.String(), s.Scopes.Scope3},
		{"total", s.Scopes.Total},
	}

	monthly := [][]any{{"Month", "Electricity", "Fuel", "Waste", "Water", "Scope 1", "Scope 2", "Scope 3", "Total"}}
	for _, m := range s.Monthly {
		monthly = append(monthly, []any{
			m.Month,
			m.Emissions.ElectricityEmissions, m.Emissions.FuelEmissions,
			m.Emissions.WasteEmissions, m.Emissions.WaterEmissions,
			m.Scopes.Scope1, m.Scopes.Scope2, m.Scopes.Scope3, m.Scopes.Total,
		})
	}

	activities := [][]any{{"Activity", "Quantity", "Unit", "Scope", "kg CO2e"}}
	for _, a := range s.Activities {
		activities = append(activities, []any{a.Type, a.Quantity, a.Unit, a.Scope.String(), a.Emissions})
	}

	for sheet, rows := range map[string][][]any{
		SheetSummary:    summary,
		SheetScopes:     scopes,
		SheetMonthly:    monthly,
		SheetActivities: activities,
	} {
		if err := writeRows(f, sheet, rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx report: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
