package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
)

func newCalcCmd(opts *rootOptions) *cobra.Command {
	var data carbon.EmissionData
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calculate emissions for one set of quantities",
		Example: `  carbon-dashboard calc --electricity 1000 --fuel 500 --waste 200 --water 10000
  carbon-dashboard calc --electricity 250 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := loadFactorTable(opts.cfg)
			if err != nil {
				return err
			}
			result := carbon.Calculate(data, table)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return writeResult(cmd.OutOrStdout(), result, table)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&data.Electricity, "electricity", 0, "electricity consumed (kWh)")
	f.Float64Var(&data.Fuel, "fuel", 0, "fuel consumed (liters)")
	f.Float64Var(&data.Waste, "waste", 0, "waste generated (kg)")
	f.Float64Var(&data.Water, "water", 0, "water consumed (liters)")
	f.BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func writeResult(w io.Writer, r carbon.EmissionResult, table *carbon.FactorTable) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tKG CO2E\tFACTOR\tSCOPE")
	for _, c := range carbon.Categories {
		f := table.Factor(c)
		fmt.Fprintf(tw, "%s\t%s\t%g kg/%s\t%s\n", c, carbon.FormatKg(r.Emissions(c)), f.Factor, f.Unit, carbon.CategoryScope(c))
	}
	fmt.Fprintf(tw, "total\t%s\t\t\n", carbon.FormatKg(r.TotalEmissions))
	if err := tw.Flush(); err != nil {
		return err
	}
	if text := carbon.DisplayText(carbon.Equivalencies(r.TotalEmissions)); text != "" {
		fmt.Fprintln(w, text)
	}
	return nil
}

func newFactorsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "factors",
		Short: "Print the emission factor table in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := loadFactorTable(opts.cfg)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), table)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tUNIT\tKG CO2E/UNIT\tSCOPE")
			for _, f := range table.Factors() {
				fmt.Fprintf(tw, "%s\t%s\t%g\t%s\n", f.Category, f.Unit, f.Factor, carbon.CategoryScope(f.Category))
			}
			for _, a := range table.Activities() {
				fmt.Fprintf(tw, "%s\t%s\t%g\t%s\n", a.Name, a.Unit, a.Factor, a.Scope)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the table as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
