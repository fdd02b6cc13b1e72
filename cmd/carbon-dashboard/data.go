package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecoledger/carbon-dashboard/internal/consumption"
	"github.com/ecoledger/carbon-dashboard/internal/importer"
	"github.com/ecoledger/carbon-dashboard/internal/report"
)

// importConcurrency bounds concurrent saves during an import.
const importConcurrency = 4

// filterFlags are the record selection flags shared by export and archive.
type filterFlags struct {
	entity string
	from   string
	to     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.entity, "entity", "", "only records of this entity")
	cmd.Flags().StringVar(&f.from, "from", "", "first period start day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last period start day, inclusive (YYYY-MM-DD)")
}

func (f *filterFlags) filter() (consumption.Filter, error) {
	out := consumption.Filter{EntityID: f.entity}
	if f.from != "" {
		t, err := time.Parse(time.DateOnly, f.from)
		if err != nil {
			return out, fmt.Errorf("--from: %w", err)
		}
		out.From = t
	}
	if f.to != "" {
		t, err := time.Parse(time.DateOnly, f.to)
		if err != nil {
			return out, fmt.Errorf("--to: %w", err)
		}
		out.To = t.AddDate(0, 0, 1)
	}
	if !out.From.IsZero() && !out.To.IsZero() && !out.From.Before(out.To) {
		return out, fmt.Errorf("--from must not be after --to")
	}
	return out, nil
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import consumption records from an .xlsx or .xls spreadsheet",
		Long: `Import consumption records from a spreadsheet.

The first row is a header naming the columns entity, period_start and
period_end, plus any of electricity, fuel, waste, water and activity type
names (such as natural_gas). Dates are YYYY-MM-DD or Excel date serials.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.cfg, opts.logger, !dryRun)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res, err := importer.ReadFile(args[0], a.records.Table())
			if err != nil {
				return err
			}
			rowErrors := res.Errors
			saved := len(res.Records)
			if !dryRun {
				assessments, failures, err := importer.Save(cmd.Context(), a.records, res, importConcurrency)
				if err != nil {
					return err
				}
				saved = len(assessments)
				rowErrors = append(rowErrors, failures...)
			}

			out := cmd.OutOrStdout()
			for _, e := range rowErrors {
				fmt.Fprintf(out, "row %d: %s\n", e.Row, e.Message)
			}
			verb := "imported"
			if dryRun {
				verb = "would import"
			}
			fmt.Fprintf(out, "%s %d records, skipped %d rows\n", verb, saved, len(rowErrors))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate without saving")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		sel    filterFlags
		format string
		out    string
		title  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render an emissions report for stored records",
		Example: `  carbon-dashboard export --format xlsx --out q1.xlsx --from 2026-01-01 --to 2026-03-31
  carbon-dashboard export --entity plant-a`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := report.Format(strings.ToLower(format))
			if !f.Valid() {
				return fmt.Errorf("unknown format %q (want text, json or xlsx)", format)
			}
			filter, err := sel.filter()
			if err != nil {
				return err
			}
			a, err := openApp(opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			summary, err := a.records.Summary(cmd.Context(), filter)
			if err != nil {
				return err
			}
			r := report.Build(title, summary,
				report.Period{EntityID: filter.EntityID, From: filter.From, To: filter.To},
				a.records.Table(), time.Now().UTC())

			var body bytes.Buffer
			if err := report.Render(&body, r, f); err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, body.Bytes())
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatText), "report format: text, json or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&title, "title", "", "report title")
	return cmd
}

func newArchiveCmd(opts *rootOptions) *cobra.Command {
	var (
		sel filterFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Write stored records to an xz-compressed JSON lines archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = "records-" + time.Now().UTC().Format("20060102") + consumption.ArchiveExt
			}
			filter, err := sel.filter()
			if err != nil {
				return err
			}
			a, err := openApp(opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			records, err := a.records.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			var body bytes.Buffer
			n, err := consumption.WriteArchive(&body, records)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd.OutOrStdout(), out, body.Bytes()); err != nil {
				return err
			}
			opts.logger.Info().Int("records", n).Str("path", out).Msg("archive written")
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "archive path (default records-YYYYMMDD"+consumption.ArchiveExt+")")
	cmd.AddCommand(newRestoreCmd(opts))
	return cmd
}

func newRestoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore FILE",
		Short: "Re-create the records of an archive",
		Long:  "Re-create the records of an archive. Restored records get new IDs.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			records, err := consumption.ReadArchive(f)
			if err != nil {
				return err
			}

			a, err := openApp(opts.cfg, opts.logger, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res := importer.Result{Records: records, Rows: make([]int, len(records))}
			for i := range records {
				res.Rows[i] = i + 1
			}
			saved, failures, err := importer.Save(cmd.Context(), a.records, res, importConcurrency)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range failures {
				fmt.Fprintf(w, "line %d: %s\n", e.Row, e.Message)
			}
			fmt.Fprintf(w, "restored %d records, skipped %d\n", len(saved), len(failures))
			return nil
		},
	}
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
