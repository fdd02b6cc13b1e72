// Package importer reads consumption records from spreadsheets.
package importer

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/consumption"
)

// Column headers. Headers are matched case-insensitively; any other header
// naming a known activity type is read as that activity's quantity.
const (
	ColEntity      = "entity"
	ColPeriodStart = "period_start"
	ColPeriodEnd   = "period_end"
	ColNotes       = "notes"
)

// maxXLSRows bounds how many rows are read from a legacy .xls sheet.
const maxXLSRows = 100000

var (
	// ErrUnsupportedFile is returned for extensions other than .xlsx and .xls.
	ErrUnsupportedFile = errors.New("unsupported spreadsheet type")

	// ErrMissingColumns is returned when the header row lacks required columns.
	ErrMissingColumns = errors.New("missing required columns")
)

// RowError describes a spreadsheet row that could not be imported. Row is the
// 1-based sheet row number.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Result holds the parsed records and the rows that were skipped.
type Result struct {
	Records []consumption.Record `json:"records"`
	Rows    []int                `json:"rows"`
	Errors  []RowError           `json:"errors"`
}

// ReadFile reads the spreadsheet at path.
func ReadFile(path string, table *carbon.FactorTable) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path), table)
}

// Read parses a spreadsheet. filename selects the format by extension.
// Rows that fail to parse or validate are reported in Result.Errors and
// skipped; a missing header or unreadable file is an error.
func Read(r io.Reader, filename string, table *carbon.FactorTable) (Result, error) {
	rows, err := readRows(r, filename)
	if err != nil {
		return Result{}, err
	}
	return parseRows(rows, table)
}

func readRows(r io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet: %w", err)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("open xls: %w", err)
		}
		if wb.NumSheets() == 0 {
			return nil, errors.New("no worksheet found")
		}
		rows := wb.ReadAllCells(maxXLSRows)
		if len(rows) == 0 {
			return nil, errors.New("worksheet is empty")
		}
		return rows, nil
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open xlsx: %w", err)
		}
		defer func() { _ = f.Close() }()

		sheet := f.GetSheetName(0)
		if sheet == "" {
			return nil, errors.New("no worksheet found")
		}
		// Raw values keep dates as serial numbers regardless of cell format.
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			return nil, errors.New("worksheet is empty")
		}
		return rows, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, filepath.Ext(filename))
}

func parseRows(rows [][]string, table *carbon.FactorTable) (Result, error) {
	header := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		header[normalizeHeader(h)] = i
	}

	var missing []string
	for _, col := range []string{ColEntity, ColPeriodStart, ColPeriodEnd} {
		if _, ok := header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var activities []carbon.ActivityType
	for _, at := range table.Activities() {
		if _, ok := header[at.Name]; ok {
			activities = append(activities, at)
		}
	}

	res := Result{Records: []consumption.Record{}, Errors: []RowError{}}
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}
		rec, err := parseRow(row, header, activities)
		if err == nil {
			err = consumption.Validate(rec, table)
		}
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		res.Records = append(res.Records, rec)
		res.Rows = append(res.Rows, rowNum)
	}
	return res, nil
}

func parseRow(row []string, header map[string]int, activities []carbon.ActivityType) (consumption.Record, error) {
	cell := func(name string) string {
		idx, ok := header[name]
		if !ok {
			return ""
		}
		return cellValue(row, idx)
	}

	rec := consumption.Record{EntityID: cell(ColEntity), Notes: cell(ColNotes)}
	var err error
	if rec.PeriodStart, err = parseDate(cell(ColPeriodStart)); err != nil {
		return rec, fmt.Errorf("%s: %w", ColPeriodStart, err)
	}
	if rec.PeriodEnd, err = parseDate(cell(ColPeriodEnd)); err != nil {
		return rec, fmt.Errorf("%s: %w", ColPeriodEnd, err)
	}

	for _, c := range carbon.Categories {
		q, err := parseQuantity(cell(string(c)))
		if err != nil {
			return rec, fmt.Errorf("%s: %w", c, err)
		}
		switch c {
		case carbon.CategoryElectricity:
			rec.Data.Electricity = q
		case carbon.CategoryFuel:
			rec.Data.Fuel = q
		case carbon.CategoryWaste:
			rec.Data.Waste = q
		case carbon.CategoryWater:
			rec.Data.Water = q
		}
	}

	for _, at := range activities {
		raw := cell(at.Name)
		if raw == "" {
			continue
		}
		q, err := parseQuantity(raw)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", at.Name, err)
		}
		rec.Activities = append(rec.Activities, carbon.ActivityEntry{Type: at.Name, Quantity: q})
	}
	return rec, nil
}

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	time.RFC3339,
}

// parseDate accepts ISO dates, a few common spreadsheet layouts, and Excel
// serial day numbers.
func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("is required")
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid excel date %q: %w", v, err)
		}
		return t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}

// parseQuantity treats an empty cell as zero and strips thousands separators.
func parseQuantity(v string) (float64, error) {
	v = strings.ReplaceAll(v, ",", "")
	if v == "" {
		return 0, nil
	}
	q, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", v)
	}
	return q, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.ReplaceAll(h, " ", "_")
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Creator saves one record. consumption.Service satisfies it.
type Creator interface {
	Create(ctx context.Context, r consumption.Record) (consumption.Assessment, error)
}

// Save creates every parsed record with at most limit saves in flight. Save
// failures are reported per row; only context cancellation aborts the run.
func Save(ctx context.Context, c Creator, res Result, limit int) ([]consumption.Assessment, []RowError, error) {
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	saved := make([]*consumption.Assessment, len(res.Records))
	var mu sync.Mutex
	var failures []RowError

	for i, rec := range res.Records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := c.Create(gctx, rec)
			if err != nil {
				row := 0
				if i < len(res.Rows) {
					row = res.Rows[i]
				}
				mu.Lock()
				failures = append(failures, RowError{Row: row, Message: err.Error()})
				mu.Unlock()
				return nil
			}
			saved[i] = &a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make([]consumption.Assessment, 0, len(saved))
	for _, a := range saved {
		if a != nil {
			out = append(out, *a)
		}
	}
	slices.SortFunc(failures, func(a, b RowError) int { return cmp.Compare(a.Row, b.Row) })
	return out, failures, nil
}
