package pipeline

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"waxscore/internal"
)

// ExportColumns is the column order of the CSV report.
var ExportColumns = []internal.Key{
	internal.DropMeltingPoint, internal.Viscosity135C, internal.Penetration25C,
	internal.Density23C, internal.AcidValue, internal.OilContent,
}

const (
	columnScore      = "Score"
	columnSourceFile = "SourceFile"
	outcomesSheet    = "Outcomes"
)

func csvHeader() []string {
	header := make([]string, 0, len(ExportColumns)+2)
	for _, k := range ExportColumns {
		header = append(header, string(k))
	}
	return append(header, columnScore, columnSourceFile)
}

// WriteCSV writes records in the given order. Missing properties are empty cells.
func WriteCSV(w io.Writer, records []internal.WaxRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader()); err != nil {
		return err
	}
	for _, r := range records {
		row := make([]string, 0, len(ExportColumns)+2)
		for _, k := range ExportColumns {
			row = append(row, formatValue(r, k))
		}
		row = append(row, strconv.Itoa(r.Score), r.SourceFile)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ExportCSV(records []internal.WaxRecord, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ExportXLSX writes the CSV columns followed by every other property seen in
// records, and a second sheet with one row per predicate outcome.
func ExportXLSX(records []internal.WaxRecord, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	extra := extraColumns(records)
	headers := csvHeader()
	for _, k := range extra {
		headers = append(headers, string(k))
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, rec := range records {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
		col := 1
		for _, k := range ExportColumns {
			set(col, cellValue(rec, k))
			col++
		}
		set(col, rec.Score)
		set(col+1, rec.SourceFile)
		col += 2
		for _, k := range extra {
			set(col, cellValue(rec, k))
			col++
		}
	}

	if _, err := f.NewSheet(outcomesSheet); err != nil {
		return err
	}
	for i, h := range []string{"SourceFile", "Predicate", "Property", "Value", "Matched", "UsedDefault", "Points"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(outcomesSheet, cell, h)
	}
	r := 2
	for _, rec := range records {
		for _, o := range rec.Outcomes {
			values := []any{rec.SourceFile, o.Name, string(o.Property), derefString(o.Value), o.Matched, o.UsedDefault, o.Points}
			for c, v := range values {
				cell, _ := excelize.CoordinatesToCellName(c+1, r)
				_ = f.SetCellValue(outcomesSheet, cell, v)
			}
			r++
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func extraColumns(records []internal.WaxRecord) []internal.Key {
	inCSV := map[internal.Key]struct{}{}
	for _, k := range ExportColumns {
		inCSV[k] = struct{}{}
	}
	seen := map[internal.Key]struct{}{}
	canonical := []internal.Key{}
	fallback := []internal.Key{}
	for _, rec := range records {
		for _, k := range rec.Keys() {
			if _, ok := inCSV[k]; ok {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			if internal.IsCanonical(k) {
				canonical = append(canonical, k)
			} else {
				fallback = append(fallback, k)
			}
		}
	}
	order := map[internal.Key]int{}
	for i, k := range internal.CanonicalKeys {
		order[k] = i
	}
	sort.Slice(canonical, func(i, j int) bool { return order[canonical[i]] < order[canonical[j]] })
	sort.Slice(fallback, func(i, j int) bool { return fallback[i] < fallback[j] })
	return append(canonical, fallback...)
}

func formatValue(rec internal.WaxRecord, k internal.Key) string {
	if v, ok := rec.Number(k); ok {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v, ok := rec.String(k); ok {
		return v
	}
	return ""
}

func cellValue(rec internal.WaxRecord, k internal.Key) any {
	if v, ok := rec.Number(k); ok {
		return v
	}
	if v, ok := rec.String(k); ok {
		return v
	}
	return ""
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
