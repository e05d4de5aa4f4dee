package docpipe

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX returns the cell grid, merged ranges and, when includeFormulas
// is set, the formulas of every worksheet, or of sheet alone when it is
// non-empty. A sheet name absent from the workbook yields a *SheetError.
func (p *Pipeline) ParseXLSX(ctx context.Context, path, sheet string, includeFormulas bool) (*XLSXResult, error) {
	info, _, err := p.check(path, FormatXLSX)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer f.Close()

	names := f.GetSheetList()
	res := &XLSXResult{
		Metadata: XLSXMetadata{
			Filename:    filepath.Base(path),
			FileSizeMB:  sizeMB(info.Size()),
			SheetsCount: len(names),
			SheetNames:  names,
			Creator:     "Unknown",
		},
		Sheets: []Sheet{},
	}
	if props, err := f.GetDocProps(); err == nil && props != nil {
		res.Metadata.Creator = orDefault(props.Creator, "Unknown")
		res.Metadata.Title = props.Title
		res.Metadata.Subject = props.Subject
		res.Metadata.Description = props.Description
		res.Metadata.Created = isoTime(props.Created)
		res.Metadata.Modified = isoTime(props.Modified)
	}

	targets := names
	if sheet != "" {
		found := false
		for _, n := range names {
			if n == sheet {
				found = true
				break
			}
		}
		if !found {
			return nil, &SheetError{Sheet: sheet, Available: names}
		}
		targets = []string{sheet}
	}

	dates := newDateStyles(f)
	for _, name := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := readSheet(f, name, includeFormulas, dates)
		if err != nil {
			return nil, fmt.Errorf("parse %s sheet %q: %w", path, name, err)
		}
		res.Sheets = append(res.Sheets, *s)
	}
	res.TotalSheetsParsed = len(res.Sheets)
	return res, nil
}

// sheetExtent sizes a sheet from the cells it actually stores; the declared
// <dimension> is not trusted. An empty sheet is 1x1. The returned widths give
// the stored columns of each row.
func sheetExtent(f *excelize.File, sheet string) (rows, cols int, widths []int, err error) {
	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, 0, nil, err
	}
	rows, cols = max(1, len(grid)), 1
	widths = make([]int, len(grid))
	for i, r := range grid {
		widths[i] = len(r)
		cols = max(cols, len(r))
	}
	return rows, cols, widths, nil
}

func readSheet(f *excelize.File, name string, includeFormulas bool, dates *dateStyles) (*Sheet, error) {
	rows, cols, widths, err := sheetExtent(f, name)
	if err != nil {
		return nil, err
	}
	s := &Sheet{Name: name, Rows: rows, Columns: cols, Data: make([][]any, rows), MergedCells: []string{}}
	formulas := map[string]string{}

	for r := 1; r <= rows; r++ {
		row := make([]any, cols)
		s.Data[r-1] = row
		if r > len(widths) {
			continue
		}
		for c := 1; c <= widths[r-1]; c++ {
			ref, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				return nil, err
			}
			formula, err := f.GetCellFormula(name, ref)
			if err != nil {
				return nil, err
			}
			if formula != "" {
				if !strings.HasPrefix(formula, "=") {
					formula = "=" + formula
				}
				row[c-1] = formula
				if includeFormulas {
					formulas[ref] = formula
				}
				continue
			}
			if row[c-1], err = cellValue(f, name, ref, dates); err != nil {
				return nil, err
			}
		}
	}

	merged, err := f.GetMergeCells(name)
	if err != nil {
		return nil, err
	}
	for _, m := range merged {
		s.MergedCells = append(s.MergedCells, m.GetStartAxis()+":"+m.GetEndAxis())
	}
	if len(formulas) > 0 {
		s.Formulas = formulas
	}
	return s, nil
}

// cellValue types a stored value: numbers as float64, booleans as bool,
// date-formatted numbers as ISO-8601 and blanks as nil.
func cellValue(f *excelize.File, sheet, ref string, dates *dateStyles) (any, error) {
	raw, err := f.GetCellValue(sheet, ref, excelize.Options{RawCellValue: true})
	if err != nil || raw == "" {
		return nil, err
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return nil, err
	}
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeDate:
		return raw, nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			return raw, nil
		}
		if dates.isDate(sheet, ref) {
			if t, terr := excelize.ExcelDateToTime(v, false); terr == nil {
				return t.Format("2006-01-02T15:04:05"), nil
			}
		}
		return v, nil
	}
	return raw, nil
}

// dateStyles caches, per style index, whether the number format renders a
// date.
type dateStyles struct {
	f     *excelize.File
	cache map[int]bool
}

func newDateStyles(f *excelize.File) *dateStyles {
	return &dateStyles{f: f, cache: map[int]bool{}}
}

func (d *dateStyles) isDate(sheet, ref string) bool {
	idx, err := d.f.GetCellStyle(sheet, ref)
	if err != nil || idx == 0 {
		return false
	}
	if v, ok := d.cache[idx]; ok {
		return v
	}
	v := false
	if style, err := d.f.GetStyle(idx); err == nil && style != nil {
		switch {
		case style.NumFmt >= 14 && style.NumFmt <= 22, style.NumFmt >= 45 && style.NumFmt <= 47:
			v = true
		case style.CustomNumFmt != nil:
			v = isDateFormat(*style.CustomNumFmt)
		}
	}
	d.cache[idx] = v
	return v
}

// isDateFormat reports whether a custom number format has date or time
// tokens outside quoted literals and bracketed sections.
func isDateFormat(format string) bool {
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(format) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		case r == 'y', r == 'd', r == 'm', r == 'h', r == 's':
			return true
		}
	}
	return false
}

func xlsxMetadata(path string, md map[string]any) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	names := f.GetSheetList()
	md["sheets_count"] = len(names)
	md["sheet_names"] = names
	if props, err := f.GetDocProps(); err == nil && props != nil {
		md["creator"] = orDefault(props.Creator, "Unknown")
		md["title"] = props.Title
		md["subject"] = props.Subject
		md["description"] = props.Description
		md["keywords"] = props.Keywords
		md["created"] = isoTime(props.Created)
		md["modified"] = isoTime(props.Modified)
		md["last_modified_by"] = props.LastModifiedBy
		md["category"] = props.Category
	}
	total := 0
	for _, name := range names {
		rows, cols, _, err := sheetExtent(f, name)
		if err != nil {
			return err
		}
		total += rows * cols
	}
	md["statistics"] = map[string]int{"total_cells": total}
	return nil
}

// xlsxText renders every sheet as a "=== name ===" header followed by its
// non-blank rows, cells separated by tabs. Formula cells show their cached
// values.
func xlsxText(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var parts []string
	for _, name := range f.GetSheetList() {
		parts = append(parts, "=== "+name+" ===\n")
		rows, err := f.GetRows(name)
		if err != nil {
			return "", err
		}
		for _, row := range rows {
			line := strings.Join(row, "\t")
			if strings.TrimSpace(line) != "" {
				parts = append(parts, line)
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}
