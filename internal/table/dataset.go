package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Row holds one value per dataset column, in column order.
type Row []Value

// Dataset is a named rectangular table: an ordered header and rows that all
// share the header's width.
type Dataset struct {
	Name    string
	Columns []string
	Rows    []Row
	// Truncated is the number of source rows dropped by a MaxRows cap.
	Truncated int
}

// NewDataset validates and normalizes a table. Short rows are padded with
// nulls; rows wider than the header are rejected. Blank or repeated header
// names are made unique so every column can be addressed by name.
func NewDataset(name string, columns []string, rows []Row) (*Dataset, error) {
	cols := uniqueColumns(columns)
	out := make([]Row, len(rows))
	for i, r := range rows {
		if len(r) > len(cols) {
			return nil, fmt.Errorf("dataset %q: row %d has %d cells but header has %d columns", name, i+1, len(r), len(cols))
		}
		if len(r) < len(cols) {
			padded := make(Row, len(cols))
			copy(padded, r)
			r = padded
		}
		out[i] = r
	}
	return &Dataset{Name: name, Columns: cols, Rows: out}, nil
}

func (d *Dataset) Len() int   { return len(d.Rows) }
func (d *Dataset) Width() int { return len(d.Columns) }

// Index returns the position of the named column, or -1.
func (d *Dataset) Index(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	for i, c := range d.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Column returns the values of column i across all rows.
func (d *Dataset) Column(i int) []Value {
	vals := make([]Value, len(d.Rows))
	for r, row := range d.Rows {
		vals[r] = row[i]
	}
	return vals
}

// Get returns the value in the named column of row r.
func (d *Dataset) Get(r int, column string) (Value, bool) {
	i := d.Index(column)
	if i < 0 || r < 0 || r >= len(d.Rows) {
		return Value{}, false
	}
	return d.Rows[r][i], true
}

// Head returns at most n leading rows.
func (d *Dataset) Head(n int) []Row {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	if n < 0 {
		n = 0
	}
	return d.Rows[:n]
}

func uniqueColumns(columns []string) []string {
	out := make([]string, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		name := strings.TrimSpace(c)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if seen[strings.ToLower(name)] {
			base := name
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d", base, n)
				if !seen[strings.ToLower(candidate)] {
					name = candidate
					break
				}
			}
		}
		seen[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

// Workbook is every dataset produced from one source file, in source order.
type Workbook struct {
	Source string
	Sheets []*Dataset
}

// Names lists the sheet names in workbook order.
func (w *Workbook) Names() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}

// Default returns the first sheet, or nil for an empty workbook.
func (w *Workbook) Default() *Dataset {
	if w == nil || len(w.Sheets) == 0 {
		return nil
	}
	return w.Sheets[0]
}

// Sheet finds a sheet by name (case-insensitive) or by 1-based index.
func (w *Workbook) Sheet(name string) (*Dataset, error) {
	if w == nil || len(w.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	want := strings.TrimSpace(name)
	if want == "" {
		return w.Default(), nil
	}
	for _, s := range w.Sheets {
		if s.Name == want {
			return s, nil
		}
	}
	for _, s := range w.Sheets {
		if strings.EqualFold(s.Name, want) {
			return s, nil
		}
	}
	if idx, err := strconv.Atoi(want); err == nil && idx >= 1 && idx <= len(w.Sheets) {
		return w.Sheets[idx-1], nil
	}
	return nil, fmt.Errorf("sheet %q not found; available: %s", want, strings.Join(w.Names(), ", "))
}
