package table

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Options controls how source files are read into datasets.
type Options struct {
	// MaxRows caps the data rows kept per sheet; 0 keeps everything.
	MaxRows int
	// Delimiter forces the field separator for delimited text; 0 sniffs it.
	Delimiter rune
}

// Loader turns one file format into a Workbook.
type Loader interface {
	CanLoad(filename string) bool
	Load(r io.Reader, name string, opt Options) (*Workbook, error)
}

var registry []Loader

// Register adds a loader to the registry. Later registrations do not
// override earlier ones for the same extension.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported is returned for file types no loader accepts.
var ErrUnsupported = errors.New("unsupported spreadsheet format")

// Supported lists the extensions accepted by the registered loaders.
func Supported() []string {
	return []string{".csv", ".tsv", ".txt", ".xlsx", ".xlsm"}
}

// LoadFile opens path and loads it with the first loader that accepts its name.
func LoadFile(path string, opt Options) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, filepath.Base(path), opt)
}

// Load reads a file that has already been opened (an upload, for instance).
// name is used for format detection and dataset naming.
func Load(r io.Reader, name string, opt Options) (*Workbook, error) {
	for _, l := range registry {
		if l.CanLoad(name) {
			wb, err := l.Load(r, name, opt)
			if err != nil {
				return nil, err
			}
			if len(wb.Sheets) == 0 {
				return nil, fmt.Errorf("%s: no sheets with a header row", name)
			}
			return wb, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupported, filepath.Ext(name), strings.Join(Supported(), ", "))
}

// baseName strips directory and extension: "reports/q1.csv" -> "q1".
func baseName(name string) string {
	b := filepath.Base(name)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

// buildDataset converts a header plus raw records into a Dataset, skipping
// blank records and honouring MaxRows.
func buildDataset(name string, header []string, records [][]string, opt Options) (*Dataset, error) {
	rows := make([]Row, 0, len(records))
	truncated := 0
	for _, rec := range records {
		if blankRecord(rec) {
			continue
		}
		if opt.MaxRows > 0 && len(rows) >= opt.MaxRows {
			truncated++
			continue
		}
		rec = trimTrailingBlanks(rec, len(header))
		row := make(Row, len(rec))
		for i, cell := range rec {
			row[i] = ParseCell(cell)
		}
		rows = append(rows, row)
	}
	ds, err := NewDataset(name, header, rows)
	if err != nil {
		return nil, err
	}
	ds.Truncated = truncated
	return ds, nil
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// trimTrailingBlanks drops empty cells past the header width; trailing
// separators are common in exported sheets.
func trimTrailingBlanks(rec []string, width int) []string {
	for len(rec) > width && strings.TrimSpace(rec[len(rec)-1]) == "" {
		rec = rec[:len(rec)-1]
	}
	return rec
}

func init() {
	Register(delimitedLoader{})
	Register(xlsxLoader{})
}
