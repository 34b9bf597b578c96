package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

type delimitedLoader struct{}

func (delimitedLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

// Load reads delimited text as a single dataset named after the file.
func (delimitedLoader) Load(r io.Reader, name string, opt Options) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name, data)
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	wb := &Workbook{Source: name}
	// header is the first non-blank record
	for i, rec := range records {
		if blankRecord(rec) {
			continue
		}
		ds, err := buildDataset(baseName(name), rec, records[i+1:], opt)
		if err != nil {
			return nil, err
		}
		wb.Sheets = append(wb.Sheets, ds)
		break
	}
	return wb, nil
}

// sniffDelimiter picks the separator that occurs most often in the first
// line. .tsv files are always tab separated.
func sniffDelimiter(name string, data []byte) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, c := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
