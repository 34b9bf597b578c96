package table

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm")
}

// Load reads every worksheet, in workbook order, as its own dataset. Cells
// are read with their display formatting so dates stay recognisable.
// Sheets without any non-blank row are skipped.
func (xlsxLoader) Load(r io.Reader, name string, opt Options) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", name, err)
	}
	defer f.Close()

	wb := &Workbook{Source: name}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for i, rec := range rows {
			if blankRecord(rec) {
				continue
			}
			ds, err := buildDataset(sheet, rec, rows[i+1:], opt)
			if err != nil {
				return nil, err
			}
			wb.Sheets = append(wb.Sheets, ds)
			break
		}
	}
	return wb, nil
}
