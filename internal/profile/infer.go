package profile

import (
	"strings"
	"time"

	"github.com/KaramelBytes/sheetwise-cli/internal/table"
)

// Type is the inferred semantic type of a column.
type Type string

const (
	TypeNumeric     Type = "numeric"
	TypeTemporal    Type = "temporal"
	TypeBoolean     Type = "boolean"
	TypeCategorical Type = "categorical"
	TypeEmpty       Type = "empty"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"01-02-06",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"2006-01",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	"2-Jan-06",
}

// ParseDate reports whether s is a date in one of the accepted layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 6 {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type tally struct {
	nulls, numbers, bools, dates, texts int
}

func count(values []table.Value) tally {
	var t tally
	for _, v := range values {
		switch v.Kind() {
		case table.KindNull:
			t.nulls++
		case table.KindNumber:
			t.numbers++
		case table.KindBool:
			t.bools++
		case table.KindText:
			if _, ok := ParseDate(v.String()); ok {
				t.dates++
			} else {
				t.texts++
			}
		}
	}
	return t
}

// Infer types a column by its non-null values: numeric, temporal or boolean
// only when every one of them is, categorical otherwise. An all-null column
// is empty.
func Infer(values []table.Value) Type {
	return inferTally(count(values))
}

func inferTally(t tally) Type {
	nonNull := t.numbers + t.bools + t.dates + t.texts
	switch {
	case nonNull == 0:
		return TypeEmpty
	case t.numbers == nonNull:
		return TypeNumeric
	case t.dates == nonNull:
		return TypeTemporal
	case t.bools == nonNull:
		return TypeBoolean
	default:
		return TypeCategorical
	}
}
