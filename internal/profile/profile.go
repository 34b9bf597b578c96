// Package profile condenses a dataset into a compact, prompt-ready summary:
// one line per column with its inferred type and statistics.
package profile

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/KaramelBytes/sheetwise-cli/internal/table"
)

// Options tunes the summary.
type Options struct {
	// CategoryThreshold is the largest distinct count that is enumerated in full.
	CategoryThreshold int
	// SampleRows is how many leading rows are rendered after the schema; 0 omits them.
	SampleRows int
	// TopValues is how many frequent values are listed when a column has too
	// many distinct values to enumerate.
	TopValues int
}

func DefaultOptions() Options {
	return Options{CategoryThreshold: 20, SampleRows: 2, TopValues: 5}
}

func (o Options) normalized() Options {
	if o.CategoryThreshold <= 0 {
		o.CategoryThreshold = 20
	}
	if o.TopValues <= 0 {
		o.TopValues = 5
	}
	if o.SampleRows < 0 {
		o.SampleRows = 0
	}
	return o
}

// ValueCount is a distinct value and how many rows hold it.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnProfile summarizes one column. Only the fields relevant to Type are set.
type ColumnProfile struct {
	Name    string `json:"name"`
	Type    Type   `json:"type"`
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`

	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Mean float64 `json:"mean,omitempty"`
	Std  float64 `json:"std,omitempty"`

	Earliest time.Time `json:"earliest,omitempty"`
	Latest   time.Time `json:"latest,omitempty"`

	TrueCount  int `json:"true_count,omitempty"`
	FalseCount int `json:"false_count,omitempty"`

	Distinct int `json:"distinct,omitempty"`
	// Values enumerates every distinct value in first-seen order when
	// Distinct is within the threshold, otherwise the most frequent ones.
	Values     []ValueCount `json:"values,omitempty"`
	Exhaustive bool         `json:"exhaustive,omitempty"`
}

// Profile is the summary of a whole dataset.
type Profile struct {
	Dataset   string          `json:"dataset"`
	Rows      int             `json:"rows"`
	Truncated int             `json:"truncated,omitempty"`
	Columns   []ColumnProfile `json:"columns"`
	Header    []string        `json:"-"`
	Sample    []table.Row     `json:"-"`
}

// EmptyDatasetError is returned when a dataset has no rows or no columns.
type EmptyDatasetError struct {
	Dataset string
	Rows    int
	Columns int
}

func (e *EmptyDatasetError) Error() string {
	if e.Columns == 0 {
		return fmt.Sprintf("dataset %q has no columns", e.Dataset)
	}
	return fmt.Sprintf("dataset %q has no rows", e.Dataset)
}

// IsEmptyDataset reports whether err is, or wraps, an EmptyDatasetError.
func IsEmptyDataset(err error) bool {
	var e *EmptyDatasetError
	return errors.As(err, &e)
}

// Build summarizes ds. It never mutates the dataset.
func Build(ds *table.Dataset, opt Options) (*Profile, error) {
	if ds == nil {
		return nil, errors.New("profile: nil dataset")
	}
	if ds.Width() == 0 || ds.Len() == 0 {
		return nil, &EmptyDatasetError{Dataset: ds.Name, Rows: ds.Len(), Columns: ds.Width()}
	}
	opt = opt.normalized()
	p := &Profile{
		Dataset:   ds.Name,
		Rows:      ds.Len(),
		Truncated: ds.Truncated,
		Columns:   make([]ColumnProfile, ds.Width()),
		Header:    ds.Columns,
		Sample:    ds.Head(opt.SampleRows),
	}
	for i, name := range ds.Columns {
		p.Columns[i] = buildColumn(name, ds.Column(i), opt)
	}
	return p, nil
}

// BuildText is Build followed by Text.
func BuildText(ds *table.Dataset, opt Options) (string, error) {
	p, err := Build(ds, opt)
	if err != nil {
		return "", err
	}
	return p.Text(), nil
}

func buildColumn(name string, values []table.Value, opt Options) ColumnProfile {
	t := count(values)
	c := ColumnProfile{Name: name, Type: inferTally(t), Missing: t.nulls}
	c.NonNull = len(values) - t.nulls

	switch c.Type {
	case TypeNumeric:
		numericStats(&c, values)
	case TypeTemporal:
		temporalStats(&c, values)
	case TypeBoolean:
		for _, v := range values {
			if b, ok := v.Boolean(); ok {
				if b {
					c.TrueCount++
				} else {
					c.FalseCount++
				}
			}
		}
	case TypeCategorical:
		categoricalStats(&c, values, opt)
	}
	return c
}

// numericStats uses Welford's online update for mean and variance.
func numericStats(c *ColumnProfile, values []table.Value) {
	var n int
	var mean, m2 float64
	c.Min, c.Max = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		x, ok := v.Float()
		if !ok {
			continue
		}
		n++
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
		if x < c.Min {
			c.Min = x
		}
		if x > c.Max {
			c.Max = x
		}
	}
	c.Mean = mean
	if n > 1 {
		c.Std = math.Sqrt(m2 / float64(n-1))
	}
}

func temporalStats(c *ColumnProfile, values []table.Value) {
	for _, v := range values {
		if v.Kind() != table.KindText {
			continue
		}
		ts, ok := ParseDate(v.String())
		if !ok {
			continue
		}
		if c.Earliest.IsZero() || ts.Before(c.Earliest) {
			c.Earliest = ts
		}
		if c.Latest.IsZero() || ts.After(c.Latest) {
			c.Latest = ts
		}
	}
}

func categoricalStats(c *ColumnProfile, values []table.Value, opt Options) {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		s := v.String()
		if _, seen := counts[s]; !seen {
			order = append(order, s)
		}
		counts[s]++
	}
	c.Distinct = len(order)
	if c.Distinct <= opt.CategoryThreshold {
		c.Exhaustive = true
		c.Values = make([]ValueCount, len(order))
		for i, s := range order {
			c.Values[i] = ValueCount{Value: s, Count: counts[s]}
		}
		return
	}
	top := make([]ValueCount, len(order))
	for i, s := range order {
		top[i] = ValueCount{Value: s, Count: counts[s]}
	}
	// stable keeps first-seen order among equal counts
	sort.SliceStable(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	if len(top) > opt.TopValues {
		top = top[:opt.TopValues]
	}
	c.Values = top
}
