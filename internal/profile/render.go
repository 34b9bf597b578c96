package profile

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/sheetwise-cli/internal/table"
)

const dateLayout = "2006-01-02"

// Text renders the profile as a flat block: a dataset header, one schema
// line per column in dataset order, the total row count and, when
// requested, a small markdown table of leading rows.
func (p *Profile) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[DATASET] %s\n", p.Dataset)
	b.WriteString("[SCHEMA]\n")
	for _, c := range p.Columns {
		b.WriteString(c.Line())
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Total rows: %d\n", p.Rows)
	if p.Truncated > 0 {
		fmt.Fprintf(&b, "Note: only the first %d rows were loaded; %d more were skipped.\n", p.Rows, p.Truncated)
	}
	if len(p.Sample) > 0 {
		b.WriteString("[SAMPLE ROWS]\n")
		writeTable(&b, p.Header, p.Sample)
	}
	return b.String()
}

// Line renders one schema line, e.g.
// "- Salary: numeric (non-null 3, missing 0); min 10, max 30, mean 20, std 10".
func (c ColumnProfile) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s: %s (non-null %d, missing %d)", clean(c.Name), c.Type, c.NonNull, c.Missing)
	switch c.Type {
	case TypeNumeric:
		fmt.Fprintf(&b, "; min %s, max %s, mean %s", num(c.Min), num(c.Max), num(c.Mean))
		if c.NonNull > 1 {
			fmt.Fprintf(&b, ", std %s", num(c.Std))
		}
	case TypeTemporal:
		fmt.Fprintf(&b, "; earliest %s, latest %s", c.Earliest.Format(dateLayout), c.Latest.Format(dateLayout))
	case TypeBoolean:
		fmt.Fprintf(&b, "; true %d, false %d", c.TrueCount, c.FalseCount)
	case TypeCategorical:
		if c.Exhaustive {
			fmt.Fprintf(&b, "; distinct %d: ", c.Distinct)
		} else {
			fmt.Fprintf(&b, "; distinct %d, top: ", c.Distinct)
		}
		for i, vc := range c.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s (%d)", clean(vc.Value), vc.Count)
		}
	}
	return b.String()
}

func writeTable(b *strings.Builder, header []string, rows []table.Row) {
	b.WriteString("|")
	for _, h := range header {
		b.WriteString(" " + clean(h) + " |")
	}
	b.WriteString("\n|")
	for range header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString("|")
		for _, v := range r {
			b.WriteString(" " + clean(v.String()) + " |")
		}
		b.WriteString("\n")
	}
}

func num(f float64) string { return table.FormatNumber(f) }

// clean keeps a cell on one line and out of the table syntax.
func clean(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "/")
}
