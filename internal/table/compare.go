package table

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DiffKind classifies the first divergence found by Compare.
type DiffKind string

const (
	DiffSchema   DiffKind = "schema"
	DiffRowCount DiffKind = "row_count"
	DiffValue    DiffKind = "value"
)

// Diff describes why two tables are not equal.
type Diff struct {
	Kind    DiffKind
	Summary string

	// set for DiffValue
	Cells    int
	FirstRow int // 1-based data row
	FirstCol string
	Expected string
	Got      string
}

func (d *Diff) String() string { return d.Summary }

// CompareOptions tunes cell equality.
type CompareOptions struct {
	// Tolerance is the largest absolute difference at which two numeric cells are equal.
	Tolerance decimal.Decimal
}

// Compare checks columns, then row count, then cell values, and reports the first class
// that differs. It returns nil when the tables are equal.
func Compare(expected, actual *Table, opts CompareOptions) *Diff {
	if !sameColumns(expected.Columns, actual.Columns) {
		return &Diff{
			Kind:    DiffSchema,
			Summary: fmt.Sprintf("column mismatch: expected %s, got %s", formatColumns(expected.Columns), formatColumns(actual.Columns)),
		}
	}
	if len(expected.Rows) != len(actual.Rows) {
		return &Diff{
			Kind:    DiffRowCount,
			Summary: fmt.Sprintf("row count mismatch: expected %d, got %d", len(expected.Rows), len(actual.Rows)),
		}
	}

	var d *Diff
	for r := range expected.Rows {
		for c, col := range expected.Columns {
			want, got := cell(expected.Rows[r], c), cell(actual.Rows[r], c)
			if CellsEqual(want, got, opts.Tolerance) {
				continue
			}
			if d == nil {
				d = &Diff{Kind: DiffValue, FirstRow: r + 1, FirstCol: col, Expected: want, Got: got}
			}
			d.Cells++
		}
	}
	if d != nil {
		d.Summary = fmt.Sprintf("value mismatch: %d cell(s) differ; first at row %d, column %q: expected %q, got %q",
			d.Cells, d.FirstRow, d.FirstCol, d.Expected, d.Got)
	}
	return d
}

// CellsEqual compares two cells after trimming. Two decimals are equal within tol;
// anything else must match exactly.
func CellsEqual(a, b string, tol decimal.Decimal) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA != nil || errB != nil {
		return false
	}
	return da.Sub(db).Abs().LessThanOrEqual(tol)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != strings.TrimSpace(b[i]) {
			return false
		}
	}
	return true
}

func formatColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
