package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// Table is a header row plus string cells. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnKind is the coarse type inferred for a column from its non-empty cells.
type ColumnKind string

const (
	KindNumber ColumnKind = "number"
	KindDate   ColumnKind = "date"
	KindText   ColumnKind = "text"
	KindEmpty  ColumnKind = "empty"
)

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("csv has no header row")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads CSV with a header row. Quoting is lenient and leading spaces are trimmed.
func Parse(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	records, err := gocsv.LazyCSVReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoHeader
	}

	t := &Table{Columns: make([]string, len(records[0]))}
	for i, c := range records[0] {
		t.Columns[i] = strings.TrimSpace(c)
	}
	t.Rows = records[1:]
	return t, nil
}

// LoadFile parses the CSV file at path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Head returns up to n data rows.
func (t *Table) Head(n int) [][]string {
	if t == nil || n <= 0 {
		return nil
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// WriteCSV writes the header and rows as CSV.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

var reDate = regexp.MustCompile(`^(\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}|\d{1,2}[ -][A-Za-z]{3,9}[ -]\d{2,4}|[A-Za-z]{3,9} \d{1,2},? \d{4})$`)

// ColumnKinds infers a kind per column. A column is a number when every non-empty cell
// parses as a decimal, a date when every non-empty cell looks like a date, else text.
func (t *Table) ColumnKinds() []ColumnKind {
	kinds := make([]ColumnKind, len(t.Columns))
	for c := range t.Columns {
		kinds[c] = t.columnKind(c)
	}
	return kinds
}

func (t *Table) columnKind(c int) ColumnKind {
	seen, numbers, dates := 0, 0, 0
	for _, row := range t.Rows {
		if c >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[c])
		if v == "" {
			continue
		}
		seen++
		if _, err := decimal.NewFromString(v); err == nil {
			numbers++
		} else if reDate.MatchString(v) {
			dates++
		}
	}
	switch {
	case seen == 0:
		return KindEmpty
	case numbers == seen:
		return KindNumber
	case dates == seen:
		return KindDate
	default:
		return KindText
	}
}
