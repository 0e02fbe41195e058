package table

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		cols    []string
		rows    int
		wantErr error
	}{
		{
			name:  "header and rows",
			input: "Date,Description,Amount\n01-08-2024,Salary,100.00\n02-08-2024,Rent,-50\n",
			cols:  []string{"Date", "Description", "Amount"},
			rows:  2,
		},
		{
			name:  "bom and padded header",
			input: "\xEF\xBB\xBF Date , Amount\n01-08-2024, 1\n",
			cols:  []string{"Date", "Amount"},
			rows:  1,
		},
		{
			name:  "header only",
			input: "a,b\n",
			cols:  []string{"a", "b"},
			rows:  0,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: ErrNoHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cols, got.Columns)
			assert.Equal(t, tt.rows, got.NumRows())
		})
	}
}

func TestParse_RaggedRowsFail(t *testing.T) {
	_, err := Parse(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,y\n1,2\n"), 0o644))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}}, got.Rows)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHead(t *testing.T) {
	tb := &Table{Columns: []string{"a"}, Rows: [][]string{{"1"}, {"2"}, {"3"}, {"4"}}}
	assert.Len(t, tb.Head(3), 3)
	assert.Len(t, tb.Head(10), 4)
	assert.Nil(t, tb.Head(0))
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	tb := &Table{Columns: []string{"Description", "Amount"}, Rows: [][]string{{"Coffee, large", "3.50"}}}
	var buf bytes.Buffer
	require.NoError(t, tb.WriteCSV(&buf))

	back, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, tb, back)
}

func TestColumnKinds(t *testing.T) {
	tb := &Table{
		Columns: []string{"Date", "Description", "Debit", "Credit", "Balance"},
		Rows: [][]string{
			{"01-08-2024", "Salary Credit", "", "5000.00", "6000.00"},
			{"02-08-2024", "ATM", "200", "", "5800.00"},
			{"2024/08/03", "UPI 123", "", "", "5800"},
		},
	}
	assert.Equal(t,
		[]ColumnKind{KindDate, KindText, KindNumber, KindNumber, KindNumber},
		tb.ColumnKinds())

	empty := &Table{Columns: []string{"x"}, Rows: [][]string{{""}}}
	assert.Equal(t, []ColumnKind{KindEmpty}, empty.ColumnKinds())
}
