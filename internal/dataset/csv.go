// Package dataset reads and writes the fixed-column CSV tables the fitting
// programs consume and produce.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrMissingColumn is returned when a required column is absent from the header.
	ErrMissingColumn = errors.New("dataset: missing column")

	// ErrEmpty is returned for a file without data rows.
	ErrEmpty = errors.New("dataset: no data rows")
)

// Table holds float columns keyed by header name.
type Table struct {
	Columns map[string][]float64
	Rows    int
}

// Column returns the named column, or nil when it was not read.
func (t Table) Column(name string) []float64 {
	return t.Columns[name]
}

// ReadCSV reads the file at path and returns the named columns. Header names
// are matched case-insensitively after trimming; extra columns are ignored
// and lines starting with '#' are comments.
func ReadCSV(path string, columns []string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("CSV: cannot open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, columns)
}

// Parse is ReadCSV over an arbitrary reader.
func Parse(r io.Reader, columns []string) (Table, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, ErrEmpty
		}
		return Table{}, fmt.Errorf("CSV: cannot read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	pos := make([]int, len(columns))
	for k, name := range columns {
		i, ok := index[strings.ToLower(name)]
		if !ok {
			return Table{}, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		pos[k] = i
	}

	t := Table{Columns: make(map[string][]float64, len(columns))}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return Table{}, fmt.Errorf("CSV: row %d: %w", line, err)
		}
		for k, name := range columns {
			raw := strings.TrimSpace(rec[pos[k]])
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return Table{}, fmt.Errorf("CSV: row %d column %q: cannot parse %q: %w", line, name, raw, err)
			}
			t.Columns[name] = append(t.Columns[name], v)
		}
		t.Rows++
	}
	if t.Rows == 0 {
		return Table{}, ErrEmpty
	}
	return t, nil
}

// WriteCSV saves equal-length columns to filename with a header row,
// creating the parent directory when needed.
func WriteCSV(filename string, header []string, cols [][]float64) error {
	if len(cols) == 0 {
		return errors.New("CSV: no columns")
	}
	if len(header) != len(cols) {
		return fmt.Errorf("CSV: %d header names for %d columns", len(header), len(cols))
	}
	n := len(cols[0])
	for _, c := range cols {
		if len(c) != n {
			return errors.New("CSV: column size mismatch")
		}
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("CSV: cannot create directory: %w", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("CSV: cannot open %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("CSV: cannot write header: %w", err)
	}

	row := make([]string, len(cols))
	for r := 0; r < n; r++ {
		for c := range cols {
			row[c] = strconv.FormatFloat(cols[c][r], 'g', 15, 64)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("CSV: cannot write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("CSV: flush: %w", err)
	}
	return f.Close()
}

// WriteRecords saves pre-formatted string rows, used for mixed text and
// numeric tables such as parameter summaries.
func WriteRecords(filename string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("CSV: cannot create directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("CSV: cannot open %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("CSV: cannot write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("CSV: cannot write rows: %w", err)
	}
	return f.Close()
}
