package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrNoColumn = errors.New("no such column")

// dateLayouts are tried in order when a cell is read as a date.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// Table is an immutable in-memory table of string cells.
type Table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// NewTable builds a table. Every row must have one cell per column.
func NewTable(header []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[h]; dup {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		index[h] = i
	}
	for i, r := range rows {
		if len(r) != len(header) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i+1, len(r), len(header))
		}
	}
	return &Table{header: header, index: index, rows: rows}, nil
}

// Columns returns the header.
func (t *Table) Columns() []string { return append([]string(nil), t.header...) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Column returns the cells of one column.
func (t *Table) Column(name string) ([]string, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoColumn, name)
	}
	out := make([]string, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, nil
}

// Floats parses one column as numbers.
func (t *Table) Floats(name string) ([]float64, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: %w", name, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// Filter keeps rows where the column compares to value with op
// (==, !=, <, <=, >, >=). Cells compare as dates, then numbers, then text.
func (t *Table) Filter(col, op, value string) (*Table, error) {
	i, ok := t.index[col]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoColumn, col)
	}
	keep, err := comparator(op)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, row := range t.rows {
		if keep(compare(row[i], value)) {
			rows = append(rows, row)
		}
	}
	return &Table{header: t.header, index: t.index, rows: rows}, nil
}

// SortBy orders rows by a column ascending, stable.
func (t *Table) SortBy(col string) (*Table, error) {
	i, ok := t.index[col]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoColumn, col)
	}
	rows := append([][]string(nil), t.rows...)
	sort.SliceStable(rows, func(a, b int) bool {
		return compare(rows[a][i], rows[b][i]) < 0
	})
	return &Table{header: t.header, index: t.index, rows: rows}, nil
}

// DateRange returns the earliest and latest date of a column.
func (t *Table) DateRange(col string) (time.Time, time.Time, error) {
	cells, err := t.Column(col)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	var lo, hi time.Time
	for i, c := range cells {
		d, ok := parseDate(c)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("column %s row %d: not a date: %q", col, i+1, c)
		}
		if lo.IsZero() || d.Before(lo) {
			lo = d
		}
		if hi.IsZero() || d.After(hi) {
			hi = d
		}
	}
	if lo.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("column %s is empty", col)
	}
	return lo, hi, nil
}

// Summary describes a numeric column.
type Summary struct {
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Summarize computes Summary for a numeric column.
func (t *Table) Summarize(col string) (Summary, error) {
	values, err := t.Floats(col)
	if err != nil {
		return Summary{}, err
	}
	if len(values) == 0 {
		return Summary{}, nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := Summary{
		Count:  len(values),
		Sum:    floats.Sum(values),
		Mean:   stat.Mean(values, nil),
		Min:    sorted[0],
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
	if len(values) > 1 {
		s.StdDev = stat.StdDev(values, nil)
	}
	return s, nil
}

// Point is one (x, y) sample of a series.
type Point struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// Series groups (x, y) points by the value of the by column. An empty by
// yields a single group named after y.
func (t *Table) Series(x, y, by string) (map[string][]Point, error) {
	xi, ok := t.index[x]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoColumn, x)
	}
	ys, err := t.Floats(y)
	if err != nil {
		return nil, err
	}
	bi := -1
	if by != "" {
		if bi, ok = t.index[by]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoColumn, by)
		}
	}

	out := map[string][]Point{}
	for r, row := range t.rows {
		group := y
		if bi >= 0 {
			group = row[bi]
		}
		out[group] = append(out[group], Point{X: row[xi], Y: ys[r]})
	}
	return out, nil
}

// Records returns rows as column→cell maps.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.rows))
	for r, row := range t.rows {
		rec := make(map[string]string, len(t.header))
		for i, h := range t.header {
			rec[h] = row[i]
		}
		out[r] = rec
	}
	return out
}

// ShiftMonths moves t by n calendar months, clamping to the last day of the
// target month.
func ShiftMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func compare(a, b string) int {
	if da, ok := parseDate(a); ok {
		if db, ok := parseDate(b); ok {
			return da.Compare(db)
		}
	}
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil && !math.IsNaN(fa) && !math.IsNaN(fb) {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func comparator(op string) (func(int) bool, error) {
	switch op {
	case "==":
		return func(c int) bool { return c == 0 }, nil
	case "!=":
		return func(c int) bool { return c != 0 }, nil
	case "<":
		return func(c int) bool { return c < 0 }, nil
	case "<=":
		return func(c int) bool { return c <= 0 }, nil
	case ">":
		return func(c int) bool { return c > 0 }, nil
	case ">=":
		return func(c int) bool { return c >= 0 }, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}
