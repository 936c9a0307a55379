// Package snapshot holds captured query results and their content fingerprints.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Table is an ordered set of named columns and rows produced by a query.
// Cells hold nil, string, int64, float64, bool or time.Time.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTable builds a table from raw driver values, normalizing column names and cells.
func NewTable(columns []string, rows [][]any) *Table {
	t := &Table{
		Columns: NormalizeColumns(columns),
		Rows:    make([][]any, len(rows)),
	}
	for i, row := range rows {
		normalized := make([]any, len(row))
		for j, v := range row {
			normalized[j] = NormalizeValue(v)
		}
		t.Rows[i] = normalized
	}
	return t
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy; cells are immutable values so a row-level copy suffices.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	c := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, row := range t.Rows {
		c.Rows[i] = append([]any(nil), row...)
	}
	return c
}

// NormalizeColumns suffixes repeated column names with _1, _2, ... in order of
// appearance, leaving the first occurrence unchanged. A generated name that would
// clash with a name already emitted keeps counting so the result is always unique.
func NormalizeColumns(columns []string) []string {
	seen := make(map[string]int, len(columns))
	used := make(map[string]bool, len(columns))
	out := make([]string, len(columns))

	for i, col := range columns {
		if !used[col] {
			seen[col] = 0
			used[col] = true
			out[i] = col
			continue
		}

		n := seen[col]
		candidate := col
		for used[candidate] {
			n++
			candidate = col + "_" + strconv.Itoa(n)
		}
		seen[col] = n
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// NormalizeValue converts driver values into the small set of cell types a Table holds.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case string, int64, float64, bool:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
