package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON decodes numbers as int64 where possible so a table that
// round-trips through a client keeps the fingerprint it was loaded with.
func (t *Table) UnmarshalJSON(data []byte) error {
	var raw struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode table: %w", err)
	}

	for i, row := range raw.Rows {
		if len(row) != len(raw.Columns) {
			return fmt.Errorf("decode table: row %d has %d cells, expected %d", i, len(row), len(raw.Columns))
		}
	}

	*t = *NewTable(raw.Columns, raw.Rows)
	return nil
}
