package domain

import (
	"bytes"
	"encoding/json"
)

// Cell is a nullable numeric value in a CombinedTable.
type Cell struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// NewCell returns a valid cell.
func NewCell(v float64) Cell {
	return Cell{Value: v, Valid: true}
}

// MarshalJSON renders missing cells as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return formatJSONFloat(c.Value), nil
}

// UnmarshalJSON accepts a number or null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Cell{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = NewCell(v)
	return nil
}

// CombinedRow is one trading day of the merged table.
type CombinedRow struct {
	Date   string `json:"date"`
	Values []Cell `json:"values"`
}

// CombinedTable is the left-outer join of a price series and an
// institutional table on the canonical date. Columns[0] is always "Date";
// Values of each row align with Columns[1:].
type CombinedTable struct {
	Columns []string      `json:"columns"`
	Rows    []CombinedRow `json:"rows"`
}

// Len returns the number of rows.
func (t *CombinedTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of name within a row's Values, or -1.
func (t *CombinedTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i - 1
		}
	}
	return -1
}

// Tail returns the last n rows.
func (t *CombinedTable) Tail(n int) []CombinedRow {
	if t == nil || n <= 0 {
		return nil
	}
	if n >= len(t.Rows) {
		return t.Rows
	}
	return t.Rows[len(t.Rows)-n:]
}
