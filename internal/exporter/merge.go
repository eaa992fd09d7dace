package exporter

import (
	"errors"
	"fmt"
	"strings"

	"twexport/pkg/contracts/domain"
)

var (
	// ErrDateConflict is returned when the institutional table holds two
	// records for the same date with different values.
	ErrDateConflict = errors.New("conflicting institutional records for the same date")

	// ErrMalformedColumns is returned for duplicate or colliding column labels.
	ErrMalformedColumns = errors.New("malformed institutional columns")
)

// isAdjCloseName matches every spelling of the adjusted-close field.
func isAdjCloseName(name string) bool {
	n := strings.ToLower(name)
	n = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(n)
	return n == "adjclose"
}

// FlattenColumns reduces two-level price columns to their field names. The
// first column is the date index and is always named Date, whatever its
// label. Adjusted-close columns are dropped from unadjusted series.
func FlattenColumns(cols []domain.Column, adjusted bool) []string {
	out := make([]string, 0, len(cols))
	for i, c := range cols {
		name := c.Field
		if i == 0 || strings.EqualFold(name, domain.PriceFieldDate) {
			continue
		}
		if !adjusted && isAdjCloseName(name) {
			continue
		}
		out = append(out, name)
	}
	return append([]string{domain.PriceFieldDate}, out...)
}

// priceCell reads a flattened price field from a row.
func priceCell(row domain.PriceSeriesRow, field string) (domain.Cell, error) {
	switch field {
	case domain.PriceFieldOpen:
		return domain.NewCell(row.Open), nil
	case domain.PriceFieldHigh:
		return domain.NewCell(row.High), nil
	case domain.PriceFieldLow:
		return domain.NewCell(row.Low), nil
	case domain.PriceFieldClose:
		return domain.NewCell(row.Close), nil
	case domain.PriceFieldVolume:
		return domain.NewCell(float64(row.Volume)), nil
	}
	if isAdjCloseName(field) {
		if row.AdjClose == nil {
			return domain.Cell{}, nil
		}
		return domain.NewCell(*row.AdjClose), nil
	}
	return domain.Cell{}, fmt.Errorf("unknown price column %q", field)
}

// Merge left-outer joins the price series with the institutional table on
// the calendar date. Every price row appears exactly once; institutional
// cells without a matching date are null. A nil or empty table yields the
// price series alone.
func Merge(price *domain.PriceSeries, inst *domain.InstitutionalTable) (*domain.CombinedTable, error) {
	if price == nil {
		return nil, errors.New("merge: nil price series")
	}

	cols := price.Columns
	if len(cols) == 0 {
		cols = domain.DefaultPriceColumns(price.Ticker, price.Adjusted)
	}
	columns := FlattenColumns(cols, price.Adjusted)
	priceFields := columns[1:]

	var (
		instCols []domain.InstitutionalColumn
		byDate   map[string]domain.DailyInstitutionalRecord
	)
	if !inst.IsEmpty() {
		var err error
		instCols, err = institutionalColumns(columns, inst)
		if err != nil {
			return nil, err
		}
		byDate, err = indexByDate(inst)
		if err != nil {
			return nil, err
		}
		for _, c := range instCols {
			columns = append(columns, c.Label)
		}
	}

	table := &domain.CombinedTable{
		Columns: columns,
		Rows:    make([]domain.CombinedRow, 0, len(price.Rows)),
	}

	for _, row := range price.Rows {
		key := row.DateKey()
		values := make([]domain.Cell, 0, len(columns)-1)
		for _, f := range priceFields {
			c, err := priceCell(row, f)
			if err != nil {
				return nil, err
			}
			values = append(values, c)
		}
		if instCols != nil {
			rec, ok := byDate[key]
			for _, c := range instCols {
				if !ok {
					values = append(values, domain.Cell{})
					continue
				}
				v := inst.Cell(rec, c)
				if v.Valid {
					values = append(values, domain.NewCell(v.Decimal.InexactFloat64()))
				} else {
					values = append(values, domain.Cell{})
				}
			}
		}
		table.Rows = append(table.Rows, domain.CombinedRow{Date: key, Values: values})
	}

	return table, nil
}

// institutionalColumns returns the numeric columns to join. Labels must be
// unique and must not collide with price columns.
func institutionalColumns(priceColumns []string, inst *domain.InstitutionalTable) ([]domain.InstitutionalColumn, error) {
	seen := make(map[string]bool, len(priceColumns)+len(inst.Columns))
	for _, c := range priceColumns {
		seen[c] = true
	}
	out := make([]domain.InstitutionalColumn, 0, len(inst.Columns))
	for _, c := range inst.Columns {
		if c.Label == domain.ColumnSecurityID || c.Label == domain.ColumnSecurityName || c.Label == domain.ColumnTradeDate {
			continue
		}
		if c.Label == "" {
			return nil, fmt.Errorf("%w: blank label", ErrMalformedColumns)
		}
		if seen[c.Label] {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrMalformedColumns, c.Label)
		}
		seen[c.Label] = true
		out = append(out, c)
	}
	return out, nil
}

// indexByDate keys records by canonical date. Identical duplicates collapse.
func indexByDate(inst *domain.InstitutionalTable) (map[string]domain.DailyInstitutionalRecord, error) {
	out := make(map[string]domain.DailyInstitutionalRecord, inst.Len())
	for _, rec := range inst.Records {
		key := rec.DateKey()
		prev, ok := out[key]
		if ok {
			if !sameValues(inst, prev, rec) {
				return nil, fmt.Errorf("%w: %s", ErrDateConflict, key)
			}
			continue
		}
		out[key] = rec
	}
	return out, nil
}

func sameValues(inst *domain.InstitutionalTable, a, b domain.DailyInstitutionalRecord) bool {
	for _, c := range inst.Columns {
		va, vb := inst.Cell(a, c), inst.Cell(b, c)
		if va.Valid != vb.Valid {
			return false
		}
		if va.Valid && !va.Decimal.Equal(vb.Decimal) {
			return false
		}
	}
	return true
}

// PriceOnly returns the combined table for a price series without joining.
func PriceOnly(price *domain.PriceSeries) (*domain.CombinedTable, error) {
	return Merge(price, nil)
}
