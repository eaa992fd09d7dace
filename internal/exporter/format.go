package exporter

import (
	"math"
	"strconv"

	"twexport/pkg/contracts/domain"
)

// formatFloat formats a float64 with the fewest digits that round-trip
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// formatCell renders a nullable cell; whole numbers print without decimals
func formatCell(c domain.Cell) string {
	if !c.Valid {
		return ""
	}
	if c.Value == math.Trunc(c.Value) && math.Abs(c.Value) < 1e15 {
		return formatInt(int64(c.Value))
	}
	return formatFloat(c.Value)
}
