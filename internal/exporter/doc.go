// Package exporter turns fetched price and institutional data into
// downloadable tables.
//
// Merge left-outer joins a price series with an institutional table on the
// YYYY-MM-DD date and flattens two-level price columns. BuildWorkbook writes
// the result to an .xlsx workbook with a Combined sheet and, when
// institutional data was fetched, an Institutional sheet. CSVWriter writes the
// combined table as UTF-8 CSV with a BOM for Excel.
//
// Example usage:
//
//	combined, err := exporter.Merge(series, institutional)
//	if err != nil {
//		combined, _ = exporter.PriceOnly(series)
//	}
//	data, err := exporter.BuildWorkbook(combined, institutional)
package exporter
