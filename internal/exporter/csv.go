package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"twexport/internal/config"
	"twexport/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths *config.Paths
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) (string, error) {
	fullPath := w.resolvePath(filePath)

	slog.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if err := writeRecords(file, options); err != nil {
		return "", err
	}
	return fullPath, nil
}

// WriteCombined writes a combined table to filePath with a UTF-8 BOM.
func (w *CSVWriter) WriteCombined(filePath string, table *domain.CombinedTable) (string, error) {
	return w.WriteCSV(filePath, CombinedOptions(table))
}

// WriteCombinedTo writes a combined table to out with a UTF-8 BOM.
func WriteCombinedTo(out io.Writer, table *domain.CombinedTable) error {
	return writeRecords(out, CombinedOptions(table))
}

// CombinedOptions renders a combined table as CSV rows. Null cells are empty.
func CombinedOptions(table *domain.CombinedTable) WriteOptions {
	records := make([][]string, 0, table.Len())
	for _, row := range table.Rows {
		rec := make([]string, 0, len(row.Values)+1)
		rec = append(rec, row.Date)
		for _, v := range row.Values {
			rec = append(rec, formatCell(v))
		}
		records = append(records, rec)
	}
	return WriteOptions{Headers: table.Columns, Records: records, BOMPrefix: true}
}

func writeRecords(out io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// resolvePath places relative file names in the exports directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil {
		return filePath
	}
	return w.paths.GetExportPath(filePath)
}
