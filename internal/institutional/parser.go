package institutional

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/traditionalchinese"

	"twexport/pkg/contracts/domain"
)

// minFields is the number of `,"` separated parts a line needs to be part of
// the data table. Title and footnote lines have fewer.
const minFields = 10

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Sheet is the cleaned tabular content of one daily report.
type Sheet struct {
	Header []string
	Rows   [][]string
}

// decodeBody returns the body as UTF-8. The exchange serves MS950.
func decodeBody(body []byte) ([]byte, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	if utf8.Valid(body) {
		return body, nil
	}
	out, err := traditionalchinese.Big5.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode big5 body: %w", err)
	}
	return out, nil
}

// ParseSheet turns a raw report body into a Sheet. The first line that passes
// the field-count filter is the header. Blank and synthetic columns are
// dropped from the header and every row.
func ParseSheet(body []byte) (*Sheet, error) {
	text, err := decodeBody(body)
	if err != nil {
		return nil, err
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if len(strings.Split(line, ",\"")) >= minFields {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan report body: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyReport
	}

	header := splitFields(lines[0])
	keep := make([]int, 0, len(header))
	sheet := &Sheet{}
	for i, h := range header {
		h = cleanCell(h)
		if isSynthetic(h) {
			continue
		}
		keep = append(keep, i)
		sheet.Header = append(sheet.Header, h)
	}

	for _, line := range lines[1:] {
		fields := splitFields(line)
		row := make([]string, len(keep))
		for j, i := range keep {
			if i < len(fields) {
				row[j] = cleanCell(fields[i])
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// splitFields splits a CSV line on commas outside double quotes. Quotes are
// kept in the output; cleanCell removes them. encoding/csv rejects the
// exchange's `="2330"` cells because the quote does not open the field.
func splitFields(line string) []string {
	var (
		fields  []string
		inQuote bool
		start   int
	)
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				fields = append(fields, line[start:i])
				start = i + 1
			}
		}
	}
	return append(fields, line[start:])
}

var cellReplacer = strings.NewReplacer("=", "", ",", "", "\"", "")

// cleanCell strips spreadsheet formula markers, thousands separators and
// quotes.
func cleanCell(s string) string {
	return strings.TrimSpace(cellReplacer.Replace(s))
}

// column returns the index of label in the header, or -1.
func (s *Sheet) column(label string) int {
	for i, h := range s.Header {
		if h == label {
			return i
		}
	}
	return -1
}

// Records returns the rows of securityID stamped with date. Numeric cells
// that do not parse are recorded as missing.
func (s *Sheet) Records(schema *Schema, securityID string, date time.Time) ([]domain.DailyInstitutionalRecord, []domain.InstitutionalColumn, error) {
	idCol := s.column(domain.ColumnSecurityID)
	if idCol < 0 {
		return nil, nil, fmt.Errorf("%w: column %s", ErrMissingColumn, domain.ColumnSecurityID)
	}
	nameCol := s.column(domain.ColumnSecurityName)

	var columns []domain.InstitutionalColumn
	for _, h := range s.Header {
		if isIdentity(h) {
			continue
		}
		col := domain.InstitutionalColumn{Label: h}
		if f, ok := schema.Field(h); ok {
			col.Field = f
		}
		columns = append(columns, col)
	}

	var records []domain.DailyInstitutionalRecord
	for _, row := range s.Rows {
		if row[idCol] != securityID {
			continue
		}
		rec := domain.DailyInstitutionalRecord{
			Date:       date,
			SecurityID: securityID,
			Values:     make(map[domain.InstitutionalField]decimal.NullDecimal, len(domain.InstitutionalFields)),
		}
		if nameCol >= 0 {
			rec.SecurityName = row[nameCol]
		}
		for i, h := range s.Header {
			if isIdentity(h) {
				continue
			}
			v := coerce(row[i])
			if f, ok := schema.Field(h); ok {
				rec.Values[f] = v
			} else {
				rec.Extra = append(rec.Extra, domain.NamedValue{Label: h, Value: v})
			}
		}
		records = append(records, rec)
	}
	return records, columns, nil
}

// coerce parses a cleaned numeric cell. Anything unparsable is missing.
func coerce(s string) decimal.NullDecimal {
	if s == "" || s == "-" || s == "--" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
