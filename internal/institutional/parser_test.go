package institutional

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twexport/pkg/contracts/domain"
)

func TestSplitFields(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "quoted thousands separator",
			line: `="2330","台積電","1,234,567",`,
			want: []string{`="2330"`, `"台積電"`, `"1,234,567"`, ``},
		},
		{
			name: "plain cells",
			line: `a,b,c`,
			want: []string{"a", "b", "c"},
		},
		{
			name: "empty quoted cell",
			line: `"",""`,
			want: []string{`""`, `""`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitFields(tt.line))
		})
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`="1,234"`, "1234"},
		{`="2330"`, "2330"},
		{`"-5,000"`, "-5000"},
		{`" 台積電 "`, "台積電"},
		{`""`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanCell(tt.in))
		})
	}
}

func TestCoerce(t *testing.T) {
	v := coerce("1234")
	require.True(t, v.Valid)
	assert.True(t, v.Decimal.Equal(decimal.NewFromInt(1234)))

	assert.True(t, coerce("-42").Valid)
	assert.False(t, coerce("").Valid)
	assert.False(t, coerce("--").Valid)
	assert.False(t, coerce("n/a").Valid)
}

func TestParseSheet_FiltersShortLines(t *testing.T) {
	day := time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)
	body := t86Body(day, uniformRow("2330", "台積電", "1,000"), uniformRow("2317", "鴻海", "2,000"))

	sheet, err := ParseSheet([]byte(body))
	require.NoError(t, err)

	// title and footnotes are dropped, trailing unnamed column removed
	assert.Equal(t, t86Header, sheet.Header)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "2330", sheet.Rows[0][0])
	assert.Equal(t, "1000", sheet.Rows[0][2])
	for _, row := range sheet.Rows {
		assert.Len(t, row, len(sheet.Header))
	}
}

func TestParseSheet_NoTable(t *testing.T) {
	_, err := ParseSheet([]byte("\"很抱歉，沒有符合條件的資料!\"\r\n"))
	assert.ErrorIs(t, err, ErrEmptyReport)
}

func TestParseSheet_Big5(t *testing.T) {
	day := time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)
	body := big5(t86Body(day, uniformRow("2330", "台積電", "1,000")))

	sheet, err := ParseSheet(body)
	require.NoError(t, err)
	assert.Equal(t, domain.ColumnSecurityID, sheet.Header[0])
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, "台積電", sheet.Rows[0][1])
}

func TestSheetRecords(t *testing.T) {
	day := time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)
	row := uniformRow("2330", "台積電", "1,234")
	row.values[16] = "--"
	body := t86Body(day, row, uniformRow("2317", "鴻海", "9"))

	sheet, err := ParseSheet([]byte(body))
	require.NoError(t, err)

	records, columns, err := sheet.Records(DefaultSchema(), "2330", day)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, columns, 17)

	rec := records[0]
	assert.Equal(t, "2330", rec.SecurityID)
	assert.Equal(t, "台積電", rec.SecurityName)
	assert.Equal(t, day, rec.Date)
	assert.Empty(t, rec.Extra)

	foreignBuy := rec.Value(domain.FieldForeignBuy)
	require.True(t, foreignBuy.Valid)
	assert.Equal(t, "1234", foreignBuy.Decimal.String())
	assert.False(t, rec.Value(domain.FieldTotalNet).Valid)
}

func TestSheetRecords_UnknownColumnKept(t *testing.T) {
	sheet := &Sheet{
		Header: append(append([]string{}, t86Header...), "新欄位"),
		Rows:   [][]string{append(append([]string{"2330", "台積電"}, make([]string, 17)...), "77")},
	}

	records, columns, err := sheet.Records(DefaultSchema(), "2330", time.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "新欄位", columns[len(columns)-1].Label)
	assert.Empty(t, columns[len(columns)-1].Field)
	require.Len(t, records[0].Extra, 1)
	assert.Equal(t, "77", records[0].Extra[0].Value.Decimal.String())
}

func TestSheetRecords_MissingIDColumn(t *testing.T) {
	sheet := &Sheet{Header: []string{"foo"}, Rows: [][]string{{"1"}}}
	_, _, err := sheet.Records(DefaultSchema(), "2330", time.Now())
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestSchema_LegacyAliases(t *testing.T) {
	s := DefaultSchema()
	f, ok := s.Field("外資買進股數")
	require.True(t, ok)
	assert.Equal(t, domain.FieldForeignBuy, f)

	_, ok = s.Field("Unnamed: 19")
	assert.False(t, ok)
	assert.True(t, isSynthetic("Unnamed: 19"))
	assert.True(t, isSynthetic(""))
}
