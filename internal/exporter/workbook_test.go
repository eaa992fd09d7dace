package exporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"twexport/internal/config"
	"twexport/pkg/contracts/domain"
)

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestBuildWorkbook_WithInstitutional(t *testing.T) {
	price := priceSeries(false, "2024-09-12", "2024-09-13")
	inst := instTable(map[string]int64{"2024-09-12": 1500})
	combined, err := Merge(price, inst)
	require.NoError(t, err)

	data, err := BuildWorkbook(combined, inst)
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{SheetCombined, SheetInstitutional}, f.GetSheetList())

	rows, err := f.GetRows(SheetCombined)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, combined.Columns, rows[0])
	assert.Equal(t, "2024-09-12", rows[1][0])
	assert.Equal(t, "1500", rows[1][combined.ColumnIndex("外陸資買賣超股數(不含外資自營商)")+1])

	// null institutional cell on the second date is left empty
	v, err := f.GetCellValue(SheetCombined, "G3")
	require.NoError(t, err)
	assert.Empty(t, v)

	dateType, err := f.GetCellType(SheetCombined, "A2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeNumber, dateType)

	instRows, err := f.GetRows(SheetInstitutional)
	require.NoError(t, err)
	require.Len(t, instRows, 2)
	assert.Equal(t, []string{domain.ColumnTradeDate, domain.ColumnSecurityID, domain.ColumnSecurityName}, instRows[0][:3])
	assert.Equal(t, "2330", instRows[1][1])
	assert.Equal(t, "台積電", instRows[1][2])
}

func TestBuildWorkbook_PriceOnly(t *testing.T) {
	price := priceSeries(true, "2024-09-12")
	combined, err := PriceOnly(price)
	require.NoError(t, err)

	data, err := NewExcelWriter().Write(combined, nil)
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{SheetCombined}, f.GetSheetList())

	rows, err := f.GetRows(SheetCombined)
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"}, rows[0])
}

func TestBuildWorkbook_Nil(t *testing.T) {
	_, err := BuildWorkbook(nil, nil)
	assert.Error(t, err)
}

func TestCSVWriter_WriteCombined(t *testing.T) {
	paths := config.NewPaths(t.TempDir(), config.PathsConfig{})
	w := NewCSVWriter(paths)

	price := priceSeries(false, "2024-09-12")
	inst := instTable(map[string]int64{"2024-09-12": 1500})
	combined, err := Merge(price, inst)
	require.NoError(t, err)

	path, err := w.WriteCombined("2330_2024-09-12_2024-09-12.csv", combined)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(paths.ExportsDir, "2330_2024-09-12_2024-09-12.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	lines := strings.Split(strings.TrimSpace(string(data[len(utf8BOM):])), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Open,High,Low,Close,Volume,外陸資買賣超股數(不含外資自營商),三大法人買賣超股數", lines[0])
	assert.Equal(t, "2024-09-12,100,110,90,105,1000,1500,", lines[1])
}

func TestWriteCombinedTo(t *testing.T) {
	combined, err := PriceOnly(priceSeries(false, "2024-09-12"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCombinedTo(&buf, combined))
	assert.Contains(t, buf.String(), "Date,Open,High,Low,Close,Volume")
}
