package institutional

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/traditionalchinese"
)

var t86Header = []string{
	"證券代號", "證券名稱",
	"外陸資買進股數(不含外資自營商)", "外陸資賣出股數(不含外資自營商)", "外陸資買賣超股數(不含外資自營商)",
	"外資自營商買進股數", "外資自營商賣出股數", "外資自營商買賣超股數",
	"投信買進股數", "投信賣出股數", "投信買賣超股數",
	"自營商買賣超股數",
	"自營商買進股數(自行買賣)", "自營商賣出股數(自行買賣)", "自營商買賣超股數(自行買賣)",
	"自營商買進股數(避險)", "自營商賣出股數(避險)", "自營商買賣超股數(避險)",
	"三大法人買賣超股數",
}

// t86Row is one security line of a fixture report.
type t86Row struct {
	id, name string
	values   []string // 17 numeric cells, formatted as the exchange does
}

func uniformRow(id, name, v string) t86Row {
	values := make([]string, len(t86Header)-2)
	for i := range values {
		values[i] = v
	}
	return t86Row{id: id, name: name, values: values}
}

// t86Body renders a report the way the exchange serves it: a title line,
// a header with a trailing comma, `="..."` id cells and footnotes.
func t86Body(date time.Time, rows ...t86Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\"%d年%02d月%02d日 三大法人買賣超日報\"\r\n", date.Year()-1911, int(date.Month()), date.Day())

	quoted := make([]string, len(t86Header))
	for i, h := range t86Header {
		quoted[i] = `"` + h + `"`
	}
	b.WriteString(strings.Join(quoted, ",") + ",\r\n")

	for _, r := range rows {
		cells := []string{`="` + r.id + `"`, `"` + r.name + `"`}
		for _, v := range r.values {
			cells = append(cells, `"`+v+`"`)
		}
		b.WriteString(strings.Join(cells, ",") + ",\r\n")
	}

	b.WriteString("\"說明:\"\r\n")
	b.WriteString("\"1.外陸資包含外國機構投資人及陸資\",\"\"\r\n")
	return b.String()
}

func big5(s string) []byte {
	out, err := traditionalchinese.Big5.NewEncoder().String(s)
	if err != nil {
		panic(err)
	}
	return []byte(out)
}
