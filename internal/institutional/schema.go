package institutional

import (
	"strings"

	"twexport/pkg/contracts/domain"
)

// headerFields maps exchange header text to schema fields. The report renamed
// its foreign-investor columns in 2017; the old spellings are aliases.
var headerFields = map[string]domain.InstitutionalField{
	"外陸資買進股數(不含外資自營商)":   domain.FieldForeignBuy,
	"外陸資賣出股數(不含外資自營商)":   domain.FieldForeignSell,
	"外陸資買賣超股數(不含外資自營商)":  domain.FieldForeignNet,
	"外資自營商買進股數":          domain.FieldForeignDealerBuy,
	"外資自營商賣出股數":          domain.FieldForeignDealerSell,
	"外資自營商買賣超股數":         domain.FieldForeignDealerNet,
	"投信買進股數":             domain.FieldTrustBuy,
	"投信賣出股數":             domain.FieldTrustSell,
	"投信買賣超股數":            domain.FieldTrustNet,
	"自營商買賣超股數":           domain.FieldDealerNet,
	"自營商買進股數(自行買賣)":      domain.FieldDealerSelfBuy,
	"自營商賣出股數(自行買賣)":      domain.FieldDealerSelfSell,
	"自營商買賣超股數(自行買賣)":     domain.FieldDealerSelfNet,
	"自營商買進股數(避險)":        domain.FieldDealerHedgeBuy,
	"自營商賣出股數(避險)":        domain.FieldDealerHedgeSell,
	"自營商買賣超股數(避險)":       domain.FieldDealerHedgeNet,
	"三大法人買賣超股數":          domain.FieldTotalNet,

	// pre-2017
	"外資買進股數":  domain.FieldForeignBuy,
	"外資賣出股數":  domain.FieldForeignSell,
	"外資買賣超股數": domain.FieldForeignNet,
}

// Schema resolves report header labels to fields.
type Schema struct {
	fields map[string]domain.InstitutionalField
}

// DefaultSchema returns the schema for the T86 report.
func DefaultSchema() *Schema {
	return &Schema{fields: headerFields}
}

// Field returns the field for a header label. ok is false for labels the
// schema does not name.
func (s *Schema) Field(label string) (domain.InstitutionalField, bool) {
	f, ok := s.fields[strings.TrimSpace(label)]
	return f, ok
}

// isIdentity reports whether label is one of the non-numeric columns.
func isIdentity(label string) bool {
	switch label {
	case domain.ColumnSecurityID, domain.ColumnSecurityName, domain.ColumnTradeDate:
		return true
	}
	return false
}

// isSynthetic reports whether a header label carries no name: blank, or the
// placeholder spreadsheet tools give to trailing unnamed columns.
func isSynthetic(label string) bool {
	return label == "" || strings.HasPrefix(label, "Unnamed")
}
