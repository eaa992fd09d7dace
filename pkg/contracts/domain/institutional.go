package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstitutionalField identifies one numeric column of the daily
// three-major-institutional-investors report.
type InstitutionalField string

const (
	FieldForeignBuy        InstitutionalField = "foreign_buy"
	FieldForeignSell       InstitutionalField = "foreign_sell"
	FieldForeignNet        InstitutionalField = "foreign_net"
	FieldForeignDealerBuy  InstitutionalField = "foreign_dealer_buy"
	FieldForeignDealerSell InstitutionalField = "foreign_dealer_sell"
	FieldForeignDealerNet  InstitutionalField = "foreign_dealer_net"
	FieldTrustBuy          InstitutionalField = "trust_buy"
	FieldTrustSell         InstitutionalField = "trust_sell"
	FieldTrustNet          InstitutionalField = "trust_net"
	FieldDealerNet         InstitutionalField = "dealer_net"
	FieldDealerSelfBuy     InstitutionalField = "dealer_self_buy"
	FieldDealerSelfSell    InstitutionalField = "dealer_self_sell"
	FieldDealerSelfNet     InstitutionalField = "dealer_self_net"
	FieldDealerHedgeBuy    InstitutionalField = "dealer_hedge_buy"
	FieldDealerHedgeSell   InstitutionalField = "dealer_hedge_sell"
	FieldDealerHedgeNet    InstitutionalField = "dealer_hedge_net"
	FieldTotalNet          InstitutionalField = "total_net"
)

// InstitutionalFields lists the known numeric fields in report order.
var InstitutionalFields = []InstitutionalField{
	FieldForeignBuy, FieldForeignSell, FieldForeignNet,
	FieldForeignDealerBuy, FieldForeignDealerSell, FieldForeignDealerNet,
	FieldTrustBuy, FieldTrustSell, FieldTrustNet,
	FieldDealerNet,
	FieldDealerSelfBuy, FieldDealerSelfSell, FieldDealerSelfNet,
	FieldDealerHedgeBuy, FieldDealerHedgeSell, FieldDealerHedgeNet,
	FieldTotalNet,
}

// Identifier and date column labels as published by the exchange.
const (
	ColumnSecurityID   = "證券代號"
	ColumnSecurityName = "證券名稱"
	ColumnTradeDate    = "日期"
)

// NamedValue is a numeric cell keyed by its source column label.
type NamedValue struct {
	Label string              `json:"label"`
	Value decimal.NullDecimal `json:"value"`
}

// DailyInstitutionalRecord is one security's institutional buy/sell activity
// for one trading day. Numeric values are either valid or explicitly missing.
type DailyInstitutionalRecord struct {
	Date         time.Time                                  `json:"date"`
	SecurityID   string                                     `json:"security_id"`
	SecurityName string                                     `json:"security_name,omitempty"`
	Values       map[InstitutionalField]decimal.NullDecimal `json:"values"`
	Extra        []NamedValue                               `json:"extra,omitempty"`
}

// Value returns the value for field, or a missing marker when absent.
func (r DailyInstitutionalRecord) Value(field InstitutionalField) decimal.NullDecimal {
	if r.Values == nil {
		return decimal.NullDecimal{}
	}
	return r.Values[field]
}

// DateKey returns the canonical YYYY-MM-DD join key.
func (r DailyInstitutionalRecord) DateKey() string {
	return r.Date.Format(DateLayout)
}

// InstitutionalColumn describes one numeric column of an InstitutionalTable.
// Field is empty for columns the schema does not name; those values live in
// DailyInstitutionalRecord.Extra under Label.
type InstitutionalColumn struct {
	Label string             `json:"label"`
	Field InstitutionalField `json:"field,omitempty"`
}

// InstitutionalTable is the chronologically ordered result of a fetch.
type InstitutionalTable struct {
	SecurityID string                     `json:"security_id"`
	Columns    []InstitutionalColumn      `json:"columns"`
	Records    []DailyInstitutionalRecord `json:"records"`
}

// Len returns the number of records.
func (t *InstitutionalTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// IsEmpty reports whether the table holds no records.
func (t *InstitutionalTable) IsEmpty() bool {
	return t.Len() == 0
}

// Cell returns the value for column c in record r.
func (t *InstitutionalTable) Cell(r DailyInstitutionalRecord, c InstitutionalColumn) decimal.NullDecimal {
	if c.Field != "" {
		return r.Value(c.Field)
	}
	for _, nv := range r.Extra {
		if nv.Label == c.Label {
			return nv.Value
		}
	}
	return decimal.NullDecimal{}
}
