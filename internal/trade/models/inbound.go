package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InboundRecord is a declaration line as delivered by the trade data API.
type InboundRecord struct {
	Operation       string              `json:"g01A"`
	CommodityCode   string              `json:"g33A"`
	Value           decimal.NullDecimal `json:"g46"`
	CountryCode     string              `json:"g15_17"`
	Identifier      string              `json:"inn"`
	DeclarationDate string              `json:"g54D"`
}

// PageResponse is one page of the trade data API. It is never persisted.
type PageResponse struct {
	Records       []InboundRecord `json:"resList"`
	ErrorCode     string          `json:"error,omitempty"`
	TotalPages    int             `json:"totalPages"`
	TotalElements int64           `json:"totalElements"`
}

// IsEmpty reports whether the page carries no records.
func (p *PageResponse) IsEmpty() bool {
	return p == nil || len(p.Records) == 0
}

const upstreamDateLayout = "02.01.06"

// ParseOperation maps upstream operation codes to an OperationKind.
func ParseOperation(code string) (OperationKind, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "ИМ", string(OperationImport):
		return OperationImport, nil
	case "ЭК", string(OperationExport):
		return OperationExport, nil
	default:
		return "", ErrInvalidOperation
	}
}

// ParseDeclarationDate accepts the upstream dd.MM.yy form and ISO dates.
func ParseDeclarationDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range []string{upstreamDateLayout, DateLayout} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// ToTradeRecord validates an inbound line and maps it to a TradeRecord with
// its party kind and content hash filled in. Value is rounded to ValueScale.
func (in InboundRecord) ToTradeRecord() (*TradeRecord, error) {
	identifier := strings.TrimSpace(in.Identifier)
	kind, err := PartyKindOf(identifier)
	if err != nil {
		return nil, fmt.Errorf("identifier %q: %w", in.Identifier, err)
	}
	op, err := ParseOperation(in.Operation)
	if err != nil {
		return nil, fmt.Errorf("operation %q: %w", in.Operation, err)
	}
	date, err := ParseDeclarationDate(in.DeclarationDate)
	if err != nil {
		return nil, fmt.Errorf("declaration date %q: %w", in.DeclarationDate, err)
	}

	record := &TradeRecord{
		Operation:       op,
		PartyKind:       kind,
		Identifier:      identifier,
		CommodityCode:   strings.TrimSpace(in.CommodityCode),
		Value:           in.Value,
		CountryCode:     strings.TrimSpace(in.CountryCode),
		DeclarationDate: date,
	}
	// The hash covers the value as received; only the stored copy is
	// rounded to the column scale.
	record.Hash = record.ComputeHash()
	if record.Value.Valid {
		record.Value.Decimal = record.Value.Decimal.Round(ValueScale)
	}
	return record, nil
}
