package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeValue renders a declared value for hashing: plain notation,
// trailing zeros stripped, "0" when the value is absent.
func NormalizeValue(v decimal.NullDecimal) string {
	if !v.Valid {
		return "0"
	}
	return v.Decimal.String()
}

// ContentHash returns the lowercase hex SHA-256 over the record content
// fields joined with "|".
func ContentHash(op OperationKind, commodityCode string, value decimal.NullDecimal, country, identifier, date string) string {
	payload := strings.Join([]string{
		string(op),
		commodityCode,
		NormalizeValue(value),
		country,
		identifier,
		date,
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// ComputeHash returns the content hash of r.
func (r *TradeRecord) ComputeHash() string {
	return ContentHash(r.Operation, r.CommodityCode, r.Value, r.CountryCode, r.Identifier, r.DeclarationDate.Format(DateLayout))
}
