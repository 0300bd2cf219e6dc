package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradesync/pkg/platform/sentinel"
	platformstrings "tradesync/pkg/platform/strings"
)

// DateLayout is the ISO calendar date format used for storage, hashing and
// upstream query parameters.
const DateLayout = "2006-01-02"

// ValueScale is the number of fractional digits kept for declared values.
const ValueScale = 3

// OperationKind tells whether a declaration covers goods entering or leaving
// the country.
type OperationKind string

const (
	OperationImport OperationKind = "IMPORT"
	OperationExport OperationKind = "EXPORT"
)

func (k OperationKind) String() string { return string(k) }

// IsValid reports whether k is one of the known operation kinds.
func (k OperationKind) IsValid() bool {
	return k == OperationImport || k == OperationExport
}

// PartyKind is derived from the identifier length: 9 digits is a legal
// entity, 14 digits is an individual.
type PartyKind string

const (
	PartyLegal      PartyKind = "LEGAL"
	PartyIndividual PartyKind = "INDIVIDUAL"
)

func (k PartyKind) String() string { return string(k) }

const (
	LegalIdentifierLength      = 9
	IndividualIdentifierLength = 14
)

// Validation errors all wrap sentinel.ErrInvalidInput.
var (
	ErrMissingIdentifier = fmt.Errorf("identifier is missing: %w", sentinel.ErrInvalidInput)
	ErrInvalidIdentifier = fmt.Errorf("identifier must be 9 or 14 digits: %w", sentinel.ErrInvalidInput)
	ErrInvalidOperation  = fmt.Errorf("operation kind is not recognized: %w", sentinel.ErrInvalidInput)
	ErrInvalidDate       = fmt.Errorf("declaration date is not recognized: %w", sentinel.ErrInvalidInput)
)

// PartyKindOf derives the party kind from a trimmed identifier.
func PartyKindOf(identifier string) (PartyKind, error) {
	if identifier == "" {
		return "", ErrMissingIdentifier
	}
	if !platformstrings.IsDigits(identifier) {
		return "", ErrInvalidIdentifier
	}
	switch len(identifier) {
	case LegalIdentifierLength:
		return PartyLegal, nil
	case IndividualIdentifierLength:
		return PartyIndividual, nil
	default:
		return "", ErrInvalidIdentifier
	}
}

// TradeRecord is one persisted customs declaration line.
type TradeRecord struct {
	ID              int64
	Operation       OperationKind
	PartyKind       PartyKind
	Identifier      string
	CommodityCode   string
	Value           decimal.NullDecimal
	CountryCode     string
	DeclarationDate time.Time
	Hash            string
	UpdatedAt       time.Time
}

// IdentityKey is the business identity under which at most one record exists.
type IdentityKey struct {
	Identifier      string
	CommodityCode   string
	DeclarationDate string
	Operation       OperationKind
}

func (k IdentityKey) String() string {
	return strings.Join([]string{k.Identifier, k.CommodityCode, k.DeclarationDate, string(k.Operation)}, "/")
}

// Key returns the record's identity key.
func (r *TradeRecord) Key() IdentityKey {
	return IdentityKey{
		Identifier:      r.Identifier,
		CommodityCode:   r.CommodityCode,
		DeclarationDate: r.DeclarationDate.Format(DateLayout),
		Operation:       r.Operation,
	}
}

// ApplyContent copies the mutable fields of src onto r and refreshes the hash.
func (r *TradeRecord) ApplyContent(src *TradeRecord) {
	r.Value = src.Value
	r.CountryCode = src.CountryCode
	r.Hash = src.Hash
}

// BatchResult counts what the upsert engine did with one batch.
type BatchResult struct {
	Received int
	Inserted int
	Updated  int
	Skipped  int
	Rejected int
}

// Add accumulates other into r.
func (r *BatchResult) Add(other BatchResult) {
	r.Received += other.Received
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Rejected += other.Rejected
}
