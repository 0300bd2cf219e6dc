// Package store persists trade records and organizations. Every backend
// exposes the same operations; the upsert engine and the enrichment pipeline
// declare the subsets they consume.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradesync/internal/trade/models"
	"tradesync/pkg/platform/sentinel"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = sentinel.ErrNotFound

// incompleteOrganizationsQuery mirrors models.Organization.Incomplete and
// is valid for both SQL backends.
const incompleteOrganizationsQuery = `
	SELECT inn
	FROM organizations
	WHERE region IS NULL
		OR district IS NULL
		OR (type = 'INDIVIDUAL' AND (first_name IS NULL OR last_name IS NULL))
		OR (type <> 'INDIVIDUAL' AND name IS NULL)
	ORDER BY inn
`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTradeRecord expects the column order of tradeColumns.
func scanTradeRecord(row rowScanner) (*models.TradeRecord, error) {
	var (
		record    models.TradeRecord
		operation string
		partyKind string
		value     decimal.NullDecimal
		country   sql.NullString
		date      string
	)
	if err := row.Scan(
		&record.ID,
		&operation,
		&partyKind,
		&record.Identifier,
		&record.CommodityCode,
		&value,
		&country,
		&date,
		&record.Hash,
	); err != nil {
		return nil, err
	}
	parsed, err := time.ParseInLocation(models.DateLayout, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse declaration date %q: %w", date, err)
	}
	record.Operation = models.OperationKind(operation)
	record.PartyKind = models.PartyKind(partyKind)
	record.Value = value
	record.CountryCode = country.String
	record.DeclarationDate = parsed
	return &record, nil
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var org models.Organization
	var kind string
	var name, shortName, firstName, lastName, region, district sql.NullString
	if err := row.Scan(&org.Identifier, &kind, &name, &shortName, &firstName, &lastName, &region, &district); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	org.Kind = models.PartyKind(kind)
	org.Name = nullable(name)
	org.ShortName = nullable(shortName)
	org.FirstName = nullable(firstName)
	org.LastName = nullable(lastName)
	org.Region = nullable(region)
	org.District = nullable(district)
	return &org, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
