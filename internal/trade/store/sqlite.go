package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"tradesync/internal/trade/models"
	"tradesync/pkg/platform/tx"
)

// sqliteMaxVars keeps IN lists under the default SQLite variable limit.
const sqliteMaxVars = 500

// SQLiteStore persists trade records in an embedded SQLite file. It serves
// local runs and real-SQL unit tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) execer(ctx context.Context) tx.Executor {
	return tx.ExecutorFrom(ctx, s.db)
}

func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

func (s *SQLiteStore) FindExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	for start := 0; start < len(hashes); start += sqliteMaxVars {
		end := min(start+sqliteMaxVars, len(hashes))
		chunk := hashes[start:end]

		args := make([]any, len(chunk))
		for i, h := range chunk {
			args[i] = h
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		rows, err := s.execer(ctx).QueryContext(ctx,
			`SELECT unique_hash FROM trade_records WHERE unique_hash IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("find existing hashes: %w", err)
		}
		existing, err := collectStrings(rows)
		if err != nil {
			return nil, fmt.Errorf("scan existing hashes: %w", err)
		}
		for _, h := range existing {
			found[h] = struct{}{}
		}
	}
	return found, nil
}

func (s *SQLiteStore) FindRecordsByIdentityKey(ctx context.Context, key models.IdentityKey) ([]*models.TradeRecord, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM trade_records
		WHERE company_inn = ? AND hs_code = ? AND declaration_date = ? AND operation_type = ?
	`, key.Identifier, key.CommodityCode, key.DeclarationDate, string(key.Operation))
	if err != nil {
		return nil, fmt.Errorf("find records by identity key: %w", err)
	}
	defer rows.Close()

	var out []*models.TradeRecord
	for rows.Next() {
		record, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade records: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) UpsertTradeRecords(ctx context.Context, records []*models.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := s.execer(ctx).PrepareContext(ctx, `
		INSERT INTO trade_records (
			operation_type, trade_type, company_inn, hs_code, goods_value, country_code,
			declaration_date, unique_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_inn, hs_code, declaration_date, operation_type) DO UPDATE SET
			goods_value = excluded.goods_value,
			country_code = excluded.country_code,
			unique_hash = excluded.unique_hash,
			updated_at = CURRENT_TIMESTAMP
		WHERE trade_records.unique_hash <> excluded.unique_hash
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert trade records: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		_, err := stmt.ExecContext(ctx,
			string(record.Operation),
			string(record.PartyKind),
			record.Identifier,
			record.CommodityCode,
			record.Value,
			record.CountryCode,
			record.DeclarationDate.Format(models.DateLayout),
			record.Hash,
		)
		if err != nil {
			return fmt.Errorf("upsert trade record %s: %w", record.Key(), err)
		}
	}
	return nil
}

func (s *SQLiteStore) FindIdentifiersMissingOrganization(ctx context.Context) ([]string, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT DISTINCT t.company_inn
		FROM trade_records t
		WHERE NOT EXISTS (SELECT 1 FROM organizations o WHERE o.inn = t.company_inn)
		ORDER BY t.company_inn
	`)
	if err != nil {
		return nil, fmt.Errorf("find identifiers missing organization: %w", err)
	}
	out, err := collectStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan identifiers: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) FindIncompleteOrganizations(ctx context.Context) ([]string, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, incompleteOrganizationsQuery)
	if err != nil {
		return nil, fmt.Errorf("find incomplete organizations: %w", err)
	}
	out, err := collectStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan identifiers: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) FindOrganization(ctx context.Context, identifier string) (*models.Organization, error) {
	org, err := scanOrganization(s.execer(ctx).QueryRowContext(ctx, `
		SELECT inn, type, name, short_name, first_name, last_name, region, district
		FROM organizations
		WHERE inn = ?
	`, identifier))
	if err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	return org, nil
}

func (s *SQLiteStore) UpsertOrganization(ctx context.Context, org *models.Organization) error {
	if org == nil {
		return fmt.Errorf("organization is required")
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO organizations (inn, type, name, short_name, first_name, last_name, region, district, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(inn) DO UPDATE SET
			type = excluded.type,
			name = excluded.name,
			short_name = excluded.short_name,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			region = excluded.region,
			district = excluded.district,
			updated_at = CURRENT_TIMESTAMP
	`,
		org.Identifier,
		string(org.Kind),
		nullString(org.Name),
		nullString(org.ShortName),
		nullString(org.FirstName),
		nullString(org.LastName),
		nullString(org.Region),
		nullString(org.District),
	)
	if err != nil {
		return fmt.Errorf("upsert organization: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS trade_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			operation_type TEXT NOT NULL,
			trade_type TEXT NOT NULL,
			company_inn TEXT NOT NULL,
			hs_code TEXT NOT NULL,
			goods_value TEXT,
			country_code TEXT,
			declaration_date TEXT NOT NULL,
			unique_hash TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (company_inn, hs_code, declaration_date, operation_type)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_hash ON trade_records (unique_hash);`,
		`CREATE TABLE IF NOT EXISTS organizations (
			inn TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			name TEXT,
			short_name TEXT,
			first_name TEXT,
			last_name TEXT,
			region TEXT,
			district TEXT,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
