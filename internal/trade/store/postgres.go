package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"tradesync/internal/trade/models"
	"tradesync/pkg/platform/tx"
)

const tradeColumns = `id, operation_type, trade_type, company_inn, hs_code, goods_value, country_code, declaration_date, unique_hash`

// PostgresStore persists trade records and organizations in PostgreSQL.
// The store is pure I/O; dedupe and merge decisions belong to the services.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store on an open pool.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// DB exposes the pool so other Postgres-backed components can share it.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) execer(ctx context.Context) tx.Executor {
	return tx.ExecutorFrom(ctx, s.db)
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

func (s *PostgresStore) FindExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(hashes) == 0 {
		return found, nil
	}
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT unique_hash FROM trade_records WHERE unique_hash = ANY($1)`, pq.Array(hashes))
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
	return found, nil
}

func (s *PostgresStore) FindRecordsByIdentityKey(ctx context.Context, key models.IdentityKey) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, operation_type, trade_type, company_inn, hs_code, goods_value, country_code,
			declaration_date::text, unique_hash
		FROM trade_records
		WHERE company_inn = $1 AND hs_code = $2 AND declaration_date = $3::date AND operation_type = $4
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query,
		key.Identifier, key.CommodityCode, key.DeclarationDate, string(key.Operation))
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

func (s *PostgresStore) UpsertTradeRecords(ctx context.Context, records []*models.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := s.execer(ctx).PrepareContext(ctx, `
		INSERT INTO trade_records (
			operation_type, trade_type, company_inn, hs_code, goods_value, country_code,
			declaration_date, unique_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8)
		ON CONFLICT (company_inn, hs_code, declaration_date, operation_type) DO UPDATE SET
			goods_value = EXCLUDED.goods_value,
			country_code = EXCLUDED.country_code,
			unique_hash = EXCLUDED.unique_hash,
			updated_at = now()
		WHERE trade_records.unique_hash <> EXCLUDED.unique_hash
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

func (s *PostgresStore) FindIdentifiersMissingOrganization(ctx context.Context) ([]string, error) {
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

func (s *PostgresStore) FindIncompleteOrganizations(ctx context.Context) ([]string, error) {
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

func (s *PostgresStore) FindOrganization(ctx context.Context, identifier string) (*models.Organization, error) {
	query := `
		SELECT inn, type, name, short_name, first_name, last_name, region, district
		FROM organizations
		WHERE inn = $1
	`
	org, err := scanOrganization(s.execer(ctx).QueryRowContext(ctx, query, identifier))
	if err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	return org, nil
}

func (s *PostgresStore) UpsertOrganization(ctx context.Context, org *models.Organization) error {
	if org == nil {
		return fmt.Errorf("organization is required")
	}
	query := `
		INSERT INTO organizations (inn, type, name, short_name, first_name, last_name, region, district, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (inn) DO UPDATE SET
			type = EXCLUDED.type,
			name = EXCLUDED.name,
			short_name = EXCLUDED.short_name,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			region = EXCLUDED.region,
			district = EXCLUDED.district,
			updated_at = now()
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
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

// Migrate creates the tables when they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS trade_records (
			id BIGSERIAL PRIMARY KEY,
			operation_type VARCHAR(16) NOT NULL,
			trade_type VARCHAR(16) NOT NULL,
			company_inn VARCHAR(14) NOT NULL,
			hs_code VARCHAR(32) NOT NULL,
			goods_value NUMERIC(19, 3),
			country_code VARCHAR(8),
			declaration_date DATE NOT NULL,
			unique_hash CHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT uk_trade_records_identity UNIQUE (company_inn, hs_code, declaration_date, operation_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_hash ON trade_records (unique_hash)`,
		`CREATE TABLE IF NOT EXISTS organizations (
			inn VARCHAR(14) PRIMARY KEY,
			type VARCHAR(16) NOT NULL,
			name TEXT,
			short_name TEXT,
			first_name TEXT,
			last_name TEXT,
			region TEXT,
			district TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
