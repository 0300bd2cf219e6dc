package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"tradesync/internal/trade/models"
)

// InMemory keeps trade records and organizations in process memory. It is
// used for tests and dry runs. Transactions are serialized and roll back by
// restoring a snapshot of the trade tables.
type InMemory struct {
	txMu sync.Mutex

	mu            sync.RWMutex
	nextID        int64
	records       map[models.IdentityKey]*models.TradeRecord
	hashes        map[string]models.IdentityKey
	organizations map[string]*models.Organization
}

func NewInMemory() *InMemory {
	return &InMemory{
		records:       make(map[models.IdentityKey]*models.TradeRecord),
		hashes:        make(map[string]models.IdentityKey),
		organizations: make(map[string]*models.Organization),
	}
}

type memoryTxKey struct{}

func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	nextID := s.nextID
	records := make(map[models.IdentityKey]*models.TradeRecord, len(s.records))
	for k, v := range s.records {
		cp := *v
		records[k] = &cp
	}
	hashes := make(map[string]models.IdentityKey, len(s.hashes))
	for k, v := range s.hashes {
		hashes[k] = v
	}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		s.mu.Lock()
		s.nextID = nextID
		s.records = records
		s.hashes = hashes
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *InMemory) FindExistingHashes(_ context.Context, hashes []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := make(map[string]struct{})
	for _, h := range hashes {
		if _, ok := s.hashes[h]; ok {
			found[h] = struct{}{}
		}
	}
	return found, nil
}

func (s *InMemory) FindRecordsByIdentityKey(_ context.Context, key models.IdentityKey) ([]*models.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	cp := *record
	return []*models.TradeRecord{&cp}, nil
}

func (s *InMemory) UpsertTradeRecords(_ context.Context, records []*models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, record := range records {
		key := record.Key()
		if existing, ok := s.records[key]; ok {
			if existing.Hash == record.Hash {
				continue
			}
			delete(s.hashes, existing.Hash)
			existing.ApplyContent(record)
			existing.UpdatedAt = now
			s.hashes[existing.Hash] = key
			continue
		}
		s.nextID++
		cp := *record
		cp.ID = s.nextID
		cp.UpdatedAt = now
		s.records[key] = &cp
		s.hashes[cp.Hash] = key
	}
	return nil
}

func (s *InMemory) FindIdentifiersMissingOrganization(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for key := range s.records {
		if _, ok := s.organizations[key.Identifier]; ok {
			continue
		}
		if _, ok := seen[key.Identifier]; ok {
			continue
		}
		seen[key.Identifier] = struct{}{}
		out = append(out, key.Identifier)
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemory) FindIncompleteOrganizations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, org := range s.organizations {
		if org.Incomplete() {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemory) FindOrganization(_ context.Context, identifier string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.organizations[identifier]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *InMemory) UpsertOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *org
	cp.UpdatedAt = time.Now().UTC()
	s.organizations[org.Identifier] = &cp
	return nil
}

// CountTradeRecords returns the number of stored trade records.
func (s *InMemory) CountTradeRecords() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *InMemory) Migrate(context.Context) error { return nil }

func (s *InMemory) Ping(context.Context) error { return nil }

func (s *InMemory) Close() error { return nil }
