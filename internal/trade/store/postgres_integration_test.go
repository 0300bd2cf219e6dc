//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"tradesync/pkg/testutil/containers"
)

// sharedPostgres leaves the container's pool open between tests.
type sharedPostgres struct {
	*PostgresStore
}

func (sharedPostgres) Close() error { return nil }

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	st := NewPostgres(pg.DB)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	suite.Run(t, &StoreSuite{newStore: func() tradeStore {
		if err := pg.TruncateTables(context.Background(), "trade_records", "organizations"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return sharedPostgres{st}
	}})
}
