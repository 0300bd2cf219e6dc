//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "tradesync/pkg/platform/audit"
	"tradesync/pkg/platform/audit/store/postgres"
	"tradesync/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.pg.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "run_events"))
}

func (s *StoreSuite) TestAppendAndList() {
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Millisecond)

	s.Require().NoError(s.store.Append(ctx, audit.Event{ID: "6f1c1c56-1d7b-4c5e-9a4c-7b1f1f9d2a01", Type: audit.EventRunStarted, RunID: "run-1", Timestamp: start}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{Type: audit.EventDateIncomplete, RunID: "run-1", Date: "2024-03-15", Timestamp: start.Add(time.Second)}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{Type: audit.EventRunStarted, RunID: "run-2", Timestamp: start}))

	events, err := s.store.ListByRun(ctx, "run-1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.EventRunStarted, events[0].Type)
	s.Equal(audit.EventDateIncomplete, events[1].Type)
	s.Equal("2024-03-15", events[1].Date)
	s.Equal(audit.CategoryDataQuality, events[1].Category)
}

func (s *StoreSuite) TestAppendIsIdempotentByID() {
	ctx := context.Background()
	event := audit.Event{ID: "0d9f6a43-5a57-4b8e-8f3b-54b3a1c1e0aa", Type: audit.EventRunCompleted, RunID: "run-3"}
	s.Require().NoError(s.store.Append(ctx, event))
	s.Require().NoError(s.store.Append(ctx, event))

	events, err := s.store.ListByRun(ctx, "run-3")
	s.Require().NoError(err)
	s.Len(events, 1)
}
