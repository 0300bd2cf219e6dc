package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "tradesync/pkg/platform/audit"
	"tradesync/pkg/platform/audit/store/memory"
)

type failingStore struct{ calls int }

func (s *failingStore) Append(context.Context, audit.Event) error {
	s.calls++
	return errors.New("sink down")
}

func TestWorkerRunStopsWhenInboxCloses(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 3)
	inbox <- audit.Event{Type: audit.EventRunStarted, RunID: "r"}
	inbox <- audit.Event{Type: audit.EventRunCompleted, RunID: "r"}
	close(inbox)

	err := NewWorker(store, inbox, nil).Run(context.Background())
	require.NoError(t, err)

	events, _ := store.ListByRun(context.Background(), "r")
	assert.Len(t, events, 2)
}

func TestWorkerRunStopsOnContext(t *testing.T) {
	inbox := make(chan audit.Event)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewWorker(memory.NewInMemoryStore(), inbox, nil).Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerKeepsGoingAfterAppendFailure(t *testing.T) {
	store := &failingStore{}
	inbox := make(chan audit.Event, 2)
	inbox <- audit.Event{Type: audit.EventBatchPersisted}
	inbox <- audit.Event{Type: audit.EventBatchPersisted}
	close(inbox)

	NewWorker(store, inbox, nil).Drain(context.Background())
	assert.Equal(t, 2, store.calls)
}
