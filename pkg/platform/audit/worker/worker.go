package worker

import (
	"context"
	"log/slog"

	audit "tradesync/pkg/platform/audit"
)

// Worker consumes audit events from a channel and appends them to a store.
// A failed append is logged and the worker moves on; audit delivery never
// stops a run.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until it is closed or ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.append(ctx, event)
		}
	}
}

// Drain appends whatever is still buffered. The inbox must be closed.
func (w *Worker) Drain(ctx context.Context) {
	for event := range w.inbox {
		w.append(ctx, event)
	}
}

func (w *Worker) append(ctx context.Context, event audit.Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.Warn("audit append failed",
			"event_id", event.ID,
			"type", event.Type,
			"run_id", event.RunID,
			"error", err,
		)
	}
}
