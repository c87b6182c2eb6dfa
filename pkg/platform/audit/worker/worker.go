package worker

import (
	"context"
	"log/slog"

	audit "lexflow/pkg/platform/audit"
)

// Worker drains an event channel into a store. A failed append is logged
// and skipped so one bad event cannot stall the queue.
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

// Run processes events until the inbox closes or ctx is cancelled. When the
// inbox closes every buffered event has been appended.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"action", event.Action,
					"document_id", event.DocumentID,
					"request_id", event.RequestID,
					"error", err,
				)
			}
		}
	}
}
