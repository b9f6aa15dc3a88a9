package audit

import (
	"context"
	"log/slog"
)

// Store is the audit persistence contract. Append-only; no update exists.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListFiltered(ctx context.Context, filter Filter) ([]Event, int, error)
}

// Sink receives a copy of every event after it is stored. Used for the
// optional Kafka fan-out.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Worker consumes audit events from the publisher's queue and persists them.
// Persistence failures are logged, never propagated: audit is best-effort by
// contract.
type Worker struct {
	store  Store
	sinks  []Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger, sinks ...Sink) *Worker {
	return &Worker{store: store, sinks: sinks, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued before stopping.
			for {
				select {
				case event := <-w.inbox:
					w.handle(context.WithoutCancel(ctx), event)
				default:
					return ctx.Err()
				}
			}
		case event := <-w.inbox:
			w.handle(ctx, event)
		}
	}
}

func (w *Worker) handle(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.Error("audit append failed",
			"error", err,
			"action", event.Action,
		)
	}
	for _, sink := range w.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			w.logger.Error("audit sink publish failed",
				"error", err,
				"action", event.Action,
			)
		}
	}
}
