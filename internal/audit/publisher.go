package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ballotbox/internal/platform/metrics"
	id "ballotbox/pkg/domain"
	"ballotbox/pkg/requestcontext"
)

// Recorder is the narrow interface services depend on.
type Recorder interface {
	Emit(ctx context.Context, event Event)
}

// Publisher accepts events into a buffered queue drained by the Worker. Emit
// never blocks: when the queue is full the event is dropped and counted,
// because audit must not slow down or fail voting.
type Publisher struct {
	queue   chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const defaultQueueSize = 1024

func NewPublisher(logger *slog.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{
		queue:   make(chan Event, defaultQueueSize),
		logger:  logger,
		metrics: m,
	}
}

// Emit enriches the event from context and enqueues it.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Origin.IP == "" {
		event.Origin.IP = requestcontext.ClientIP(ctx)
	}
	if event.Origin.UserAgent == "" {
		event.Origin.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.Origin.RequestID == "" {
		event.Origin.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == nil {
		if actor := requestcontext.VoterID(ctx); !actor.IsNil() {
			event.ActorID = &actor
		}
	}

	select {
	case p.queue <- event:
		if p.metrics != nil {
			p.metrics.AuditEventsQueued.Inc()
		}
	default:
		if p.metrics != nil {
			p.metrics.AuditEventsDropped.Inc()
		}
		p.logger.Warn("audit queue full, dropping event",
			"action", event.Action,
			"entity_type", event.EntityType,
		)
	}
}

// Inbox exposes the queue to the Worker.
func (p *Publisher) Inbox() <-chan Event { return p.queue }

// Actor is a convenience for building the ActorID pointer.
func Actor(voterID id.VoterID) *id.VoterID {
	if voterID.IsNil() {
		return nil
	}
	return &voterID
}

// Drain waits briefly for queued events to be consumed. Intended for
// graceful shutdown and tests.
func (p *Publisher) Drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for len(p.queue) > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}
