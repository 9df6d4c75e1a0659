package audit

import (
	"context"
	"sync"

	"cdr.dev/slog"
)

// Background wraps an Auditor so that Export never blocks the request
// path. Events are handed to a single writer goroutine; if the buffer is
// full the event is written to the log instead of being silently lost.
type Background struct {
	inner Auditor
	log   slog.Logger

	events chan AccessEvent
	closed chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewBackground(inner Auditor, log slog.Logger) *Background {
	b := &Background{
		inner:  inner,
		log:    log,
		events: make(chan AccessEvent, 256),
		closed: make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

var _ Auditor = (*Background)(nil)

func (b *Background) Export(ctx context.Context, event AccessEvent) error {
	select {
	case <-b.closed:
		// Closing races with in-flight requests during shutdown. Fall
		// back to the log so the event still lands somewhere durable.
		b.logEvent(ctx, event)
		return nil
	default:
	}
	select {
	case b.events <- event:
	default:
		b.log.Warn(ctx, "audit buffer full, writing event to log")
		b.logEvent(ctx, event)
	}
	return nil
}

// Close drains buffered events and stops the writer. Safe to call more
// than once.
func (b *Background) Close() {
	b.once.Do(func() {
		close(b.closed)
	})
	b.wg.Wait()
}

func (b *Background) run() {
	defer b.wg.Done()
	ctx := context.Background()
	for {
		select {
		case event := <-b.events:
			b.export(ctx, event)
		case <-b.closed:
			for {
				select {
				case event := <-b.events:
					b.export(ctx, event)
				default:
					return
				}
			}
		}
	}
}

func (b *Background) export(ctx context.Context, event AccessEvent) {
	if err := b.inner.Export(ctx, event); err != nil {
		b.log.Error(ctx, "export audit event", slog.Error(err))
		b.logEvent(ctx, event)
	}
}

func (b *Background) logEvent(ctx context.Context, event AccessEvent) {
	b.log.Info(ctx, "access decision (fallback)",
		slog.F("principal_id", event.PrincipalID),
		slog.F("resource_type", event.ResourceType),
		slog.F("resource_id", event.ResourceID),
		slog.F("action", event.Action),
		slog.F("granted", event.Granted),
		slog.F("reason", event.Reason),
		slog.F("request_id", event.RequestID),
	)
}
