// Package publisher emits audit events to an audit.Store.
//
// Compliance events are always written synchronously and fail closed: if the
// write fails the caller gets the error and must fail its operation. Operations
// events go through an optional bounded buffer and are dropped when it is full.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "kycflow/pkg/domain"
	audit "kycflow/pkg/platform/audit"
)

var errBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous delivery of operations events.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. The category is derived from the action when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.buffer == nil || event.Category == audit.CategoryCompliance {
		if err := p.store.Append(ctx, event); err != nil {
			if p.logger != nil {
				p.logger.ErrorContext(ctx, "audit persistence failed",
					"action", event.Action,
					"session_id", event.SessionID,
					"error", err,
				)
			}
			return err
		}
		return nil
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action)
		}
		return errBufferFull
	}
}

// List returns the events recorded for a subject.
func (p *Publisher) List(ctx context.Context, subjectID id.SubjectID) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subjectID)
}

// Close drains buffered events and stops the background writer.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("async audit persistence failed", "action", event.Action, "error", err)
		}
	}
}
