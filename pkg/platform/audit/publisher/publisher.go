// Package publisher fronts an audit store with optional asynchronous
// buffering. Services emit after their transaction commits; a failure to
// publish never fails the governance operation that produced the event.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	id "lexflow/pkg/domain"
	audit "lexflow/pkg/platform/audit"
	"lexflow/pkg/platform/audit/worker"
)

var ErrBufferFull = errors.New("audit buffer full")

type documentLister interface {
	ListByDocument(ctx context.Context, documentID id.DocumentID) ([]audit.Event, error)
}

type Publisher struct {
	store  audit.Store
	buffer int

	inbox chan audit.Event
	done  chan struct{}
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous mode with a
// bounded queue. Emit returns ErrBufferFull instead of blocking.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = size
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer > 0 {
		p.inbox = make(chan audit.Event, p.buffer)
		p.done = make(chan struct{})
		w := worker.NewWorker(store, p.inbox, nil)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit stamps and categorizes the event, then appends it directly or
// enqueues it.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// List returns the events recorded for a document when the store supports
// reads.
func (p *Publisher) List(ctx context.Context, documentID id.DocumentID) ([]audit.Event, error) {
	l, ok := p.store.(documentLister)
	if !ok {
		return nil, errors.New("audit store does not support listing")
	}
	return l.ListByDocument(ctx, documentID)
}

// Close drains queued events. It is safe to call more than once.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.once.Do(func() {
		close(p.inbox)
		<-p.done
	})
}
