package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-realty-backend/internal/observability"
)

// Queue errors.
var (
	ErrQueueFull   = errors.New("events: queue full")
	ErrQueueClosed = errors.New("events: queue closed")
)

// Queue is a bounded in-process event buffer drained by a fixed worker pool.
// Publish never blocks: a full buffer drops the event with ErrQueueFull.
type Queue struct {
	ch      chan Event
	handler Handler
	workers int
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue builds a queue with room for size events and the given number of
// workers. Each event is handled with its own timeout (30s when zero).
func NewQueue(size, workers int, h Handler, timeout time.Duration) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Queue{ch: make(chan Event, size), handler: h, workers: workers, timeout: timeout}
}

// Publish implements Publisher.
func (q *Queue) Publish(_ context.Context, e Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		observability.EventsTotal.WithLabelValues(string(e.Type), "published").Inc()
		return nil
	default:
		observability.EventsTotal.WithLabelValues(string(e.Type), "dropped").Inc()
		return ErrQueueFull
	}
}

// Start launches the workers. They exit when the queue is closed and
// drained. ctx seeds the per-event contexts (logger, tracing).
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for e := range q.ch {
				q.handle(ctx, e)
			}
		}()
	}
}

// Close stops accepting events and waits for the workers to drain the
// buffer, or for ctx to expire.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) handle(parent context.Context, e Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), q.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			observability.EventsTotal.WithLabelValues(string(e.Type), "failed").Inc()
			log.Error().Interface("panic", r).Str("event_id", e.ID).Str("event_type", string(e.Type)).Msg("event handler panic")
		}
	}()

	if err := q.handler.Handle(ctx, e); err != nil {
		observability.EventsTotal.WithLabelValues(string(e.Type), "failed").Inc()
		log.Warn().Err(err).Str("event_id", e.ID).Str("event_type", string(e.Type)).Uint("property_id", e.PropertyID).Msg("event handling failed")
		return
	}
	observability.EventsTotal.WithLabelValues(string(e.Type), "handled").Inc()
}
