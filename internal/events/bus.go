package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler reacts to a published event. Errors are logged and never reach
// the caller that triggered the event.
type Handler func(ctx context.Context, evt Event) error

// Metrics receives dispatch observations. Implemented by the metrics service.
type Metrics interface {
	ObserveEventPublished(kind string)
	ObserveHandlerFailure(kind, handler string)
}

type subscription struct {
	name    string
	handler Handler
}

// BusConfig tunes dispatch behaviour.
type BusConfig struct {
	BufferSize int
	Logger     *zap.Logger
	Metrics    Metrics
}

// Bus is an in-process publish/subscribe dispatcher. Publish hands the event
// to a worker goroutine and returns immediately; handlers for one event run
// in registration order, isolated from each other's failures.
type Bus struct {
	logger  *zap.Logger
	metrics Metrics

	mu       sync.RWMutex
	handlers map[string][]subscription

	queue   chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewBus builds a bus with the provided configuration.
func NewBus(cfg BusConfig) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Bus{
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		handlers: make(map[string][]subscription),
		queue:    make(chan Event, cfg.BufferSize),
	}
}

// Subscribe registers a named handler for an event kind. Subscriptions happen
// once at startup, before mutation traffic begins.
func (b *Bus) Subscribe(kind, name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], subscription{name: name, handler: handler})
}

// Start launches the dispatch worker. Safe to call once.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.wg.Add(1)
	go b.worker()
	b.started = true
	b.logger.Sugar().Infow("event bus started", "buffer", cap(b.queue))
}

// Stop closes the queue and waits for queued events to finish dispatching.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.started || b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
	b.cancel()
	b.logger.Sugar().Infow("event bus stopped")
}

// Publish enqueues the event for asynchronous dispatch. The mutation that
// produced the event has already committed; a full or stopped bus is logged
// and the event dropped rather than surfaced to the caller.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.started || b.stopped {
		b.logger.Warn("event published on inactive bus",
			zap.String("kind", evt.Kind()),
			zap.String("correlation_id", evt.Correlation()),
		)
		return
	}

	select {
	case b.queue <- evt:
		if b.metrics != nil {
			b.metrics.ObserveEventPublished(evt.Kind())
		}
	default:
		b.logger.Error("event queue full, dropping event",
			zap.String("kind", evt.Kind()),
			zap.String("correlation_id", evt.Correlation()),
		)
	}
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for evt := range b.queue {
		b.dispatch(evt)
	}
}

func (b *Bus) dispatch(evt Event) {
	b.mu.RLock()
	subs := b.handlers[evt.Kind()]
	b.mu.RUnlock()

	for _, sub := range subs {
		b.invoke(sub, evt)
	}
}

func (b *Bus) invoke(sub subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.recordFailure(sub, evt, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := sub.handler(b.ctx, evt); err != nil {
		b.recordFailure(sub, evt, err)
	}
}

func (b *Bus) recordFailure(sub subscription, evt Event, err error) {
	if b.metrics != nil {
		b.metrics.ObserveHandlerFailure(evt.Kind(), sub.name)
	}
	b.logger.Error("event handler failed",
		zap.String("kind", evt.Kind()),
		zap.String("handler", sub.name),
		zap.String("correlation_id", evt.Correlation()),
		zap.Error(err),
	)
}
