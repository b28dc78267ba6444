// util/dispatcher.go

package util

import (
	"context"
	"sync"

	"go.uber.org/zap"

	logger "github.com/calltoleap/gatekeeper/logging"
)

// Event represents an event in the system
type Event struct {
	Type    string
	Payload interface{}
}

// EventHandler is a function that handles an event
type EventHandler func(context.Context, Event) error

// Dispatcher routes inbound events to handlers through a bounded queue,
// decoupling message arrival from processing. When the queue is full the
// event is dropped and counted rather than blocking the gateway callback.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string][]EventHandler
	queue       chan Event
	workers     int
	wg          sync.WaitGroup

	droppedMu sync.Mutex
	dropped   int
}

// NewDispatcher creates a Dispatcher with the given queue depth and worker
// count.
func NewDispatcher(buffer, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		subscribers: make(map[string][]EventHandler),
		queue:       make(chan Event, buffer),
		workers:     workers,
	}
}

// Subscribe adds a new subscriber for a specific event type
func (d *Dispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.subscribers[eventType] = append(d.subscribers[eventType], handler)
}

// Publish enqueues an event for processing. Returns false when the queue is
// full and the event was dropped.
func (d *Dispatcher) Publish(eventType string, payload interface{}) bool {
	select {
	case d.queue <- Event{Type: eventType, Payload: payload}:
		return true
	default:
		d.droppedMu.Lock()
		d.dropped++
		dropped := d.dropped
		d.droppedMu.Unlock()
		logger.Warn("Dispatcher queue full, event dropped",
			zap.String("eventType", eventType),
			zap.Int("totalDropped", dropped))
		return false
	}
}

// Dropped returns how many events have been dropped since start.
func (d *Dispatcher) Dropped() int {
	d.droppedMu.Lock()
	defer d.droppedMu.Unlock()
	return d.dropped
}

// Start launches the worker goroutines. They drain the queue until ctx is
// cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	d.mu.RLock()
	handlers := d.subscribers[event.Type]
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			logger.Error("Event handler error",
				zap.Error(err),
				zap.String("eventType", event.Type))
		}
	}
}
