package wsclient

import (
	"sync"

	"github.com/ajisai-dev/multicam-monitor/internal/logger"
	"github.com/ajisai-dev/multicam-monitor/internal/metrics"
	"github.com/ajisai-dev/multicam-monitor/pkg/types"
)

// Message is one inbound message after envelope parsing. Binary is set only
// for frames delivered under the synthetic binary type.
type Message struct {
	types.Envelope
	Binary []byte
}

// Handler consumes one inbound message. A panicking handler is isolated and
// does not affect other handlers or the connection.
type Handler func(Message)

// Subscription identifies one registered handler so the exact registration
// can be removed later, even when the same function is registered twice.
type Subscription struct {
	msgType string
	id      int
}

type handlerEntry struct {
	id int
	fn Handler
}

type dispatcher struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string][]handlerEntry
	metrics  *metrics.Metrics
}

func newDispatcher(m *metrics.Metrics) *dispatcher {
	return &dispatcher{
		handlers: make(map[string][]handlerEntry),
		metrics:  m,
	}
}

func (d *dispatcher) subscribe(msgType string, h Handler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.handlers[msgType] = append(d.handlers[msgType], handlerEntry{id: d.nextID, fn: h})
	return Subscription{msgType: msgType, id: d.nextID}
}

func (d *dispatcher) unsubscribe(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.handlers[sub.msgType]
	for i, e := range entries {
		if e.id == sub.id {
			d.handlers[sub.msgType] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// dispatch runs every handler registered for the message type, in
// registration order.
func (d *dispatcher) dispatch(msg Message) {
	d.mu.Lock()
	entries := make([]handlerEntry, len(d.handlers[msg.Type]))
	copy(entries, d.handlers[msg.Type])
	d.mu.Unlock()

	for _, e := range entries {
		d.run(e, msg)
	}
}

func (d *dispatcher) run(e handlerEntry, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			if d.metrics != nil {
				d.metrics.HandlerErrors.Add(1)
			}
			logger.Error("WSClient", "handler for %q panicked: %v", msg.Type, r)
		}
	}()
	e.fn(msg)
}
