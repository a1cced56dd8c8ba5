package dashboard

import (
	"sync"

	"github.com/ajisai-dev/multicam-monitor/internal/logger"
)

// Broadcaster fans pre-serialized payloads out to subscribed clients.
// Channels are buffered and sends never block; a client that cannot keep up
// loses frames instead of stalling the publisher.
type Broadcaster struct {
	name string

	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
	stopped bool
}

// NewBroadcaster creates a broadcaster. name appears in log lines only.
func NewBroadcaster(name string) *Broadcaster {
	return &Broadcaster{
		name:    name,
		clients: make(map[int]chan []byte),
	}
}

// Subscribe adds a client and returns its ID and receive channel.
func (b *Broadcaster) Subscribe() (int, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan []byte, 2) // small buffer so one slow client drops, not blocks
	b.clients[id] = ch

	logger.Debug(b.name, "client #%d subscribed (total %d)", id, len(b.clients))
	return id, ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
		logger.Debug(b.name, "client #%d unsubscribed (remaining %d)", id, len(b.clients))
	}
}

// Publish delivers data to every subscriber. Full client buffers are
// skipped.
func (b *Broadcaster) Publish(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	for id, ch := range b.clients {
		select {
		case ch <- data:
		default:
			logger.Debug(b.name, "client #%d is slow, dropping", id)
		}
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Stop closes every client channel. Publish becomes a no-op.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.stopped = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}
