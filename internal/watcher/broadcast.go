package watcher

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscriber queue length. A subscriber that
// falls further behind loses documents.
const subscriberBuffer = 100

// Broadcaster fans captured documents out to live-tail subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Document
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]chan Document)}
}

// Subscribe registers a subscriber and returns its ID and channel. The
// channel is closed by Unsubscribe.
func (b *Broadcaster) Subscribe() (string, <-chan Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan Document, subscriberBuffer)
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Len returns the number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Broadcast offers doc to every subscriber without blocking and returns how
// many subscribers had a full queue and missed it.
func (b *Broadcaster) Broadcast(doc Document) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- doc:
		default:
			dropped++
		}
	}
	return dropped
}
