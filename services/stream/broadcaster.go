// Package stream pushes position snapshots to in-process subscribers. The
// websocket layer subscribes each connection here; the poller feeds the hub
// on a fixed cadence.
package stream

import (
	"sync"

	"github.com/vasanthk84/oi-analyzer/models"
	"go.uber.org/zap"
)

// Broadcaster is the positions subscription hub. Delivery runs synchronously
// under the hub lock, which makes unsubscribe deterministic: once an
// unsubscribe call returns, that callback is never invoked again. Callbacks
// must be fast and must not call back into the hub.
type Broadcaster struct {
	logger *zap.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(models.PositionsSnapshot)
	latest *models.PositionsSnapshot
}

// NewBroadcaster creates an empty hub
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger,
		subs:   make(map[uint64]func(models.PositionsSnapshot)),
	}
}

// Subscribe registers fn for every future snapshot and returns its
// unsubscribe function. If a snapshot has been broadcast before, fn receives
// it once before Subscribe returns, so late subscribers start from the
// current book instead of waiting a full poll interval.
func (b *Broadcaster) Subscribe(fn func(models.PositionsSnapshot)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	if b.latest != nil {
		fn(*b.latest)
	}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Broadcast delivers the snapshot to every subscriber and remembers it for
// replay to future subscribers. Degraded and empty snapshots are delivered
// like any other: the consumer renders the source and reliability tags.
func (b *Broadcaster) Broadcast(snapshot models.PositionsSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = &snapshot
	for _, fn := range b.subs {
		fn(snapshot)
	}
}

// Latest returns the most recently broadcast snapshot, if any
func (b *Broadcaster) Latest() (models.PositionsSnapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.latest == nil {
		return models.PositionsSnapshot{}, false
	}
	return *b.latest, true
}

// SubscriberCount returns the number of live subscriptions
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
