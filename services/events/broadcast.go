package eventsvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/edupulse/core/weekly"
)

// Broadcaster fans snapshot events out to in-process subscribers (live dashboard connections).
// A subscriber that is not ready to receive misses the event.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[chan weekly.SnapshotEvent]struct{}
}

var _ weekly.EventPublisher = (*Broadcaster)(nil)

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan weekly.SnapshotEvent]struct{})}
}

// Subscribe returns a channel receiving the events published from now on, and a func
// unsubscribing it.
func (b *Broadcaster) Subscribe() (<-chan weekly.SnapshotEvent, func()) {
	ch := make(chan weekly.SnapshotEvent, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

func (b *Broadcaster) Publish(_ context.Context, ev weekly.SnapshotEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Fanout publishes every event to all of its publishers and reports the first failure.
type Fanout []weekly.EventPublisher

func (f Fanout) Publish(ctx context.Context, ev weekly.SnapshotEvent) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = errors.Wrapf(err, "publishing %s", ev.Type)
		}
	}
	return first
}
