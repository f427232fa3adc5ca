package events

import (
	"sync"
	"time"
)

// DefaultHistorySize bounds the events a MemoryBus keeps.
const DefaultHistorySize = 1024

// subscriberBuffer is how many undelivered events a subscriber may queue
// before further events are dropped for it.
const subscriberBuffer = 64

// Publisher accepts events.
type Publisher interface {
	Publish(event Event)
}

// EventBus provides publish/subscribe for runtime events.
type EventBus interface {
	Publisher
	Subscribe(filter ...EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
	History(since time.Time) []Event
}

type subscriber struct {
	ch     chan Event
	filter map[EventType]bool // empty means all events
}

func (s *subscriber) wants(t EventType) bool {
	return len(s.filter) == 0 || s.filter[t]
}

// MemoryBus keeps the most recent events in a ring and fans each new one
// out to subscribers. Delivery never blocks the publisher: a subscriber
// whose buffer is full misses the event and can catch up from History.
//
// Publish, Subscribe and Unsubscribe share one lock, so no event is sent to
// a channel after Unsubscribe has closed it.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[<-chan Event]*subscriber
	ring []Event
	next int  // ring slot the next event is written to
	full bool // the ring has wrapped at least once
}

var _ EventBus = (*MemoryBus)(nil)

// NewMemoryBus creates a new in-memory event bus keeping the last
// DefaultHistorySize events.
func NewMemoryBus() *MemoryBus {
	return NewMemoryBusSize(DefaultHistorySize)
}

// NewMemoryBusSize creates a bus keeping at most size events of history.
func NewMemoryBusSize(size int) *MemoryBus {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &MemoryBus{
		subs: make(map[<-chan Event]*subscriber),
		ring: make([]Event, size),
	}
}

func (b *MemoryBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.ring[b.next] = event
	b.next = (b.next + 1) % len(b.ring)
	if b.next == 0 {
		b.full = true
	}

	for _, sub := range b.subs {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

func (b *MemoryBus) Subscribe(filter ...EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribe(filter)
}

// SubscribeSince registers a subscriber and returns, under the same lock,
// the kept events at or after since that match filter. Together they cover
// every event exactly once: the replay ends where live delivery starts.
func (b *MemoryBus) SubscribeSince(since time.Time, filter ...EventType) ([]Event, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := b.subscribe(filter)
	sub := b.subs[ch]
	var replay []Event
	for _, e := range b.snapshot() {
		if sub.wants(e.Type) && !e.Timestamp.Before(since) {
			replay = append(replay, e)
		}
	}
	return replay, ch
}

func (b *MemoryBus) subscribe(filter []EventType) <-chan Event {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	if len(filter) > 0 {
		sub.filter = make(map[EventType]bool, len(filter))
		for _, f := range filter {
			sub.filter[f] = true
		}
	}
	b.subs[sub.ch] = sub
	return sub.ch
}

// Unsubscribe removes and closes ch. Unknown or already removed channels
// are ignored.
func (b *MemoryBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(sub.ch)
	}
}

// RunHistory returns the recorded events of one run.
func (b *MemoryBus) RunHistory(runID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result []Event
	for _, e := range b.snapshot() {
		if e.RunID == runID {
			result = append(result, e)
		}
	}
	return result
}

func (b *MemoryBus) History(since time.Time) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result []Event
	for _, e := range b.snapshot() {
		if !e.Timestamp.Before(since) {
			result = append(result, e)
		}
	}
	return result
}

// snapshot returns the kept events oldest first. The caller holds mu.
func (b *MemoryBus) snapshot() []Event {
	if !b.full {
		return b.ring[:b.next]
	}
	out := make([]Event, 0, len(b.ring))
	out = append(out, b.ring[b.next:]...)
	return append(out, b.ring[:b.next]...)
}
