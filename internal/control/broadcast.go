package control

import "sync"

// laggedBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind is considered lagged: its oldest buffered value is
// dropped to make room rather than blocking the publisher.
const laggedBuffer = 64

// Subscription is a broadcaster's handle for one subscriber. Values arrive
// on C; Dropped reports how many values this subscriber has missed due to
// lag since it subscribed.
type Subscription[T any] struct {
	C <-chan T

	mu      *sync.Mutex
	dropped *int64
}

// Dropped returns the number of values this subscriber missed because its
// buffer was full when they were published.
func (s Subscription[T]) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.dropped
}

// Broadcaster fans a stream of values out to any number of subscribers, a
// single-writer-many-reader pattern grounded on the control channel's
// "incoming messages" fan-out requirement: each subscriber reads
// independently and a slow reader never blocks the others or the publisher.
type Broadcaster[T any] struct {
	mu   sync.Mutex
	subs map[int]*subscriber[T]
	next int
}

type subscriber[T any] struct {
	ch      chan T
	mu      sync.Mutex
	dropped int64
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[int]*subscriber[T])}
}

// Subscribe registers a new subscriber and returns its handle. Call the
// returned cancel function to unsubscribe and release its channel.
func (b *Broadcaster[T]) Subscribe() (Subscription[T], func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	sub := &subscriber[T]{ch: make(chan T, laggedBuffer)}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			close(s.ch)
			delete(b.subs, id)
		}
	}

	return Subscription[T]{C: sub.ch, mu: &sub.mu, dropped: &sub.dropped}, cancel
}

// Publish delivers value to every current subscriber. A subscriber whose
// buffer is full has its oldest pending value discarded to make room: the
// subscriber observes a gap (via Dropped) but is never allowed to stall the
// publisher, matching the "lagged receivers continue from current tail"
// requirement.
func (b *Broadcaster[T]) Publish(value T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- value:
		default:
			select {
			case <-sub.ch:
				sub.mu.Lock()
				sub.dropped++
				sub.mu.Unlock()
			default:
			}
			select {
			case sub.ch <- value:
			default:
			}
		}
	}
}

// Close shuts down every subscriber channel. The broadcaster must not be
// published to afterward.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
