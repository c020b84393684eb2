// Package event provides a small typed observer primitive. Subscribers get
// an explicit unsubscribe handle back from Subscribe, which avoids the
// leak-by-forgetting-to-unregister failure mode of ad hoc callback lists.
package event

import "sync"

// Broadcaster delivers published values to every subscriber. Handlers run
// synchronously in registration order on the publishing goroutine.
type Broadcaster[T any] struct {
	mu   sync.Mutex
	next int
	subs []subscription[T]
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{}
}

// Subscribe registers a handler and returns its unsubscribe function. The
// handle is idempotent.
func (b *Broadcaster[T]) Subscribe(fn func(T)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs = append(b.subs, subscription[T]{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish invokes every current subscriber with v, in registration order.
// The subscriber list is snapshotted first so handlers may unsubscribe
// themselves (or others) while running.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	snapshot := make([]subscription[T], len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()
	for _, s := range snapshot {
		s.fn(v)
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
