package session

import "sync"

// registry is a synchronous observer list keyed by subscription order.
// Publish invokes the subscribers registered at the moment of the call;
// unsubscribing mid-emission never panics and never mutates the snapshot the
// current emission iterates over.
type registry[T any] struct {
	mu   sync.Mutex
	seq  uint64
	subs []subscriber[T]
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

func (r *registry[T]) subscribe(fn func(T)) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	r.mu.Lock()
	r.seq++
	id := r.seq
	r.subs = append(r.subs, subscriber[T]{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, sub := range r.subs {
			if sub.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

func (r *registry[T]) publish(v T) {
	r.mu.Lock()
	snapshot := make([]subscriber[T], len(r.subs))
	copy(snapshot, r.subs)
	r.mu.Unlock()

	for _, sub := range snapshot {
		sub.fn(v)
	}
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
