package queue

import (
	"sync"
	"sync/atomic"

	"flock"
)

// Ring is the bounded FIFO for pending leave events. Leaves bypass the
// shared log: the departed session is already gone, so there is nothing
// to order them against. Producers are watch goroutines, the consumer
// is the dispatcher; count is atomic so the pop path can test emptiness
// without taking the lock.
//
// A full ring rejects rather than overwrites. Capacity equals the
// maximum cluster size, so rejection means every member failed at once.
type Ring struct {
	mu    sync.Mutex
	slots []flock.Event
	head  int
	tail  int
	count atomic.Int32
}

// NewRing allocates a ring holding up to capacity events.
func NewRing(capacity int) *Ring {
	return &Ring{slots: make([]flock.Event, capacity)}
}

// Push appends a leave event. It reports false when the ring is full.
func (r *Ring) Push(ev flock.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(r.count.Load()) == len(r.slots) {
		return false
	}
	r.slots[r.tail%len(r.slots)] = ev
	r.tail++
	r.count.Add(1)
	return true
}

// Pop removes the oldest leave event.
func (r *Ring) Pop() (flock.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count.Load() == 0 {
		return flock.Event{}, false
	}
	ev := r.slots[r.head%len(r.slots)]
	r.head++
	r.count.Add(-1)
	return ev, true
}

// Len returns the number of pending leave events.
func (r *Ring) Len() int {
	return int(r.count.Load())
}
