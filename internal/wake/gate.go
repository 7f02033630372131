// Package wake implements the edge-triggered notification primitive
// that wakes the host's dispatch loop.
package wake

// Gate coalesces wake signals. Signal never blocks; back-to-back
// signals before a consume collapse into one, and the pop path
// re-signals while work remains, so nothing is lost.
//
// On Linux the gate also mirrors every signal into an eventfd so hosts
// with their own poll loop can wait on a real file descriptor.
type Gate struct {
	ch chan struct{}
	fd int
}

// New allocates a gate. The eventfd mirror is best-effort; FD reports
// -1 where it is unavailable.
func New() *Gate {
	return &Gate{
		ch: make(chan struct{}, 1),
		fd: newEventFD(),
	}
}

// Signal records that work is pending.
func (g *Gate) Signal() {
	select {
	case g.ch <- struct{}{}:
	default:
	}
	signalEventFD(g.fd)
}

// TryConsume takes one pending signal without blocking.
func (g *Gate) TryConsume() bool {
	select {
	case <-g.ch:
		drainEventFD(g.fd)
		return true
	default:
		return false
	}
}

// C exposes the wake channel for select loops.
func (g *Gate) C() <-chan struct{} {
	return g.ch
}

// FD returns the pollable eventfd, or -1 if the platform has none.
func (g *Gate) FD() int {
	return g.fd
}

// Close releases the eventfd, if any.
func (g *Gate) Close() error {
	return closeEventFD(g.fd)
}
