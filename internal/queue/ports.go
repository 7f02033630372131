package queue

import "github.com/go-zookeeper/zk"

// Client is the slice of the coordination client the log uses.
// Watches returned by GetW/ExistsW are one-shot.
type Client interface {
	Create(path string, data []byte, flags int32) (string, error)
	GetW(path string) ([]byte, <-chan zk.Event, error)
	ExistsW(path string) (bool, <-chan zk.Event, error)
	Set(path string, data []byte) error
}

// Gate wakes the host's dispatch loop.
type Gate interface {
	Signal()
}
