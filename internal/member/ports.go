package member

import "github.com/go-zookeeper/zk"

// Client is the slice of the coordination client the registry uses.
type Client interface {
	Create(path string, data []byte, flags int32) (string, error)
	Get(path string) ([]byte, error)
	GetW(path string) ([]byte, <-chan zk.Event, error)
	ExistsW(path string) (bool, <-chan zk.Event, error)
	Set(path string, data []byte) error
	Children(path string) ([]string, error)
}

// Gate wakes the host's dispatch loop.
type Gate interface {
	Signal()
}
