package zoo

import (
	"errors"
	"time"

	"github.com/go-zookeeper/zk"
)

// lockRetryDelay is the spin interval while another process holds the lock.
const lockRetryDelay = 10 * time.Millisecond

// Lock is a coarse cluster-wide mutex: an ephemeral node at a fixed
// path. It is unfair and spin-based; it only serializes join, where
// latency does not matter. The ephemeral flag releases it if the holder
// dies.
type Lock struct {
	client *Client
	path   string
}

// NewLock returns a lock over the given path.
func NewLock(client *Client, path string) *Lock {
	return &Lock{client: client, path: path}
}

// Lock blocks until this process holds the lock. Any create error other
// than zk.ErrNodeExists is returned without retrying.
func (l *Lock) Lock() error {
	for {
		_, err := l.client.Create(l.path, nil, zk.FlagEphemeral)
		if err == nil {
			return nil
		}
		if !errors.Is(err, zk.ErrNodeExists) {
			return err
		}
		time.Sleep(lockRetryDelay)
	}
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	return l.client.Delete(l.path)
}
