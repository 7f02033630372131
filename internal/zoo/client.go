// Package zoo wraps the ZooKeeper client with the synchronous,
// retry-on-transient surface the rest of the driver builds on.
//
// Transient failures (connection loss, no reachable server, session
// moved) are retried indefinitely with exponential backoff and never
// surface to callers. Domain errors such as zk.ErrNodeExists and
// zk.ErrNoNode are returned unchanged; callers use them as control flow.
package zoo

import (
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-zookeeper/zk"
)

const (
	// retryInitialInterval is the first delay after a transient failure.
	retryInitialInterval = 100 * time.Millisecond
	// retryMaxInterval caps the backoff between retries.
	retryMaxInterval = 1 * time.Second
)

// conn is the subset of *zk.Conn the wrapper uses. Tests substitute a fake.
type conn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Delete(path string, version int32) error
	Get(path string) ([]byte, *zk.Stat, error)
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Children(path string) ([]string, *zk.Stat, error)
	SessionID() int64
	Close()
}

// Client is a synchronous ZooKeeper client. All nodes use the open ACL.
type Client struct {
	conn       conn
	newBackoff func() backoff.BackOff
}

// Connect dials the given endpoints and returns a Client plus the
// session event channel. The caller must watch the channel for session
// expiry; the wrapper never masks it.
func Connect(endpoints []string, sessionTimeout time.Duration) (*Client, <-chan zk.Event, error) {
	zc, session, err := zk.Connect(endpoints, sessionTimeout)
	if err != nil {
		return nil, nil, err
	}
	return newClient(zc), session, nil
}

func newClient(c conn) *Client {
	return &Client{
		conn: c,
		newBackoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(retryInitialInterval),
				backoff.WithMaxInterval(retryMaxInterval),
				backoff.WithMaxElapsedTime(0),
			)
		},
	}
}

// transient reports whether the error should be retried inside the wrapper.
// Session expiry is deliberately not transient: the process must die.
func transient(err error) bool {
	return errors.Is(err, zk.ErrConnectionClosed) ||
		errors.Is(err, zk.ErrSessionMoved) ||
		errors.Is(err, zk.ErrNoServer)
}

// retry runs op until it returns nil or a non-transient error.
func (c *Client) retry(name string, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if transient(err) {
			slog.Debug("retrying coordination op", "op", name, "err", err)
			return err
		}
		return backoff.Permanent(err)
	}, c.newBackoff())
}

// Create makes a node and returns its path. With zk.FlagSequence the
// returned path carries the assigned sequence suffix.
func (c *Client) Create(path string, data []byte, flags int32) (string, error) {
	var created string
	err := c.retry("create", func() error {
		var err error
		created, err = c.conn.Create(path, data, flags, zk.WorldACL(zk.PermAll))
		return err
	})
	return created, err
}

// Ensure creates the given permanent nodes, tolerating ones that exist.
func (c *Client) Ensure(paths ...string) error {
	for _, p := range paths {
		if _, err := c.Create(p, nil, 0); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return err
		}
	}
	return nil
}

// Delete removes a node regardless of version.
func (c *Client) Delete(path string) error {
	return c.retry("delete", func() error {
		return c.conn.Delete(path, -1)
	})
}

// Get reads a node's value.
func (c *Client) Get(path string) ([]byte, error) {
	var data []byte
	err := c.retry("get", func() error {
		var err error
		data, _, err = c.conn.Get(path)
		return err
	})
	return data, err
}

// GetW reads a node's value and leaves a one-shot watch on it.
func (c *Client) GetW(path string) ([]byte, <-chan zk.Event, error) {
	var (
		data []byte
		ch   <-chan zk.Event
	)
	err := c.retry("getw", func() error {
		var err error
		data, _, ch, err = c.conn.GetW(path)
		return err
	})
	return data, ch, err
}

// Set overwrites a node's value regardless of version.
func (c *Client) Set(path string, data []byte) error {
	return c.retry("set", func() error {
		_, err := c.conn.Set(path, data, -1)
		return err
	})
}

// Exists reports whether a node exists.
func (c *Client) Exists(path string) (bool, error) {
	var ok bool
	err := c.retry("exists", func() error {
		var err error
		ok, _, err = c.conn.Exists(path)
		return err
	})
	return ok, err
}

// ExistsW reports whether a node exists and leaves a one-shot watch
// that fires on creation, deletion, or change.
func (c *Client) ExistsW(path string) (bool, <-chan zk.Event, error) {
	var (
		ok bool
		ch <-chan zk.Event
	)
	err := c.retry("existsw", func() error {
		var err error
		ok, _, ch, err = c.conn.ExistsW(path)
		return err
	})
	return ok, ch, err
}

// Children lists a node's children.
func (c *Client) Children(path string) ([]string, error) {
	var kids []string
	err := c.retry("children", func() error {
		var err error
		kids, _, err = c.conn.Children(path)
		return err
	})
	return kids, err
}

// SessionID returns the coordination service's id for this session.
func (c *Client) SessionID() int64 {
	return c.conn.SessionID()
}

// Close tears down the connection, expiring all ephemeral nodes.
func (c *Client) Close() {
	c.conn.Close()
}
