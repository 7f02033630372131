// Package queue implements the totally ordered cluster event log on
// top of sequentially named coordination-service children, plus the
// local leave ring.
//
// The log is append-only. Entries are never deleted; each process
// tracks its own read cursor and the blocking protocol rewrites entries
// in place instead of removing them, which keeps every position
// watchable. Compaction below the cluster-wide minimum cursor would
// need cursors published in member records, which the record format
// does not carry.
package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-zookeeper/zk"

	"flock"
	"flock/internal/abort"
	"flock/internal/check"
)

// Log is one process's view of the shared event log: the log root, a
// local read cursor, and the leave ring. The cursor starts at -1 and is
// bootstrapped by the first append, which must be an Ignore entry.
type Log struct {
	client Client
	gate   Gate
	root   string
	cursor atomic.Int32
	ring   *Ring
	log    *slog.Logger
}

// NewLog returns a log rooted at root (e.g. "/flock/queue").
func NewLog(client Client, gate Gate, root string, maxMembers int) *Log {
	check.Assert(client != nil, "queue.NewLog: client must not be nil")
	check.Assert(gate != nil, "queue.NewLog: gate must not be nil")
	l := &Log{
		client: client,
		gate:   gate,
		root:   root,
		ring:   NewRing(maxMembers),
		log:    slog.With("component", "queue"),
	}
	l.cursor.Store(-1)
	return l
}

// Cursor returns the local read position.
func (l *Log) Cursor() int32 {
	return l.cursor.Load()
}

func (l *Log) entry(seq int32) string {
	return fmt.Sprintf("%s/%010d", l.root, seq)
}

// parseSeq extracts the sequence from a created entry path.
func parseSeq(path string) (int32, error) {
	if len(path) < 10 {
		return 0, fmt.Errorf("sequential path %q too short", path)
	}
	n, err := strconv.ParseInt(path[len(path)-10:], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse sequence from %q: %w", path, err)
	}
	return int32(n), nil
}

// Append serializes ev into a new sequential entry and returns the
// assigned sequence. The first append by a process must be an Ignore
// event; its sequence becomes the read cursor, and the gate is signaled
// once so the dispatch loop starts from there.
func (l *Log) Append(ev flock.Event) int32 {
	data, err := ev.Encode()
	if err != nil {
		abort.Fatalf("queue: encode event: %v", err)
	}
	created, err := l.client.Create(l.root+"/", data, zk.FlagSequence)
	if err != nil {
		abort.Fatalf("queue: append entry: %v", err)
	}
	seq, err := parseSeq(created)
	if err != nil {
		abort.Fatalf("queue: %v", err)
	}
	l.log.Debug("appended entry", "seq", seq, "kind", ev.Kind, "len", len(ev.Payload))

	if l.cursor.Load() < 0 {
		check.Assert(ev.Kind == flock.EventIgnore, "queue.Append: first append must be an ignore event")
		l.cursor.Store(seq)
		l.gate.Signal()
	}
	return seq
}

// PushLeave queues a leave event on the local ring and wakes the
// dispatcher. Leaves never enter the shared log.
func (l *Log) PushLeave(ev flock.Event) {
	if !l.ring.Push(ev) {
		l.log.Error("leave ring full, dropping leave event", "node", ev.Sender.Node)
		return
	}
	l.gate.Signal()
}

// Pop delivers the next event, leave ring first. It returns false when
// nothing is deliverable. Blocked events are returned without arming a
// watch on the next position: the entry will be rewritten in place and
// re-read. A Leave entry found in the log is a stale duplicate (leaves
// travel via the ring) and is dropped.
func (l *Log) Pop() (flock.Event, bool) {
	if l.ring.Len() > 0 {
		return l.popLeave()
	}

	pos := l.cursor.Load()
	exists, ch, err := l.client.ExistsW(l.entry(pos))
	if err != nil {
		abort.Fatalf("queue: exists %s: %v", l.entry(pos), err)
	}
	l.forward(ch)
	if !exists {
		return flock.Event{}, false
	}

	data, ch, err := l.client.GetW(l.entry(pos))
	if err != nil {
		abort.Fatalf("queue: read %s: %v", l.entry(pos), err)
	}
	l.forward(ch)
	ev, err := flock.DecodeEvent(data)
	if err != nil {
		abort.Fatalf("queue: entry %d: %v", pos, err)
	}
	l.cursor.Store(pos + 1)
	l.log.Debug("popped entry", "seq", pos, "kind", ev.Kind, "blocked", ev.Blocked)

	if !ev.Blocked {
		l.armWatch(pos + 1)
	}
	if ev.Kind == flock.EventLeave {
		return flock.Event{}, false
	}
	return ev, true
}

// popLeave delivers the head of the leave ring. If the log entry at the
// cursor was sent by the same node and is blocked, the cursor skips it:
// a departing node cannot be allowed to block the cluster.
func (l *Log) popLeave() (flock.Event, bool) {
	lev, ok := l.ring.Pop()
	if !ok {
		return flock.Event{}, false
	}

	pos := l.cursor.Load()
	pending := false
	data, ch, err := l.client.GetW(l.entry(pos))
	if err == nil {
		pending = true
		l.forward(ch)
		if head, derr := flock.DecodeEvent(data); derr == nil && head.Blocked && head.Sender.Node == lev.Sender.Node {
			l.log.Debug("skipping blocked entry from departed node", "seq", pos, "node", head.Sender.Node)
			pos++
			l.cursor.Store(pos)
			pending = l.armWatch(pos)
		}
	} else if !errors.Is(err, zk.ErrNoNode) {
		abort.Fatalf("queue: read %s: %v", l.entry(pos), err)
	}

	if l.ring.Len() > 0 || pending {
		l.gate.Signal()
	}
	return lev, true
}

// PushBack rewinds the cursor one step. With a non-nil event it also
// rewrites the entry now under the cursor, which is how the blocking
// protocol mutates an event in place: pop, modify, push back.
func (l *Log) PushBack(ev *flock.Event) {
	pos := l.cursor.Add(-1)
	if ev == nil {
		return
	}
	data, err := ev.Encode()
	if err != nil {
		abort.Fatalf("queue: encode event: %v", err)
	}
	if err := l.client.Set(l.entry(pos), data); err != nil {
		abort.Fatalf("queue: rewrite %s: %v", l.entry(pos), err)
	}
	l.log.Debug("rewrote entry", "seq", pos, "kind", ev.Kind, "blocked", ev.Blocked)
}

// armWatch leaves an existence watch on the entry at seq and reports
// whether it already exists; if so the gate is signaled, since the
// creation event predates the watch and is otherwise lost.
func (l *Log) armWatch(seq int32) bool {
	exists, ch, err := l.client.ExistsW(l.entry(seq))
	if err != nil {
		l.log.Warn("arm entry watch failed", "seq", seq, "err", err)
		return false
	}
	l.forward(ch)
	if exists {
		l.gate.Signal()
	}
	return exists
}

// forward turns one-shot watch deliveries into wake signals.
func (l *Log) forward(ch <-chan zk.Event) {
	if ch == nil {
		return
	}
	go func() {
		for ev := range ch {
			switch ev.Type {
			case zk.EventNodeCreated, zk.EventNodeDeleted, zk.EventNodeDataChanged:
				l.gate.Signal()
			}
		}
	}()
}
