// Package dispatch holds the single-threaded event consumer: the state
// machine that pops events, runs the blocking protocol, maintains the
// membership view, and invokes host callbacks.
package dispatch

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"flock"
	"flock/internal/abort"
	"flock/internal/check"
	"flock/internal/member"
)

// Dispatcher consumes one event per wake signal. All handler
// invocations happen on the caller's goroutine (the host's dispatch
// thread); only the blocking-callback worker runs elsewhere.
type Dispatcher struct {
	queue    Queue
	registry Registry
	view     *member.View
	handler  flock.Handler
	gate     Gate
	worker   *Worker
	recorder flock.Recorder

	self atomic.Pointer[flock.Member]

	// notifyBlocked is non-zero while a blocking callback is
	// outstanding; the dispatcher stalls until the worker clears it.
	notifyBlocked atomic.Int32

	// blockCBs holds callbacks for this process's pending blocking
	// notifies, in append order. The log is totally ordered, so the
	// head always matches the next blocked notify from self.
	cbMu     sync.Mutex
	blockCBs []func([]byte)

	log *slog.Logger
}

// New wires a dispatcher and starts its worker.
func New(queue Queue, registry Registry, view *member.View, handler flock.Handler, gate Gate) *Dispatcher {
	check.Assert(queue != nil, "dispatch.New: queue must not be nil")
	check.Assert(handler != nil, "dispatch.New: handler must not be nil")
	return &Dispatcher{
		queue:    queue,
		registry: registry,
		view:     view,
		handler:  handler,
		gate:     gate,
		worker:   NewWorker(),
		log:      slog.With("component", "dispatch"),
	}
}

// SetRecorder installs an optional observer of delivered events.
func (d *Dispatcher) SetRecorder(rec flock.Recorder) {
	d.recorder = rec
}

// SetSelf records this process's member identity, assigned during join.
func (d *Dispatcher) SetSelf(m flock.Member) {
	d.self.Store(&m)
}

// Self returns this process's member record, zero before join.
func (d *Dispatcher) Self() flock.Member {
	if m := d.self.Load(); m != nil {
		return *m
	}
	return flock.Member{}
}

// EnqueueBlockCB appends the callback for a blocking notify this
// process is about to publish.
func (d *Dispatcher) EnqueueBlockCB(cb func([]byte)) {
	d.cbMu.Lock()
	d.blockCBs = append(d.blockCBs, cb)
	d.cbMu.Unlock()
}

func (d *Dispatcher) dequeueBlockCB() func([]byte) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	if len(d.blockCBs) == 0 {
		return nil
	}
	cb := d.blockCBs[0]
	d.blockCBs = d.blockCBs[1:]
	return cb
}

// Close stops the blocking-callback worker.
func (d *Dispatcher) Close() {
	d.worker.Close()
}

// Tick consumes one wake signal and processes at most one event. It
// never blocks: with no signal pending or a blocking callback
// outstanding it returns immediately (the worker re-signals when done).
func (d *Dispatcher) Tick() {
	if !d.gate.TryConsume() {
		return
	}
	if d.notifyBlocked.Load() > 0 {
		return
	}
	ev, ok := d.queue.Pop()
	if !ok {
		return
	}
	switch ev.Kind {
	case flock.EventIgnore:
		// sequence reservation only
	case flock.EventJoin:
		d.handleJoin(ev)
	case flock.EventLeave:
		d.handleLeave(ev)
	case flock.EventNotify:
		d.handleNotify(ev)
	}
}

// handleJoin runs both halves of the join blocking protocol.
//
// Blocked: the master decides the join, commits the sender's record,
// and rewrites the event in place; everyone else rewinds and waits for
// the rewrite. Unblocked: every process appends the sender to its view
// and fires the host handler.
func (d *Dispatcher) handleJoin(ev flock.Event) {
	self := d.Self()

	if ev.Blocked {
		if !d.view.IsMaster(self.Node) {
			d.queue.PushBack(nil)
			return
		}
		res := d.handler.CheckJoin(ev.Sender.Node, ev.Payload)
		ev.JoinResult = res
		ev.Blocked = false
		ev.Sender.Joined = true
		if err := d.registry.SetJoined(ev.Sender.Node); err != nil {
			abort.Fatalf("dispatch: commit join for %s: %v", ev.Sender.Node, err)
		}
		d.log.Debug("approved join", "node", ev.Sender.Node, "result", res)
		d.queue.PushBack(&ev)
		if res == flock.JoinMasterTransfer {
			abort.Fatalf("dispatch: join requires master transfer but no master is available; retry when one is up")
		}
		return
	}

	if ev.JoinResult == flock.JoinMasterTransfer {
		// The cluster collapses to this node; re-read the event as
		// sole member and fall through to the normal path.
		solo := self
		solo.Joined = true
		d.view.Replace([]flock.Member{solo})
		d.queue.PushBack(&ev)
		next, ok := d.queue.Pop()
		if !ok {
			abort.Fatalf("dispatch: master-transfer join vanished on re-read")
		}
		ev = next
		// The sender's join is committed; keep the singleton's joined
		// flag when the sender is this node.
		ev.Sender.Joined = true
	}

	d.view.Add(ev.Sender)
	d.registry.WatchMember(ev.Sender.Node)
	view := d.view.Snapshot()
	d.log.Info("member joined", "node", ev.Sender.Node, "members", len(view), "result", ev.JoinResult)
	d.handler.HandleJoin(ev.Sender.Node, view, ev.JoinResult, ev.Payload)
	d.record(ev)
}

// handleLeave removes the sender from the view. A leave for an unknown
// node (e.g. a joiner that crashed before approval) is discarded.
func (d *Dispatcher) handleLeave(ev flock.Event) {
	if _, ok := d.view.Remove(ev.Sender.Node); !ok {
		d.log.Debug("discarding leave for unknown node", "node", ev.Sender.Node)
		return
	}
	view := d.view.Snapshot()
	d.log.Info("member left", "node", ev.Sender.Node, "members", len(view))
	d.handler.HandleLeave(ev.Sender.Node, view)
	d.record(ev)
}

// handleNotify runs the notify blocking protocol. The originator runs
// the callback on the worker before any process observes the unblocked
// event; everyone else rewinds and waits.
func (d *Dispatcher) handleNotify(ev flock.Event) {
	if ev.Blocked {
		self := d.Self()
		if ev.Sender.Node != self.Node || ev.Callbacked {
			d.queue.PushBack(nil)
			return
		}
		ev.Callbacked = true
		d.notifyBlocked.Add(1)
		d.queue.PushBack(&ev)
		cb := d.dequeueBlockCB()
		if cb == nil {
			abort.Fatalf("dispatch: blocked notify from self has no pending callback")
		}
		d.worker.Submit(func() { d.runBlock(cb) })
		return
	}

	d.handler.HandleNotify(ev.Sender.Node, ev.Payload)
	d.record(ev)
}

// runBlock executes on the worker: re-pop the rewound event, run the
// host callback to completion, then unblock the event for the cluster.
func (d *Dispatcher) runBlock(cb func([]byte)) {
	ev, ok := d.queue.Pop()
	if !ok {
		abort.Fatalf("dispatch: blocked notify vanished before callback ran")
	}
	if ev.Kind != flock.EventNotify || !ev.Callbacked {
		abort.Fatalf("dispatch: worker popped %s instead of the rewound notify", ev.Kind)
	}
	cb(ev.Payload)
	ev.Blocked = false
	d.queue.PushBack(&ev)
	d.notifyBlocked.Add(-1)
	d.gate.Signal()
}

func (d *Dispatcher) record(ev flock.Event) {
	if d.recorder != nil {
		d.recorder.Record(ev)
	}
}
