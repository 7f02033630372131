// Package cluster is the host-facing driver: it connects to the
// coordination service, joins the cluster, and feeds the host's
// dispatch loop through the wake gate.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"flock"
	"flock/config"
	"flock/internal/abort"
	"flock/internal/dispatch"
	"flock/internal/member"
	"flock/internal/queue"
	"flock/internal/wake"
	"flock/internal/zoo"
)

// sessionTimeout is fixed; failure detection latency follows from it.
const sessionTimeout = 30 * time.Second

// Driver is one process's attachment to the cluster. Create it with
// Init, then Join once; afterwards poll Wake (or WakeFD) and call
// Dispatch for every signal.
type Driver struct {
	handler  flock.Handler
	client   *zoo.Client
	gate     *wake.Gate
	lock     *zoo.Lock
	log      *queue.Log
	view     *member.View
	registry *member.Registry
	disp     *dispatch.Dispatcher
	tracer   trace.Tracer
	root     string
	addr     string
	recorder flock.Recorder

	mu     sync.Mutex
	self   flock.Member
	joined bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithRoot overrides the base path of the coordination tree.
func WithRoot(root string) Option {
	return func(d *Driver) { d.root = root }
}

// WithAdvertiseAddr sets the address carried in this process's member
// record, visible to peers through the view.
func WithAdvertiseAddr(addr string) Option {
	return func(d *Driver) { d.addr = addr }
}

// WithRecorder installs an observer of delivered events, e.g. the
// local journal.
func WithRecorder(rec flock.Recorder) Option {
	return func(d *Driver) { d.recorder = rec }
}

// Init connects to the comma-separated coordination endpoints, creates
// the base/queue/member roots if absent, and allocates the wake gate.
// The host must consume Wake and call Dispatch; nothing is delivered
// until it does.
func Init(endpoints string, handler flock.Handler, opts ...Option) (*Driver, error) {
	if handler == nil {
		return nil, fmt.Errorf("cluster: handler is required")
	}
	eps := config.ParseEndpoints(endpoints)
	if len(eps) == 0 {
		return nil, fmt.Errorf("cluster: specify comma-separated host:port endpoints")
	}

	d := &Driver{
		handler: handler,
		root:    config.DefaultRoot,
		tracer:  otel.Tracer("flock/cluster"),
	}
	for _, opt := range opts {
		opt(d)
	}

	client, session, err := zoo.Connect(eps, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("cluster: connect %q: %w", endpoints, err)
	}
	if err := client.Ensure(d.root, d.root+"/queue", d.root+"/member"); err != nil {
		client.Close()
		return nil, fmt.Errorf("cluster: create roots under %s: %w", d.root, err)
	}

	d.client = client
	d.gate = wake.New()
	d.lock = zoo.NewLock(client, d.root+"/lock")
	d.log = queue.NewLog(client, d.gate, d.root+"/queue", flock.MaxMembers)
	d.view = member.NewView()
	d.registry = member.NewRegistry(client, d.gate, d.root+"/member", d.view, d.memberGone)
	d.disp = dispatch.New(d.log, d.registry, d.view, handler, d.gate)
	if d.recorder != nil {
		d.disp.SetRecorder(d.recorder)
	}

	go d.watchSession(session)
	return d, nil
}

// memberGone runs on a watch goroutine when a member's ephemeral record
// disappears (crash, expiry, or graceful leave).
func (d *Driver) memberGone(m flock.Member) {
	d.log.PushLeave(flock.Event{Kind: flock.EventLeave, Sender: m})
}

// watchSession turns session expiry into process death. Ephemeral state
// is gone on expiry and peers already see a leave; limping on would
// split the cluster's picture of membership.
func (d *Driver) watchSession(session <-chan zk.Event) {
	for ev := range session {
		switch ev.State {
		case zk.StateExpired:
			abort.Fatalf("cluster: coordination session expired")
		case zk.StateDisconnected:
			slog.Warn("coordination session disconnected, reconnecting")
		case zk.StateHasSession:
			slog.Debug("coordination session established", "session", d.client.SessionID())
		}
	}
}

// Wake exposes the wake channel for the host's select loop.
func (d *Driver) Wake() <-chan struct{} {
	return d.gate.C()
}

// WakeFD returns a pollable file descriptor mirroring Wake, or -1 where
// the platform has none.
func (d *Driver) WakeFD() int {
	return d.gate.FD()
}

// Join adds this process to the cluster under the global join lock:
// rebuild the view from the registry, reserve a seq, publish the member
// record, and append the blocked join event. It aborts if a record for
// self already exists: that is a stale session and the operator must
// intervene.
func (d *Driver) Join(self flock.NodeID, payload []byte) error {
	if len(payload) > flock.MaxEventPayload {
		return fmt.Errorf("cluster: join payload exceeds %d bytes", flock.MaxEventPayload)
	}
	_, span := d.tracer.Start(context.Background(), "cluster.join",
		trace.WithAttributes(attribute.String("node", string(self))))
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.joined {
		return fmt.Errorf("cluster: already joined as %s", d.self.Node)
	}

	if err := d.lock.Lock(); err != nil {
		abort.Fatalf("cluster: acquire join lock: %v", err)
	}

	members, err := d.registry.Bootstrap()
	if err != nil {
		abort.Fatalf("cluster: bootstrap membership: %v", err)
	}
	d.view.Replace(members)
	if _, ok := d.view.Find(self); ok {
		abort.Fatalf("cluster: a previous session for %s still exists, shutting down", self)
	}

	seq := d.log.Append(flock.Event{Kind: flock.EventIgnore})
	m := flock.Member{
		Seq:      seq,
		Joined:   false,
		ClientID: d.client.SessionID(),
		Node:     self,
		Addr:     d.addr,
	}
	d.self = m
	d.disp.SetSelf(m)
	slog.Info("joining cluster", "node", self, "seq", seq, "session", m.ClientID)

	if err := d.registry.CreateSelf(m); err != nil {
		abort.Fatalf("cluster: %v", err)
	}
	d.addEvent(flock.EventJoin, m, payload, nil)

	if err := d.lock.Unlock(); err != nil {
		abort.Fatalf("cluster: release join lock: %v", err)
	}
	d.joined = true
	return nil
}

// Leave queues a local leave for self. Peers learn of the departure
// when the session closes and the ephemeral record vanishes.
func (d *Driver) Leave() error {
	_, span := d.tracer.Start(context.Background(), "cluster.leave")
	defer span.End()

	d.mu.Lock()
	self := d.self
	d.mu.Unlock()
	d.addEvent(flock.EventLeave, self, nil, nil)
	return nil
}

// Notify appends an application notification to the ordered log. With
// a non-nil blockCB the event is published blocked: blockCB runs to
// completion on this process before any member observes the unblocked
// event.
func (d *Driver) Notify(payload []byte, blockCB func([]byte)) error {
	if len(payload) > flock.MaxEventPayload {
		return fmt.Errorf("cluster: notify payload exceeds %d bytes", flock.MaxEventPayload)
	}
	_, span := d.tracer.Start(context.Background(), "cluster.notify",
		trace.WithAttributes(attribute.Int("payload_len", len(payload)), attribute.Bool("blocking", blockCB != nil)))
	defer span.End()

	d.mu.Lock()
	self := d.self
	d.mu.Unlock()
	d.addEvent(flock.EventNotify, self, payload, blockCB)
	return nil
}

// addEvent is the event assembler: joins block, leaves go through the
// local ring, notifies block only when they carry a callback, and
// everything else is appended as-is.
func (d *Driver) addEvent(kind flock.EventKind, sender flock.Member, payload []byte, blockCB func([]byte)) {
	ev := flock.Event{Kind: kind, Sender: sender, Payload: payload}
	switch kind {
	case flock.EventJoin:
		ev.Blocked = true
	case flock.EventLeave:
		d.log.PushLeave(ev)
		return
	case flock.EventNotify:
		if blockCB != nil {
			ev.Blocked = true
			ev.HasBlockCB = true
			d.disp.EnqueueBlockCB(blockCB)
		}
	}
	d.log.Append(ev)
}

// Dispatch consumes one wake signal and processes at most one event.
// It never blocks.
func (d *Driver) Dispatch() {
	_, span := d.tracer.Start(context.Background(), "cluster.dispatch")
	defer span.End()
	d.disp.Tick()
}

// Close stops the worker and tears down the session. Ephemeral nodes
// vanish with it, so peers observe a leave.
func (d *Driver) Close() error {
	d.disp.Close()
	d.client.Close()
	return d.gate.Close()
}
