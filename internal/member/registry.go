package member

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	"github.com/go-zookeeper/zk"

	"flock"
	"flock/internal/check"
)

// joinWaitDelay is how long Bootstrap waits before re-reading a member
// record whose join the master has not yet approved.
const joinWaitDelay = 10 * time.Millisecond

// Registry manages the directory of ephemeral member records. Each live
// process owns exactly one record, named after its node id; the record
// vanishes with the session, and the delete watch turns that into a
// leave event via onLeave.
type Registry struct {
	client  Client
	gate    Gate
	root    string
	view    *View
	onLeave func(flock.Member)
	log     *slog.Logger
}

// NewRegistry returns a registry rooted at root (e.g. "/flock/member").
// onLeave receives the view record of every member whose znode is
// deleted; it runs on a watch goroutine and must not block.
func NewRegistry(client Client, gate Gate, root string, view *View, onLeave func(flock.Member)) *Registry {
	check.Assert(client != nil, "member.NewRegistry: client must not be nil")
	check.Assert(view != nil, "member.NewRegistry: view must not be nil")
	return &Registry{
		client:  client,
		gate:    gate,
		root:    root,
		view:    view,
		onLeave: onLeave,
		log:     slog.With("component", "member"),
	}
}

func (r *Registry) path(node flock.NodeID) string {
	return r.root + "/" + string(node)
}

// Bootstrap loads every member record, sorted ascending by seq, leaving
// delete watches behind. A record whose joined flag is still false
// belongs to a concurrent joiner awaiting master approval; Bootstrap
// re-reads it until it commits or its session dies.
func (r *Registry) Bootstrap() ([]flock.Member, error) {
	kids, err := r.client.Children(r.root)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	var members []flock.Member
	for _, name := range kids {
		p := r.root + "/" + name
		for {
			data, ch, err := r.client.GetW(p)
			if errors.Is(err, zk.ErrNoNode) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("read member %s: %w", p, err)
			}
			r.watch(ch)
			m, err := flock.DecodeMember(data)
			if err != nil {
				return nil, fmt.Errorf("decode member %s: %w", p, err)
			}
			if !m.Joined {
				r.log.Debug("waiting for member to finish joining", "node", m.Node)
				time.Sleep(joinWaitDelay)
				continue
			}
			members = append(members, m)
			break
		}
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Seq < members[j].Seq })
	return members, nil
}

// CreateSelf publishes this process's member record as an ephemeral node.
func (r *Registry) CreateSelf(m flock.Member) error {
	data, err := flock.EncodeMember(m)
	if err != nil {
		return fmt.Errorf("encode member record: %w", err)
	}
	if _, err := r.client.Create(r.path(m.Node), data, zk.FlagEphemeral); err != nil {
		return fmt.Errorf("create member record %s: %w", r.path(m.Node), err)
	}
	return nil
}

// SetJoined rewrites node's record with the joined flag set. Only the
// master calls this, as its half of the join blocking protocol.
func (r *Registry) SetJoined(node flock.NodeID) error {
	p := r.path(node)
	data, err := r.client.Get(p)
	if err != nil {
		return fmt.Errorf("read member record %s: %w", p, err)
	}
	m, err := flock.DecodeMember(data)
	if err != nil {
		return fmt.Errorf("decode member record %s: %w", p, err)
	}
	m.Joined = true
	out, err := flock.EncodeMember(m)
	if err != nil {
		return fmt.Errorf("encode member record: %w", err)
	}
	if err := r.client.Set(p, out); err != nil {
		return fmt.Errorf("update member record %s: %w", p, err)
	}
	return nil
}

// WatchMember arms an existence watch on node's record so its eventual
// deletion produces a leave event.
func (r *Registry) WatchMember(node flock.NodeID) {
	_, ch, err := r.client.ExistsW(r.path(node))
	if err != nil {
		r.log.Warn("arm member watch failed", "node", node, "err", err)
		return
	}
	r.watch(ch)
}

// watch forwards one-shot member watch deliveries to memberEvent.
func (r *Registry) watch(ch <-chan zk.Event) {
	if ch == nil {
		return
	}
	go func() {
		for ev := range ch {
			r.memberEvent(ev)
		}
	}()
}

// memberEvent handles a watch delivery on a member record. Deletion of
// a known member becomes a leave event; a changed record re-arms the
// watch; everything else just wakes the dispatcher.
func (r *Registry) memberEvent(ev zk.Event) {
	switch ev.Type {
	case zk.EventNodeDeleted:
		name := path.Base(ev.Path)
		m, ok := r.view.Find(flock.NodeID(name))
		if ok {
			r.log.Debug("member record deleted", "node", m.Node)
			if r.onLeave != nil {
				r.onLeave(m)
			}
			return
		}
		r.gate.Signal()
	case zk.EventNodeDataChanged:
		if _, ch, err := r.client.ExistsW(ev.Path); err == nil {
			r.watch(ch)
		}
		r.gate.Signal()
	case zk.EventNodeCreated:
		r.gate.Signal()
	}
}
