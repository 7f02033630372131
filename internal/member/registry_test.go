package member

import (
	"sync"
	"testing"

	"github.com/go-zookeeper/zk"

	"flock"
)

type fakeRegClient struct {
	mu    sync.Mutex
	data  map[string][]byte
	reads map[string]int
	// onRead mutates stored state after a read, emulating concurrent
	// writers (e.g. a master approving a join mid-bootstrap).
	onRead func(path string, reads int)
}

func newFakeRegClient() *fakeRegClient {
	return &fakeRegClient{data: make(map[string][]byte), reads: make(map[string]int)}
}

func (c *fakeRegClient) put(t *testing.T, path string, m flock.Member) {
	t.Helper()
	data, err := flock.EncodeMember(m)
	if err != nil {
		t.Fatal(err)
	}
	c.mu.Lock()
	c.data[path] = data
	c.mu.Unlock()
}

func (c *fakeRegClient) Create(path string, data []byte, flags int32) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[path]; ok {
		return "", zk.ErrNodeExists
	}
	c.data[path] = data
	return path, nil
}

func (c *fakeRegClient) Get(path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[path]
	if !ok {
		return nil, zk.ErrNoNode
	}
	return data, nil
}

func (c *fakeRegClient) GetW(path string) ([]byte, <-chan zk.Event, error) {
	c.mu.Lock()
	data, ok := c.data[path]
	c.reads[path]++
	reads := c.reads[path]
	hook := c.onRead
	c.mu.Unlock()

	ch := make(chan zk.Event)
	close(ch)
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	if hook != nil {
		hook(path, reads)
	}
	return data, ch, nil
}

func (c *fakeRegClient) ExistsW(path string) (bool, <-chan zk.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan zk.Event)
	close(ch)
	_, ok := c.data[path]
	return ok, ch, nil
}

func (c *fakeRegClient) Set(path string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[path]; !ok {
		return zk.ErrNoNode
	}
	c.data[path] = data
	return nil
}

func (c *fakeRegClient) Children(path string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kids []string
	prefix := path + "/"
	for k := range c.data {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			kids = append(kids, k[len(prefix):])
		}
	}
	return kids, nil
}

type nopGate struct{}

func (nopGate) Signal() {}

const regRoot = "/flock/member"

func TestBootstrapSortsBySeq(t *testing.T) {
	client := newFakeRegClient()
	client.put(t, regRoot+"/c", flock.Member{Seq: 3, Node: "c", Joined: true})
	client.put(t, regRoot+"/a", flock.Member{Seq: 1, Node: "a", Joined: true})
	client.put(t, regRoot+"/b", flock.Member{Seq: 2, Node: "b", Joined: true})

	r := NewRegistry(client, nopGate{}, regRoot, NewView(), nil)
	members, err := r.Bootstrap()
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("members = %d, want 3", len(members))
	}
	for i, want := range []flock.NodeID{"a", "b", "c"} {
		if members[i].Node != want {
			t.Fatalf("members[%d] = %s, want %s", i, members[i].Node, want)
		}
	}
}

func TestBootstrapWaitsForPendingJoin(t *testing.T) {
	client := newFakeRegClient()
	client.put(t, regRoot+"/a", flock.Member{Seq: 1, Node: "a", Joined: true})
	client.put(t, regRoot+"/b", flock.Member{Seq: 2, Node: "b", Joined: false})

	// The master approves b after the first read of its record.
	client.onRead = func(path string, reads int) {
		if path == regRoot+"/b" && reads == 1 {
			client.put(t, regRoot+"/b", flock.Member{Seq: 2, Node: "b", Joined: true})
		}
	}

	r := NewRegistry(client, nopGate{}, regRoot, NewView(), nil)
	members, err := r.Bootstrap()
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
	for _, m := range members {
		if !m.Joined {
			t.Fatalf("member %s not joined after bootstrap", m.Node)
		}
	}
}

func TestCreateSelfAndSetJoined(t *testing.T) {
	client := newFakeRegClient()
	r := NewRegistry(client, nopGate{}, regRoot, NewView(), nil)

	m := flock.Member{Seq: 4, Node: "d", ClientID: 9}
	if err := r.CreateSelf(m); err != nil {
		t.Fatalf("CreateSelf: %v", err)
	}
	if err := r.CreateSelf(m); err == nil {
		t.Fatal("duplicate CreateSelf succeeded")
	}

	if err := r.SetJoined("d"); err != nil {
		t.Fatalf("SetJoined: %v", err)
	}
	data, err := client.Get(regRoot + "/d")
	if err != nil {
		t.Fatal(err)
	}
	got, err := flock.DecodeMember(data)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Joined || got.Seq != 4 || got.ClientID != 9 {
		t.Fatalf("record after SetJoined = %+v", got)
	}
}

func TestMemberDeletionProducesLeave(t *testing.T) {
	client := newFakeRegClient()
	view := NewView()
	view.Replace([]flock.Member{
		{Seq: 1, Node: "a", Joined: true},
		{Seq: 2, Node: "b", Joined: true},
	})

	var left []flock.Member
	r := NewRegistry(client, nopGate{}, regRoot, view, func(m flock.Member) {
		left = append(left, m)
	})

	r.memberEvent(zk.Event{Type: zk.EventNodeDeleted, Path: regRoot + "/b"})
	if len(left) != 1 || left[0].Node != "b" {
		t.Fatalf("leaves = %+v, want [b]", left)
	}

	// Deletion of a node not in the view produces no leave.
	r.memberEvent(zk.Event{Type: zk.EventNodeDeleted, Path: regRoot + "/ghost"})
	if len(left) != 1 {
		t.Fatalf("unknown deletion produced a leave: %+v", left)
	}
}
