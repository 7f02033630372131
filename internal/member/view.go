// Package member tracks cluster membership: the process-local view and
// the registry of ephemeral member records in the coordination tree.
package member

import (
	"sort"
	"sync"

	"flock"
)

// View is this process's picture of the cluster, sorted ascending by
// seq. The dispatcher mutates it; watch goroutines only read it, so a
// read-write mutex suffices.
type View struct {
	mu      sync.RWMutex
	members []flock.Member
}

// NewView returns an empty view.
func NewView() *View {
	return &View{}
}

// Replace installs a new membership set, sorted by seq.
func (v *View) Replace(members []flock.Member) {
	sorted := append([]flock.Member(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	v.mu.Lock()
	v.members = sorted
	v.mu.Unlock()
}

// Add inserts a member, keeping seq order. Seqs are unique, so an
// existing record with the same node is replaced.
func (v *View) Add(m flock.Member) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.members {
		if v.members[i].Node == m.Node {
			v.members[i] = m
			return
		}
	}
	i := sort.Search(len(v.members), func(i int) bool { return v.members[i].Seq >= m.Seq })
	v.members = append(v.members, flock.Member{})
	copy(v.members[i+1:], v.members[i:])
	v.members[i] = m
}

// Remove deletes the member for node, preserving order, and returns it.
func (v *View) Remove(node flock.NodeID) (flock.Member, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.members {
		if v.members[i].Node == node {
			m := v.members[i]
			v.members = append(v.members[:i], v.members[i+1:]...)
			return m, true
		}
	}
	return flock.Member{}, false
}

// Find returns the member record for node.
func (v *View) Find(node flock.NodeID) (flock.Member, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, m := range v.members {
		if m.Node == node {
			return m, true
		}
	}
	return flock.Member{}, false
}

// Snapshot copies the current membership.
func (v *View) Snapshot() []flock.Member {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]flock.Member(nil), v.members...)
}

// Len returns the member count.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.members)
}

// Master returns the first member in view order whose joined flag is
// set. Once the cluster is non-empty and stable, one exists.
func (v *View) Master() (flock.Member, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, m := range v.members {
		if m.Joined {
			return m, true
		}
	}
	return flock.Member{}, false
}

// IsMaster reports whether self is the master. An empty view counts:
// the first process to join is master by construction.
func (v *View) IsMaster(self flock.NodeID) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.members) == 0 {
		return true
	}
	for _, m := range v.members {
		if m.Joined {
			return m.Node == self
		}
	}
	return false
}
