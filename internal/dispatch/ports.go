package dispatch

import "flock"

// Queue is the ordered event log as the dispatcher sees it.
type Queue interface {
	// Pop delivers the next event, or reports false when none is ready.
	Pop() (flock.Event, bool)
	// PushBack rewinds the cursor; a non-nil event also rewrites the
	// entry in place.
	PushBack(ev *flock.Event)
}

// Registry is the membership registry as the dispatcher sees it.
type Registry interface {
	// SetJoined commits a join in the sender's member record.
	SetJoined(node flock.NodeID) error
	// WatchMember arms a deletion watch on the sender's record.
	WatchMember(node flock.NodeID)
}

// Gate is the wake object shared with the host's poll loop.
type Gate interface {
	Signal()
	TryConsume() bool
}
