// Package flock plugs a storage daemon into a ZooKeeper-compatible
// coordination service. It gives every process the same totally ordered
// stream of cluster events (joins, leaves, application notifications),
// detects crashed members through ephemeral presence, and supports
// blocking events whose handler must finish on the originator before any
// peer observes the result.
package flock

import "github.com/fxamacker/cbor/v2"

// MaxMembers bounds the cluster size. It sizes the leave ring, so a
// burst of simultaneous failures can never overwrite pending leaves.
const MaxMembers = 1024

// NodeID identifies a cluster member. It is opaque to the driver: the
// host picks it, peers compare it for equality, and its string form
// names the member's record in the coordination tree.
type NodeID string

// Member is one live process's record in the membership registry.
// Seq is allocated by the ordered log and never reused; the member with
// the smallest Seq whose Joined flag is set is the master.
type Member struct {
	Seq      int32  `cbor:"seq"`
	Joined   bool   `cbor:"joined"`
	ClientID int64  `cbor:"clientid"`
	Node     NodeID `cbor:"node"`
	Addr     string `cbor:"addr,omitempty"`
}

// EncodeMember serializes a member record for storage in its registry node.
func EncodeMember(m Member) ([]byte, error) {
	return cbor.Marshal(m)
}

// DecodeMember parses a member record read back from the registry.
func DecodeMember(data []byte) (Member, error) {
	var m Member
	err := cbor.Unmarshal(data, &m)
	return m, err
}

// JoinResult is the master's verdict on a join request.
type JoinResult int32

const (
	// JoinAccept admits the node.
	JoinAccept JoinResult = iota
	// JoinReject refuses the node; the join handler sees the result.
	JoinReject
	// JoinWait tells the node to retry later.
	JoinWait
	// JoinMasterTransfer means the cluster needs a master handoff. The
	// approving master exits; the admitted node re-enters as sole member.
	JoinMasterTransfer
)

func (r JoinResult) String() string {
	switch r {
	case JoinAccept:
		return "accept"
	case JoinReject:
		return "reject"
	case JoinWait:
		return "wait"
	case JoinMasterTransfer:
		return "master-transfer"
	}
	return "unknown"
}

// Handler receives cluster events from the dispatcher. All methods are
// invoked from the host's dispatch thread, one event at a time, in the
// same order on every member.
type Handler interface {
	// CheckJoin runs on the master only and decides a join request.
	CheckJoin(node NodeID, payload []byte) JoinResult

	// HandleJoin fires after a join commits. view is the membership
	// sorted ascending by seq, including the new member.
	HandleJoin(node NodeID, view []Member, result JoinResult, payload []byte)

	// HandleLeave fires after a member vanishes. view no longer
	// contains the departed member.
	HandleLeave(node NodeID, view []Member)

	// HandleNotify delivers an application notification.
	HandleNotify(node NodeID, payload []byte)
}

// Recorder observes delivered events, e.g. for a local journal. Record
// must not block the dispatch path for long.
type Recorder interface {
	Record(e Event)
}
