package flock

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// EventKind discriminates the cluster event types carried by the log.
type EventKind uint8

const (
	EventJoin EventKind = iota + 1
	EventLeave
	EventNotify
	// EventIgnore entries exist only to reserve a sequence number; the
	// dispatcher discards them.
	EventIgnore
)

func (k EventKind) String() string {
	switch k {
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	case EventNotify:
		return "notify"
	case EventIgnore:
		return "ignore"
	}
	return "unknown"
}

// MaxEventPayload bounds the opaque payload carried by one log entry.
const MaxEventPayload = 64 << 10

// Event is one entry in the ordered cluster log. Join and Notify events
// travel through the shared log; Leave events travel through a local
// ring and never carry a payload.
//
// A blocked event sits at the head of the log until the responsible
// node rewrites it in place with Blocked cleared; no process advances
// its cursor past it. HasBlockCB marks a Notify whose originator must
// run a callback before unblocking; the callback itself stays local to
// the originator and is never serialized.
type Event struct {
	Kind       EventKind  `cbor:"kind"`
	Sender     Member     `cbor:"sender"`
	JoinResult JoinResult `cbor:"join_result,omitempty"`
	HasBlockCB bool       `cbor:"has_block_cb,omitempty"`
	Blocked    bool       `cbor:"blocked,omitempty"`
	Callbacked bool       `cbor:"callbacked,omitempty"`
	Payload    []byte     `cbor:"payload,omitempty"`
}

// Encode serializes the event for storage as a log-entry value.
func (e Event) Encode() ([]byte, error) {
	if len(e.Payload) > MaxEventPayload {
		return nil, fmt.Errorf("event payload %d bytes exceeds %d byte limit", len(e.Payload), MaxEventPayload)
	}
	return cbor.Marshal(e)
}

// DecodeEvent parses a log-entry value.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := cbor.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if len(e.Payload) > MaxEventPayload {
		return Event{}, fmt.Errorf("event payload %d bytes exceeds %d byte limit", len(e.Payload), MaxEventPayload)
	}
	return e, nil
}
