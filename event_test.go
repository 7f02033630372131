package flock

import (
	"bytes"
	"testing"
)

func TestEventCodecRoundTrip(t *testing.T) {
	sender := Member{Seq: 7, Joined: true, ClientID: 0x1234, Node: "10.0.0.7:7000", Addr: "10.0.0.7:7000"}

	tests := []struct {
		name string
		ev   Event
	}{
		{
			name: "ignore event",
			ev:   Event{Kind: EventIgnore},
		},
		{
			name: "blocked join with payload",
			ev:   Event{Kind: EventJoin, Sender: sender, Blocked: true, Payload: []byte("opaque")},
		},
		{
			name: "approved join",
			ev:   Event{Kind: EventJoin, Sender: sender, JoinResult: JoinAccept},
		},
		{
			name: "master transfer join",
			ev:   Event{Kind: EventJoin, Sender: sender, JoinResult: JoinMasterTransfer},
		},
		{
			name: "blocking notify mid-protocol",
			ev:   Event{Kind: EventNotify, Sender: sender, HasBlockCB: true, Blocked: true, Callbacked: true, Payload: []byte{0, 1, 2}},
		},
		{
			name: "leave",
			ev:   Event{Kind: EventLeave, Sender: sender},
		},
		{
			name: "max payload",
			ev:   Event{Kind: EventNotify, Sender: sender, Payload: bytes.Repeat([]byte{0xab}, MaxEventPayload)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.ev.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			if got.Kind != tt.ev.Kind ||
				got.Sender != tt.ev.Sender ||
				got.JoinResult != tt.ev.JoinResult ||
				got.HasBlockCB != tt.ev.HasBlockCB ||
				got.Blocked != tt.ev.Blocked ||
				got.Callbacked != tt.ev.Callbacked ||
				!bytes.Equal(got.Payload, tt.ev.Payload) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, tt.ev)
			}
		})
	}
}

func TestEventPayloadBound(t *testing.T) {
	ev := Event{Kind: EventNotify, Payload: make([]byte, MaxEventPayload+1)}
	if _, err := ev.Encode(); err == nil {
		t.Fatal("Encode accepted oversized payload")
	}
}

func TestDecodeEventGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte("\xff\xff\xff not cbor")); err == nil {
		t.Fatal("DecodeEvent accepted garbage")
	}
}

func TestMemberCodecRoundTrip(t *testing.T) {
	m := Member{Seq: 42, Joined: true, ClientID: -9, Node: "n1", Addr: "192.0.2.1:7000"}
	data, err := EncodeMember(m)
	if err != nil {
		t.Fatalf("EncodeMember: %v", err)
	}
	got, err := DecodeMember(data)
	if err != nil {
		t.Fatalf("DecodeMember: %v", err)
	}
	if got != m {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, m)
	}
}

func FuzzEventCodec(f *testing.F) {
	f.Add(uint8(EventJoin), "node-a", []byte("payload"), true, false, int32(0))
	f.Add(uint8(EventNotify), "node-b", []byte{}, false, true, int32(3))
	f.Add(uint8(EventIgnore), "", []byte(nil), false, false, int32(1))

	f.Fuzz(func(t *testing.T, kind uint8, node string, payload []byte, blocked, callbacked bool, result int32) {
		if len(payload) > MaxEventPayload {
			payload = payload[:MaxEventPayload]
		}
		ev := Event{
			Kind:       EventKind(kind),
			Sender:     Member{Seq: 1, Node: NodeID(node)},
			JoinResult: JoinResult(result),
			Blocked:    blocked,
			Callbacked: callbacked,
			Payload:    payload,
		}
		data, err := ev.Encode()
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent: %v", err)
		}
		if got.Kind != ev.Kind || got.Sender.Node != ev.Sender.Node ||
			got.Blocked != ev.Blocked || got.Callbacked != ev.Callbacked ||
			got.JoinResult != ev.JoinResult || !bytes.Equal(got.Payload, ev.Payload) {
			t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, ev)
		}
	})
}
