package cluster

import (
	"testing"

	"flock"
)

type nopHandler struct{}

func (nopHandler) CheckJoin(flock.NodeID, []byte) flock.JoinResult { return flock.JoinAccept }
func (nopHandler) HandleJoin(flock.NodeID, []flock.Member, flock.JoinResult, []byte) {
}
func (nopHandler) HandleLeave(flock.NodeID, []flock.Member) {}
func (nopHandler) HandleNotify(flock.NodeID, []byte)        {}

func TestInitRequiresHandler(t *testing.T) {
	if _, err := Init("127.0.0.1:2181", nil); err == nil {
		t.Fatal("Init accepted a nil handler")
	}
}

func TestInitRequiresEndpoints(t *testing.T) {
	if _, err := Init("", nopHandler{}); err == nil {
		t.Fatal("Init accepted empty endpoints")
	}
	if _, err := Init(" , , ", nopHandler{}); err == nil {
		t.Fatal("Init accepted blank endpoints")
	}
}
