//go:build !linux

package wake

func newEventFD() int        { return -1 }
func signalEventFD(int)      {}
func drainEventFD(int)       {}
func closeEventFD(int) error { return nil }
