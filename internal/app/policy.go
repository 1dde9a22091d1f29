package app

import "github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a peer whose send queue is full.
type Policy interface {
	OnBackPressure(room core.RoomService, sid core.SessionID) BackpressureAction
}

// SimplePolicy disconnects slow peers; a peer that cannot keep up with
// signaling would miss consumer closures anyway.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.RoomService, core.SessionID) BackpressureAction {
	return KickMember
}

// DropPolicy keeps slow peers and drops the frame.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.RoomService, core.SessionID) BackpressureAction {
	return DropFrame
}

// PolicyFor maps the signal.slow_peers setting to a policy. Anything but
// "drop" kicks.
func PolicyFor(name string) Policy {
	if name == "drop" {
		return DropPolicy{}
	}
	return SimplePolicy{}
}
