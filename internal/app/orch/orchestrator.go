package orch

import (
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app/sfu"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator wires the session registry, rooms and media components
// behind one facade used by the signaling adapter.
type Orchestrator struct {
	Registry   *app.Registry
	Rooms      core.RoomManager
	Caps       *app.CapabilityService
	Negotiator *app.Negotiator
	Relays     *sfu.RelayManager
	Policy     app.Policy
	Supervisor *app.Supervisor
}

// Draining reports whether new sessions must be refused.
func (o *Orchestrator) Draining() bool {
	if o.Supervisor != nil && o.Supervisor.Draining() {
		return true
	}
	return o.Registry.Draining()
}

// Broadcast sends data to every room mate of sid and applies the backpressure
// policy to the ones whose queue is full.
func (o *Orchestrator) Broadcast(sid core.SessionID, roomName domain.RoomName, data core.Frame) core.PublishResult {
	room, ok := o.Rooms.Get(roomName)
	if !ok {
		return core.PublishResult{}
	}
	res := room.Broadcast(sid, data)
	if o.Policy == nil {
		return res
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(slow)).Str("room", string(roomName)).Msg("kicking slow member")
			o.Kick(slow)
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
	return res
}
