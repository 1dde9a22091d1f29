package orch

import (
	"context"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connect creates the session for a freshly opened connection and puts it in its room.
func (o *Orchestrator) Connect(
	conn core.SignalConnection,
	peer *domain.Peer,
	roomName domain.RoomName,
	cancel context.CancelFunc,
) (*app.Session, error) {
	if o.Supervisor != nil && o.Supervisor.Draining() {
		return nil, domain.NewError(domain.KindEngineFatal, "media engine is gone, server is draining")
	}
	s, err := o.Registry.CreateSession(conn, peer, roomName, cancel)
	if err != nil {
		return nil, err
	}
	o.Rooms.Join(roomName, s)
	log.Info().Str("module", "orch").Str("sid", string(s.SID())).Str("room", string(roomName)).Msg("peer connected")
	return s, nil
}

// Disconnect destroys the session and everything it owns. Safe to call twice.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	s, err := o.Registry.GetSession(sid)
	if err != nil {
		return
	}
	o.Registry.DestroySession(sid)
	o.Rooms.Leave(s.Room(), sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(s.Room())).Msg("peer disconnected")
}

// Kick stops the session's connection and tears it down.
func (o *Orchestrator) Kick(sid core.SessionID) {
	s, err := o.Registry.GetSession(sid)
	if err != nil {
		return
	}
	o.Registry.Cancel(sid)
	s.Signal().Close()
	o.Disconnect(sid)
}

// EvictRoom kicks every member of a room and stops it.
func (o *Orchestrator) EvictRoom(name domain.RoomName) {
	for _, s := range o.Registry.MembersOfRoom(name) {
		o.Kick(s.SID())
	}
	o.Rooms.StopRoom(name)
}

// Drain tears down every session after the media engine died. notify runs
// for each session before its connection is closed.
func (o *Orchestrator) Drain(cause error, notify func(*app.Session)) {
	sessions := o.Registry.Drain()
	log.Warn().Err(cause).Str("module", "orch").Int("sessions", len(sessions)).Msg("draining sessions")
	for _, s := range sessions {
		if notify != nil {
			notify(s)
		}
		o.Kick(s.SID())
	}
}
