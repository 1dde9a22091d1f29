package core

import "github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"

type SessionID string

// Member is what a room stores and fans out to.
type Member interface {
	SID() SessionID
	Peer() *domain.Peer
	Signal() SignalConnection
}
