package core

import (
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
)

// PublishResult reports delivery stats and backpressure to the orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []SessionID
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	SID      SessionID `json:"sid"`
	Name     string    `json:"name,omitempty"`
	JoinedAt string    `json:"joinedAt"`
}

// RoomService owns the membership set of a room but never touches media resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO

	AddMember(m Member)
	RemoveMember(sid SessionID)
	Broadcast(from SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

type RoomManager interface {
	Get(name domain.RoomName) (RoomService, bool)
	// Join adds m to the room, creating the room when needed.
	Join(name domain.RoomName, m Member) RoomService
	// Leave removes sid and drops the room once it is empty.
	Leave(name domain.RoomName, sid SessionID)
	List() []RoomInfo
	StopRoom(name domain.RoomName)
}
