package app_test

import (
	"testing"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomJoinLeave(t *testing.T) {
	reg := app.NewRegistry(0)
	rooms := app.NewRoomManager()
	a := newSession(t, reg)
	b := newSession(t, reg)

	room := rooms.Join(domain.DefaultRoom, a)
	rooms.Join(domain.DefaultRoom, b)
	assert.Equal(t, 2, room.MemberCount())
	require.Len(t, rooms.List(), 1)

	rooms.Leave(domain.DefaultRoom, a.SID())
	_, ok := rooms.Get(domain.DefaultRoom)
	assert.True(t, ok)

	rooms.Leave(domain.DefaultRoom, b.SID())
	_, ok = rooms.Get(domain.DefaultRoom)
	assert.False(t, ok)
	assert.Empty(t, rooms.List())
}

func TestRoomListSorted(t *testing.T) {
	reg := app.NewRegistry(0)
	rooms := app.NewRoomManager()
	rooms.Join("zeta", newSession(t, reg))
	rooms.Join("alpha", newSession(t, reg))
	same := rooms.Join("alpha", newSession(t, reg))

	list := rooms.List()
	require.Len(t, list, 2)
	assert.Equal(t, domain.RoomName("alpha"), list[0].Name)
	assert.Equal(t, domain.RoomName("zeta"), list[1].Name)
	assert.Equal(t, domain.RoomName("alpha"), same.Room().Name)
	assert.Equal(t, 2, list[0].MemberCount)

	rooms.StopRoom("alpha")
	assert.Len(t, rooms.List(), 1)
}
