package orch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app/orch"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app/sfu"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core/enginetest"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrch() (*orch.Orchestrator, *enginetest.Router) {
	router := enginetest.NewRouter()
	return &orch.Orchestrator{
		Registry: app.NewRegistry(0),
		Rooms:    app.NewRoomManager(),
		Caps:     app.NewCapabilityService(router),
		Negotiator: &app.Negotiator{
			Router:             router,
			CallTimeout:        time.Second,
			NegotiationTimeout: time.Minute,
		},
		Relays: sfu.NewRelayManager(router, time.Second),
		Policy: app.SimplePolicy{},
	}, router
}

func connect(t *testing.T, o *orch.Orchestrator, room domain.RoomName) (*app.Session, *enginetest.Conn) {
	t.Helper()
	peer, err := domain.NewPeer("token", "peer", "127.0.0.1:5000")
	require.NoError(t, err)
	conn := &enginetest.Conn{}
	s, err := o.Connect(conn, peer, room, func() {})
	require.NoError(t, err)
	return s, conn
}

func TestConnectDisconnect(t *testing.T) {
	o, _ := newOrch()
	a, _ := connect(t, o, "lobby")
	b, _ := connect(t, o, "lobby")

	room, ok := o.Rooms.Get("lobby")
	require.True(t, ok)
	assert.Equal(t, 2, room.MemberCount())

	o.Disconnect(a.SID())
	o.Disconnect(a.SID())
	assert.Equal(t, 1, room.MemberCount())
	assert.Equal(t, domain.SessionClosed, a.State())

	o.Disconnect(b.SID())
	_, ok = o.Rooms.Get("lobby")
	assert.False(t, ok)
	assert.Equal(t, 0, o.Registry.Count())
}

func TestBroadcastKicksSlowMember(t *testing.T) {
	o, _ := newOrch()
	a, _ := connect(t, o, domain.DefaultRoom)
	b, bConn := connect(t, o, domain.DefaultRoom)
	c, cConn := connect(t, o, domain.DefaultRoom)
	cConn.SetFull(true)

	res := o.Broadcast(a.SID(), domain.DefaultRoom, []byte(`{"type":"new-producer"}`))
	assert.Equal(t, 1, res.SendTo)
	assert.Len(t, bConn.Frames(), 1)

	assert.True(t, cConn.Closed())
	_, err := o.Registry.GetSession(c.SID())
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	_, err = o.Registry.GetSession(b.SID())
	assert.NoError(t, err)
}

func TestBroadcastDropPolicyKeepsMember(t *testing.T) {
	o, _ := newOrch()
	o.Policy = app.DropPolicy{}
	a, _ := connect(t, o, domain.DefaultRoom)
	b, bConn := connect(t, o, domain.DefaultRoom)
	bConn.SetFull(true)

	res := o.Broadcast(a.SID(), domain.DefaultRoom, []byte(`{}`))
	assert.Equal(t, []string{string(b.SID())}, []string{string(res.Dropped[0])})
	assert.False(t, bConn.Closed())
}

func TestDrainNotifiesAndClosesEverything(t *testing.T) {
	o, _ := newOrch()
	a, aConn := connect(t, o, domain.DefaultRoom)
	_, bConn := connect(t, o, "other")

	_, err := o.CreateTransport(context.Background(), a, domain.RoleSend)
	require.NoError(t, err)

	var notified int
	o.Drain(errors.New("worker died"), func(*app.Session) { notified++ })

	assert.Equal(t, 2, notified)
	assert.True(t, aConn.Closed())
	assert.True(t, bConn.Closed())
	assert.Equal(t, 0, o.Registry.Count())
	assert.Empty(t, o.Rooms.List())
	tr, _ := a.Transport(domain.RoleSend)
	assert.Equal(t, domain.TransportClosed, tr.State())
	assert.True(t, o.Draining())

	peer, err := domain.NewPeer("token", "late", "127.0.0.1:5000")
	require.NoError(t, err)
	_, err = o.Connect(&enginetest.Conn{}, peer, domain.DefaultRoom, nil)
	assert.Equal(t, domain.KindEngineFatal, domain.KindOf(err))
}

func TestEvictRoom(t *testing.T) {
	o, _ := newOrch()
	connect(t, o, "doomed")
	connect(t, o, "doomed")
	keep, _ := connect(t, o, domain.DefaultRoom)

	o.EvictRoom("doomed")
	assert.Equal(t, 1, o.Registry.Count())
	_, err := o.Registry.GetSession(keep.SID())
	assert.NoError(t, err)
	_, ok := o.Rooms.Get("doomed")
	assert.False(t, ok)
}

func TestRoomProducers(t *testing.T) {
	o, _ := newOrch()
	s, _ := connect(t, o, domain.DefaultRoom)
	_, err := o.CreateTransport(context.Background(), s, domain.RoleSend)
	require.NoError(t, err)
	_, err = o.ConnectTransport(context.Background(), s, domain.RoleSend, domain.DtlsParameters{
		Fingerprints: []domain.DtlsFingerprint{{Algorithm: "sha-256", Value: "11:22"}},
	})
	require.NoError(t, err)
	id, err := o.Produce(context.Background(), s, domain.KindAudio, enginetest.OpusParameters())
	require.NoError(t, err)

	producers := o.RoomProducers(domain.DefaultRoom)
	require.Len(t, producers, 1)
	assert.Equal(t, id, producers[0].ID)
	assert.Equal(t, s.SID(), producers[0].Owner)
	assert.Empty(t, o.RoomProducers("other"))
}
