package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core/enginetest"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var remoteDtls = domain.DtlsParameters{
	Role:         domain.DtlsRoleClient,
	Fingerprints: []domain.DtlsFingerprint{{Algorithm: "sha-256", Value: "11:22"}},
}

func newSession(t *testing.T, reg *app.Registry) *app.Session {
	t.Helper()
	peer, err := domain.NewPeer("token", "alice", "127.0.0.1:5000")
	require.NoError(t, err)
	s, err := reg.CreateSession(&enginetest.Conn{}, peer, domain.DefaultRoom, func() {})
	require.NoError(t, err)
	return s
}

func newNegotiator(r *enginetest.Router) *app.Negotiator {
	return &app.Negotiator{
		Router:             r,
		CallTimeout:        time.Second,
		NegotiationTimeout: time.Minute,
	}
}

func TestCreateAndConnectTransport(t *testing.T) {
	router := enginetest.NewRouter()
	n := newNegotiator(router)
	s := newSession(t, app.NewRegistry(0))

	desc, err := n.CreateTransport(context.Background(), s, domain.RoleSend)
	require.NoError(t, err)
	assert.NotEmpty(t, desc.ID)
	assert.NotEmpty(t, desc.IceParameters.UsernameFragment)
	assert.NotEmpty(t, desc.IceCandidates)
	assert.NotEmpty(t, desc.DtlsParameters.Fingerprints)

	tr, ok := s.Transport(domain.RoleSend)
	require.True(t, ok)
	assert.Equal(t, domain.TransportCreated, tr.State())

	id, err := n.ConnectTransport(context.Background(), s, domain.RoleSend, remoteDtls)
	require.NoError(t, err)
	assert.Equal(t, desc.ID, id)
	assert.Equal(t, domain.TransportConnected, tr.State())
	assert.Equal(t, &remoteDtls, router.Transports()[0].RemoteDtls())

	_, err = n.ConnectTransport(context.Background(), s, domain.RoleSend, remoteDtls)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestConnectWithoutTransport(t *testing.T) {
	n := newNegotiator(enginetest.NewRouter())
	s := newSession(t, app.NewRegistry(0))

	_, err := n.ConnectTransport(context.Background(), s, domain.RoleRecv, remoteDtls)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestCreateTransportReplacesSameRole(t *testing.T) {
	router := enginetest.NewRouter()
	n := newNegotiator(router)
	s := newSession(t, app.NewRegistry(0))

	first, err := n.CreateTransport(context.Background(), s, domain.RoleRecv)
	require.NoError(t, err)
	old, _ := s.Transport(domain.RoleRecv)

	second, err := n.CreateTransport(context.Background(), s, domain.RoleRecv)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	assert.Equal(t, domain.TransportClosed, old.State())
	assert.Equal(t, domain.ReasonReplaced, old.CloseReason())
	assert.True(t, router.Transports()[0].Closed())

	cur, _ := s.Transport(domain.RoleRecv)
	assert.Equal(t, second.ID, cur.ID)
	assert.Equal(t, domain.TransportCreated, cur.State())
}

func TestRolesAreIndependent(t *testing.T) {
	n := newNegotiator(enginetest.NewRouter())
	s := newSession(t, app.NewRegistry(0))

	_, err := n.CreateTransport(context.Background(), s, domain.RoleSend)
	require.NoError(t, err)
	_, err = n.CreateTransport(context.Background(), s, domain.RoleRecv)
	require.NoError(t, err)

	send, _ := s.Transport(domain.RoleSend)
	recv, _ := s.Transport(domain.RoleRecv)
	assert.Equal(t, domain.TransportCreated, send.State())
	assert.Equal(t, domain.TransportCreated, recv.State())
}

func TestCreateTransportEngineFailure(t *testing.T) {
	router := enginetest.NewRouter()
	router.CreateErr = errors.New("boom")
	n := newNegotiator(router)
	s := newSession(t, app.NewRegistry(0))

	_, err := n.CreateTransport(context.Background(), s, domain.RoleSend)
	assert.Equal(t, domain.KindEngine, domain.KindOf(err))
	_, ok := s.Transport(domain.RoleSend)
	assert.False(t, ok)
}

func TestCreateTransportCallTimeout(t *testing.T) {
	router := enginetest.NewRouter()
	router.Delay = time.Second
	n := newNegotiator(router)
	n.CallTimeout = 10 * time.Millisecond
	s := newSession(t, app.NewRegistry(0))

	_, err := n.CreateTransport(context.Background(), s, domain.RoleSend)
	assert.Equal(t, domain.KindTimeout, domain.KindOf(err))
}

func TestNegotiationTimeoutClosesTransport(t *testing.T) {
	router := enginetest.NewRouter()
	n := newNegotiator(router)
	n.NegotiationTimeout = 20 * time.Millisecond
	s := newSession(t, app.NewRegistry(0))

	_, err := n.CreateTransport(context.Background(), s, domain.RoleSend)
	require.NoError(t, err)
	tr, _ := s.Transport(domain.RoleSend)

	require.Eventually(t, func() bool { return tr.State() == domain.TransportClosed }, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.ReasonTimeout, tr.CloseReason())

	_, err = n.ConnectTransport(context.Background(), s, domain.RoleSend, remoteDtls)
	assert.Equal(t, domain.KindTimeout, domain.KindOf(err))
}

func TestConnectedTransportIgnoresTimeout(t *testing.T) {
	n := newNegotiator(enginetest.NewRouter())
	n.NegotiationTimeout = 30 * time.Millisecond
	s := newSession(t, app.NewRegistry(0))

	_, err := n.CreateTransport(context.Background(), s, domain.RoleSend)
	require.NoError(t, err)
	_, err = n.ConnectTransport(context.Background(), s, domain.RoleSend, remoteDtls)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	tr, _ := s.Transport(domain.RoleSend)
	assert.Equal(t, domain.TransportConnected, tr.State())
}

func TestDtlsFailureClosesTransport(t *testing.T) {
	router := enginetest.NewRouter()
	n := newNegotiator(router)
	s := newSession(t, app.NewRegistry(0))

	_, err := n.CreateTransport(context.Background(), s, domain.RoleRecv)
	require.NoError(t, err)
	tr, _ := s.Transport(domain.RoleRecv)

	var reasons []string
	tr.OnClose(func(reason string) { reasons = append(reasons, reason) })

	router.Transports()[0].EmitDtls(domain.DtlsFailed)
	assert.Equal(t, domain.TransportClosed, tr.State())
	assert.Equal(t, []string{domain.ReasonDtlsClose}, reasons)

	// closing again is a no-op
	assert.False(t, tr.Close(domain.ReasonSessionClose))
	assert.Len(t, reasons, 1)
}

func TestConnectFailureAllowsRetry(t *testing.T) {
	router := enginetest.NewRouter()
	n := newNegotiator(router)
	s := newSession(t, app.NewRegistry(0))

	_, err := n.CreateTransport(context.Background(), s, domain.RoleSend)
	require.NoError(t, err)
	et := router.Transports()[0]
	et.ConnectErr = errors.New("bad fingerprint")

	_, err = n.ConnectTransport(context.Background(), s, domain.RoleSend, remoteDtls)
	assert.Equal(t, domain.KindEngine, domain.KindOf(err))
	tr, _ := s.Transport(domain.RoleSend)
	assert.Equal(t, domain.TransportCreated, tr.State())

	et.ConnectErr = nil
	_, err = n.ConnectTransport(context.Background(), s, domain.RoleSend, remoteDtls)
	require.NoError(t, err)
	assert.Equal(t, domain.TransportConnected, tr.State())
}
