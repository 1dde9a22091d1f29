package sfu_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app/sfu"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core/enginetest"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router *enginetest.Router
	reg    *app.Registry
	neg    *app.Negotiator
	relays *sfu.RelayManager

	mu     sync.Mutex
	closed []sfu.ConsumerClosed
}

func newFixture() *fixture {
	router := enginetest.NewRouter()
	f := &fixture{
		router: router,
		reg:    app.NewRegistry(0),
		neg:    &app.Negotiator{Router: router, CallTimeout: time.Second, NegotiationTimeout: time.Minute},
		relays: sfu.NewRelayManager(router, time.Second),
	}
	f.relays.OnConsumerClosed = func(ev sfu.ConsumerClosed) {
		f.mu.Lock()
		f.closed = append(f.closed, ev)
		f.mu.Unlock()
	}
	return f
}

func (f *fixture) events() []sfu.ConsumerClosed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sfu.ConsumerClosed(nil), f.closed...)
}

func (f *fixture) session(t *testing.T, room domain.RoomName, roles ...domain.TransportRole) *app.Session {
	t.Helper()
	peer, err := domain.NewPeer("token", "peer", "127.0.0.1:5000")
	require.NoError(t, err)
	s, err := f.reg.CreateSession(&enginetest.Conn{}, peer, room, func() {})
	require.NoError(t, err)
	for _, role := range roles {
		_, err = f.neg.CreateTransport(context.Background(), s, role)
		require.NoError(t, err)
		_, err = f.neg.ConnectTransport(context.Background(), s, role, domain.DtlsParameters{
			Role:         domain.DtlsRoleClient,
			Fingerprints: []domain.DtlsFingerprint{{Algorithm: "sha-256", Value: "11:22"}},
		})
		require.NoError(t, err)
	}
	return s
}

func (f *fixture) produce(t *testing.T, s *app.Session) string {
	t.Helper()
	id, err := f.relays.Produce(context.Background(), s, domain.KindAudio, enginetest.OpusParameters())
	require.NoError(t, err)
	return id
}

func TestProduceRequiresConnectedSendTransport(t *testing.T) {
	f := newFixture()
	s := f.session(t, domain.DefaultRoom)

	_, err := f.relays.Produce(context.Background(), s, domain.KindAudio, enginetest.OpusParameters())
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))

	_, err = f.neg.CreateTransport(context.Background(), s, domain.RoleSend)
	require.NoError(t, err)
	_, err = f.relays.Produce(context.Background(), s, domain.KindAudio, enginetest.OpusParameters())
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestProduceRejectsBadKindAndSecondProducer(t *testing.T) {
	f := newFixture()
	s := f.session(t, domain.DefaultRoom, domain.RoleSend)

	_, err := f.relays.Produce(context.Background(), s, "data", enginetest.OpusParameters())
	assert.Equal(t, domain.KindProtocol, domain.KindOf(err))

	id := f.produce(t, s)
	assert.Equal(t, id, s.ProducerID())
	assert.True(t, f.relays.HasProducer(id))

	_, err = f.relays.Produce(context.Background(), s, domain.KindAudio, enginetest.OpusParameters())
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestConsumeLatestProducerStartsPaused(t *testing.T) {
	f := newFixture()
	pub := f.session(t, domain.DefaultRoom, domain.RoleSend)
	sub := f.session(t, domain.DefaultRoom, domain.RoleRecv)
	pid := f.produce(t, pub)

	params, err := f.relays.Consume(context.Background(), sub, "", enginetest.Capabilities())
	require.NoError(t, err)
	assert.Equal(t, pid, params.ProducerID)
	assert.Equal(t, domain.KindAudio, params.Kind)
	assert.NotEmpty(t, params.RtpParameters.Codecs)

	c, ok := f.relays.Consumer(params.ID)
	require.True(t, ok)
	assert.Equal(t, domain.ConsumerPaused, c.State())
	assert.Equal(t, params.ID, sub.ConsumerID())
}

func TestSelfConsume(t *testing.T) {
	f := newFixture()
	s := f.session(t, domain.DefaultRoom, domain.RoleSend, domain.RoleRecv)
	pid := f.produce(t, s)

	params, err := f.relays.Consume(context.Background(), s, "", enginetest.Capabilities())
	require.NoError(t, err)
	assert.Equal(t, pid, params.ProducerID)
}

func TestConsumeStaysInRoom(t *testing.T) {
	f := newFixture()
	pub := f.session(t, "other", domain.RoleSend)
	sub := f.session(t, domain.DefaultRoom, domain.RoleRecv)
	f.produce(t, pub)

	_, err := f.relays.Consume(context.Background(), sub, "", enginetest.Capabilities())
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))

	_, err = f.relays.Consume(context.Background(), sub, "missing", enginetest.Capabilities())
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestConsumeCapabilityMismatch(t *testing.T) {
	f := newFixture()
	pub := f.session(t, domain.DefaultRoom, domain.RoleSend)
	sub := f.session(t, domain.DefaultRoom, domain.RoleRecv)
	pid := f.produce(t, pub)

	videoOnly := domain.RtpCapabilities{Codecs: []domain.RtpCodecCapability{
		{Kind: domain.KindVideo, MimeType: "video/VP8", ClockRate: 90000},
	}}
	assert.False(t, f.relays.CanConsume(pid, videoOnly))
	_, err := f.relays.Consume(context.Background(), sub, pid, videoOnly)
	assert.Equal(t, domain.KindCapabilityMismatch, domain.KindOf(err))
	assert.Empty(t, sub.ConsumerID())
}

func TestResumeOnce(t *testing.T) {
	f := newFixture()
	pub := f.session(t, domain.DefaultRoom, domain.RoleSend)
	sub := f.session(t, domain.DefaultRoom, domain.RoleRecv)
	f.produce(t, pub)

	_, err := f.relays.ResumeConsumer(context.Background(), sub)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))

	params, err := f.relays.Consume(context.Background(), sub, "", enginetest.Capabilities())
	require.NoError(t, err)

	id, err := f.relays.ResumeConsumer(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, params.ID, id)
	c, _ := f.relays.Consumer(id)
	assert.Equal(t, domain.ConsumerResumed, c.State())

	_, err = f.relays.ResumeConsumer(context.Background(), sub)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestConsumeReplacesPrevious(t *testing.T) {
	f := newFixture()
	pub := f.session(t, domain.DefaultRoom, domain.RoleSend)
	sub := f.session(t, domain.DefaultRoom, domain.RoleRecv)
	f.produce(t, pub)

	first, err := f.relays.Consume(context.Background(), sub, "", enginetest.Capabilities())
	require.NoError(t, err)
	second, err := f.relays.Consume(context.Background(), sub, "", enginetest.Capabilities())
	require.NoError(t, err)

	_, ok := f.relays.Consumer(first.ID)
	assert.False(t, ok)
	assert.Equal(t, second.ID, sub.ConsumerID())

	evs := f.events()
	require.Len(t, evs, 1)
	assert.Equal(t, first.ID, evs[0].ConsumerID)
	assert.Equal(t, domain.ReasonReplaced, evs[0].Reason)
}

func TestProducerCloseCascades(t *testing.T) {
	f := newFixture()
	pub := f.session(t, domain.DefaultRoom, domain.RoleSend)
	subs := []*app.Session{
		f.session(t, domain.DefaultRoom, domain.RoleRecv),
		f.session(t, domain.DefaultRoom, domain.RoleRecv),
	}
	pid := f.produce(t, pub)
	var ids []string
	for _, s := range subs {
		p, err := f.relays.Consume(context.Background(), s, pid, enginetest.Capabilities())
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	require.Len(t, f.relays.ProducersInRoom(domain.DefaultRoom), 1)
	assert.Equal(t, 2, f.relays.ProducersInRoom(domain.DefaultRoom)[0].Consumers)

	send, _ := pub.Transport(domain.RoleSend)
	send.Close(domain.ReasonDtlsClose)

	// the cascade completes before Close returns
	assert.False(t, f.relays.HasProducer(pid))
	assert.Empty(t, pub.ProducerID())
	for i, s := range subs {
		_, ok := f.relays.Consumer(ids[i])
		assert.False(t, ok)
		assert.Empty(t, s.ConsumerID())
	}
	evs := f.events()
	require.Len(t, evs, 2)
	for _, ev := range evs {
		assert.Equal(t, domain.ReasonProducerClose, ev.Reason)
		assert.Equal(t, pid, ev.ProducerID)
	}
	assert.Empty(t, f.relays.ProducersInRoom(domain.DefaultRoom))
	assert.False(t, f.relays.CloseProducer(pid, domain.ReasonTransportClose))
}

func TestRecvTransportCloseClosesConsumer(t *testing.T) {
	f := newFixture()
	pub := f.session(t, domain.DefaultRoom, domain.RoleSend)
	sub := f.session(t, domain.DefaultRoom, domain.RoleRecv)
	pid := f.produce(t, pub)
	params, err := f.relays.Consume(context.Background(), sub, pid, enginetest.Capabilities())
	require.NoError(t, err)

	recv, _ := sub.Transport(domain.RoleRecv)
	recv.Close(domain.ReasonTimeout)

	_, ok := f.relays.Consumer(params.ID)
	assert.False(t, ok)
	assert.True(t, f.relays.HasProducer(pid))
	evs := f.events()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.ReasonTransportClose, evs[0].Reason)
}

func TestSessionDestroyIsSilent(t *testing.T) {
	f := newFixture()
	pub := f.session(t, domain.DefaultRoom, domain.RoleSend)
	sub := f.session(t, domain.DefaultRoom, domain.RoleRecv)
	pid := f.produce(t, pub)
	_, err := f.relays.Consume(context.Background(), sub, pid, enginetest.Capabilities())
	require.NoError(t, err)

	// the subscriber leaving produces no notification for itself
	f.reg.DestroySession(sub.SID())
	assert.Empty(t, f.events())
	assert.Equal(t, 0, f.relays.ProducersInRoom(domain.DefaultRoom)[0].Consumers)

	f.reg.DestroySession(pub.SID())
	assert.False(t, f.relays.HasProducer(pid))
	assert.Empty(t, f.events())
}

func TestProduceFailsWhenSendTransportClosesMidCall(t *testing.T) {
	f := newFixture()
	pub := f.session(t, domain.DefaultRoom, domain.RoleSend)
	send, _ := pub.Transport(domain.RoleSend)

	f.router.Delay = 50 * time.Millisecond
	time.AfterFunc(10*time.Millisecond, func() { send.Close(domain.ReasonDtlsClose) })

	id, err := f.relays.Produce(context.Background(), pub, domain.KindAudio, enginetest.OpusParameters())
	assert.Empty(t, id)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
	assert.Empty(t, pub.ProducerID())
	assert.Empty(t, f.relays.ProducersInRoom(domain.DefaultRoom))
}

func TestConsumeFailsWhenRecvTransportTimesOutMidCall(t *testing.T) {
	f := newFixture()
	pub := f.session(t, domain.DefaultRoom, domain.RoleSend)
	sub := f.session(t, domain.DefaultRoom, domain.RoleRecv)
	pid := f.produce(t, pub)
	recv, _ := sub.Transport(domain.RoleRecv)

	f.router.Delay = 50 * time.Millisecond
	time.AfterFunc(10*time.Millisecond, func() { recv.Close(domain.ReasonTimeout) })

	_, err := f.relays.Consume(context.Background(), sub, pid, enginetest.Capabilities())
	assert.Equal(t, domain.KindTimeout, domain.KindOf(err))
	assert.Empty(t, sub.ConsumerID())
	assert.Empty(t, f.events(), "no consumer-closed for a consumer the peer never got")
	assert.Equal(t, 0, f.relays.ProducersInRoom(domain.DefaultRoom)[0].Consumers)
}

func TestFailedConsumeKeepsPreviousConsumer(t *testing.T) {
	f := newFixture()
	first := f.session(t, domain.DefaultRoom, domain.RoleSend)
	second := f.session(t, domain.DefaultRoom, domain.RoleSend)
	sub := f.session(t, domain.DefaultRoom, domain.RoleRecv)
	firstPID := f.produce(t, first)
	secondPID := f.produce(t, second)

	kept, err := f.relays.Consume(context.Background(), sub, firstPID, enginetest.Capabilities())
	require.NoError(t, err)

	send, _ := second.Transport(domain.RoleSend)
	f.router.Delay = 50 * time.Millisecond
	time.AfterFunc(10*time.Millisecond, func() { send.Close(domain.ReasonDtlsClose) })

	_, err = f.relays.Consume(context.Background(), sub, secondPID, enginetest.Capabilities())
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))

	assert.Equal(t, kept.ID, sub.ConsumerID())
	_, ok := f.relays.Consumer(kept.ID)
	assert.True(t, ok)
	assert.Empty(t, f.events())
}
