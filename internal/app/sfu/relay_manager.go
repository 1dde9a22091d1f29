package sfu

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ConsumerClosed is reported for every consumer that closes while its owner
// session is still alive.
type ConsumerClosed struct {
	Owner      *app.Session
	ConsumerID string
	ProducerID string
	Reason     string
}

// ProducerInfo is a read-only view of a live producer.
type ProducerInfo struct {
	ID        string           `json:"id"`
	Kind      domain.MediaKind `json:"kind"`
	Owner     core.SessionID   `json:"owner"`
	Consumers int              `json:"consumers"`
}

// RelayManager owns the producer index and the consumers attached to it.
type RelayManager struct {
	Router      core.Router
	CallTimeout time.Duration
	Metrics     *metrics.Metrics
	// OnConsumerClosed must not block; it runs inside the close cascade.
	OnConsumerClosed func(ev ConsumerClosed)

	mu        sync.RWMutex
	relays    map[string]*Relay
	consumers map[string]*Consumer
	seq       uint64
}

func NewRelayManager(router core.Router, callTimeout time.Duration) *RelayManager {
	return &RelayManager{
		Router:      router,
		CallTimeout: callTimeout,
		relays:      make(map[string]*Relay),
		consumers:   make(map[string]*Consumer),
	}
}

func connectedTransport(s *app.Session, role domain.TransportRole) (*app.Transport, error) {
	t, ok := s.Transport(role)
	if !ok || t.State() != domain.TransportConnected {
		return nil, domain.Errorf(domain.KindInvalidState, "%s transport is not connected", role)
	}
	return t, nil
}

// Produce publishes one track for s on its connected send transport.
func (m *RelayManager) Produce(ctx context.Context, s *app.Session, kind domain.MediaKind, params domain.RtpParameters) (string, error) {
	logger := log.With().Str("module", "sfu").Str("sid", string(s.SID())).Logger()
	if !kind.Valid() {
		return "", domain.Errorf(domain.KindProtocol, "invalid kind %q", kind)
	}
	t, err := connectedTransport(s, domain.RoleSend)
	if err != nil {
		return "", err
	}
	if s.ProducerID() != "" {
		return "", domain.NewError(domain.KindInvalidState, "session already produces")
	}

	callCtx, cancel := app.EngineCall(ctx, m.CallTimeout)
	ep, err := t.Engine().Produce(callCtx, core.ProducerOptions{Kind: kind, RtpParameters: params})
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("produce")
		return "", app.EngineErr("produce", err)
	}
	if err := stillConnected(t); err != nil {
		_ = ep.Close()
		logger.Info().Err(err).Msg("send transport closed during produce")
		return "", err
	}

	if err := s.AttachProducer(ep.ID()); err != nil {
		_ = ep.Close()
		return "", err
	}

	m.mu.Lock()
	m.seq++
	relay := newRelay(ep, s, m.seq)
	m.relays[relay.ProducerID] = relay
	m.mu.Unlock()

	m.Metrics.ProducerOpened(string(kind))
	logger.Info().Str("producer", relay.ProducerID).Str("kind", string(kind)).Str("room", string(relay.Room)).Msg("producer created")

	// runs right away when the transport closed after the check above
	t.OnClose(func(string) { m.CloseProducer(relay.ProducerID, domain.ReasonTransportClose) })
	if relay.closed.Load() {
		return "", closedCause(t, "producer")
	}
	return relay.ProducerID, nil
}

// stillConnected re-checks t once an engine call has returned.
func stillConnected(t *app.Transport) error {
	if t.State() == domain.TransportConnected {
		return nil
	}
	return t.ClosedError()
}

// closedCause explains why a just created producer or consumer is already gone.
func closedCause(t *app.Transport, what string) error {
	if t.State() == domain.TransportClosed {
		return t.ClosedError()
	}
	return domain.Errorf(domain.KindInvalidState, "%s closed", what)
}

// CanConsume asks the router whether caps can receive producerID.
func (m *RelayManager) CanConsume(producerID string, caps domain.RtpCapabilities) bool {
	return m.HasProducer(producerID) && m.Router.CanConsume(producerID, caps)
}

// latest returns the newest live producer in room.
func (m *RelayManager) latest(room domain.RoomName) (*Relay, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Relay
	for _, r := range m.relays {
		if r.Room != room || r.closed.Load() {
			continue
		}
		if best == nil || r.seq > best.seq {
			best = r
		}
	}
	return best, best != nil
}

func (m *RelayManager) relay(producerID string) (*Relay, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relays[producerID]
	if !ok || r.closed.Load() {
		return nil, false
	}
	return r, true
}

// Consume subscribes s to producerID, or to the newest producer of its room
// when producerID is empty. The consumer starts paused and replaces any
// consumer s already had.
func (m *RelayManager) Consume(ctx context.Context, s *app.Session, producerID string, caps domain.RtpCapabilities) (Params, error) {
	logger := log.With().Str("module", "sfu").Str("sid", string(s.SID())).Logger()
	t, err := connectedTransport(s, domain.RoleRecv)
	if err != nil {
		return Params{}, err
	}

	var (
		relay *Relay
		ok    bool
	)
	if producerID == "" {
		relay, ok = m.latest(s.Room())
	} else {
		relay, ok = m.relay(producerID)
	}
	if !ok {
		return Params{}, domain.NewError(domain.KindInvalidState, "no producer to consume")
	}
	if !m.Router.CanConsume(relay.ProducerID, caps) {
		return Params{}, domain.Errorf(domain.KindCapabilityMismatch, "cannot consume producer %s with the given rtpCapabilities", relay.ProducerID)
	}

	callCtx, cancel := app.EngineCall(ctx, m.CallTimeout)
	ec, err := t.Engine().Consume(callCtx, core.ConsumerOptions{
		ProducerID:      relay.ProducerID,
		RtpCapabilities: caps,
		Paused:          true,
	})
	cancel()
	if err != nil {
		logger.Error().Err(err).Str("producer", relay.ProducerID).Msg("consume")
		return Params{}, app.EngineErr("consume", err)
	}
	if err := stillConnected(t); err != nil {
		_ = ec.Close()
		logger.Info().Err(err).Msg("recv transport closed during consume")
		return Params{}, err
	}

	c := newConsumer(ec, s, relay)
	m.mu.Lock()
	m.consumers[c.ID] = c
	m.mu.Unlock()
	if !relay.addConsumer(c) {
		m.discard(c)
		return Params{}, domain.NewError(domain.KindInvalidState, "producer closed")
	}
	// the previous consumer only goes once the new one is attached
	prev, err := s.SwapConsumer(c.ID)
	if err != nil {
		m.discard(c)
		return Params{}, err
	}
	m.Metrics.ConsumerOpened()

	if prev != "" {
		m.CloseConsumer(prev, domain.ReasonReplaced)
	}
	t.OnClose(func(string) { m.CloseConsumer(c.ID, domain.ReasonTransportClose) })
	if c.State() == domain.ConsumerClosed {
		s.DetachConsumer(c.ID)
		return Params{}, closedCause(t, "consumer")
	}

	logger.Info().Str("consumer", c.ID).Str("producer", relay.ProducerID).Msg("consumer created")
	return c.Params(), nil
}

// ResumeConsumer moves the consumer of s from Paused to Resumed, once.
func (m *RelayManager) ResumeConsumer(ctx context.Context, s *app.Session) (string, error) {
	id := s.ConsumerID()
	if id == "" {
		return "", domain.NewError(domain.KindInvalidState, "no consumer to resume")
	}
	c, ok := m.Consumer(id)
	if !ok {
		return "", domain.NewError(domain.KindInvalidState, "consumer closed")
	}
	if !c.markResumed() {
		return "", domain.Errorf(domain.KindInvalidState, "consumer is %s", c.State())
	}

	callCtx, cancel := app.EngineCall(ctx, m.CallTimeout)
	err := c.engine.Resume(callCtx)
	cancel()
	if err != nil {
		c.markPaused()
		return "", app.EngineErr("resume consumer", err)
	}
	log.Info().Str("module", "sfu").Str("sid", string(s.SID())).Str("consumer", c.ID).Msg("consumer resumed")
	return c.ID, nil
}

// CloseProducer closes the producer and, before returning, every consumer of it.
func (m *RelayManager) CloseProducer(producerID, reason string) bool {
	m.mu.Lock()
	relay, ok := m.relays[producerID]
	delete(m.relays, producerID)
	m.mu.Unlock()
	if !ok {
		return false
	}
	consumers, closed := relay.markClosed()
	if !closed {
		return false
	}

	_ = relay.engine.Close()
	relay.Owner.DetachProducer(producerID)
	m.Metrics.ProducerClosed(string(relay.Kind), reason)
	log.Info().Str("module", "sfu").Str("sid", string(relay.Owner.SID())).Str("producer", producerID).Str("reason", reason).Int("consumers", len(consumers)).Msg("producer closed")

	for _, c := range consumers {
		m.CloseConsumer(c.ID, domain.ReasonProducerClose)
	}
	return true
}

// CloseConsumer is idempotent.
func (m *RelayManager) CloseConsumer(consumerID, reason string) bool {
	m.mu.Lock()
	c, ok := m.consumers[consumerID]
	delete(m.consumers, consumerID)
	m.mu.Unlock()
	if !ok || !c.markClosed() {
		return false
	}

	_ = c.engine.Close()
	c.relay.removeConsumer(c.ID)
	c.Owner.DetachConsumer(c.ID)
	m.Metrics.ConsumerClosed(reason)
	log.Info().Str("module", "sfu").Str("sid", string(c.Owner.SID())).Str("consumer", c.ID).Str("reason", reason).Msg("consumer closed")

	if c.Owner.State() != domain.SessionClosed && m.OnConsumerClosed != nil {
		m.OnConsumerClosed(ConsumerClosed{
			Owner:      c.Owner,
			ConsumerID: c.ID,
			ProducerID: c.ProducerID,
			Reason:     reason,
		})
	}
	return true
}

// discard drops a consumer that never reached its owner, without notifying anyone.
func (m *RelayManager) discard(c *Consumer) {
	m.mu.Lock()
	delete(m.consumers, c.ID)
	m.mu.Unlock()
	if c.markClosed() {
		c.relay.removeConsumer(c.ID)
		_ = c.engine.Close()
	}
}

// Consumer looks up an open consumer.
func (m *RelayManager) Consumer(id string) (*Consumer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.consumers[id]
	return c, ok
}

// HasProducer reports whether producerID is live.
func (m *RelayManager) HasProducer(producerID string) bool {
	_, ok := m.relay(producerID)
	return ok
}

// ProducersInRoom lists live producers of room, oldest first.
func (m *RelayManager) ProducersInRoom(room domain.RoomName) []ProducerInfo {
	m.mu.RLock()
	relays := make([]*Relay, 0, len(m.relays))
	for _, r := range m.relays {
		if r.Room == room && !r.closed.Load() {
			relays = append(relays, r)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(relays, func(a, b *Relay) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]ProducerInfo, 0, len(relays))
	for _, r := range relays {
		out = append(out, ProducerInfo{
			ID:        r.ProducerID,
			Kind:      r.Kind,
			Owner:     r.Owner.SID(),
			Consumers: len(r.Consumers()),
		})
	}
	return out
}
