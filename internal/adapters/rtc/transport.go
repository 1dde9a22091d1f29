package rtc

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var supportedFingerprints = []string{"sha-1", "sha-224", "sha-256", "sha-384", "sha-512"}

// Transport holds one ICE gatherer for its whole lifetime, so its
// ports stay allocated until Close.
type Transport struct {
	id       string
	router   *Router
	gatherer *webrtc.ICEGatherer

	ice        domain.IceParameters
	candidates []domain.IceCandidate
	dtls       domain.DtlsParameters

	mids atomic.Uint32

	mu        sync.Mutex
	state     domain.DtlsState
	remote    *domain.DtlsParameters
	onDtls    func(domain.DtlsState)
	closed    bool
	producers map[string]*Producer
	consumers map[string]*Consumer

	logger zerolog.Logger
}

func newTransport(ctx context.Context, r *Router, opts core.WebRtcTransportOptions) (*Transport, error) {
	id := uuid.NewString()
	logger := log.With().Str("module", "rtc.transport").Str("transport", id).Logger()

	g, err := r.worker.api.NewICEGatherer(webrtc.ICEGatherOptions{})
	if err != nil {
		return nil, fmt.Errorf("new ice gatherer: %w", err)
	}
	done := make(chan struct{})
	var once sync.Once
	g.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			once.Do(func() { close(done) })
		}
	})
	if err := g.Gather(); err != nil {
		_ = g.Close()
		return nil, fmt.Errorf("gather: %w", err)
	}
	select {
	case <-done:
	case <-ctx.Done():
		_ = g.Close()
		return nil, ctx.Err()
	}

	params, err := g.GetLocalParameters()
	if err != nil {
		_ = g.Close()
		return nil, fmt.Errorf("ice parameters: %w", err)
	}
	local, err := g.GetLocalCandidates()
	if err != nil {
		_ = g.Close()
		return nil, fmt.Errorf("ice candidates: %w", err)
	}
	candidates := convertCandidates(local, opts)
	if len(candidates) == 0 {
		_ = g.Close()
		return nil, domain.NewError(domain.KindResourceExhausted, "no ice candidate could be allocated in the rtc port range")
	}

	t := &Transport{
		id:       id,
		router:   r,
		gatherer: g,
		ice: domain.IceParameters{
			UsernameFragment: params.UsernameFragment,
			Password:         params.Password,
			IceLite:          true,
		},
		candidates: candidates,
		dtls: domain.DtlsParameters{
			Role:         domain.DtlsRoleAuto,
			Fingerprints: slices.Clone(r.worker.fingerprints),
		},
		state:     domain.DtlsNew,
		producers: make(map[string]*Producer),
		consumers: make(map[string]*Consumer),
		logger:    logger,
	}
	logger.Info().Int("candidates", len(candidates)).Str("app", opts.AppData["role"]).Msg("transport created")
	return t, nil
}

func convertCandidates(in []webrtc.ICECandidate, opts core.WebRtcTransportOptions) []domain.IceCandidate {
	out := make([]domain.IceCandidate, 0, len(in))
	for _, c := range in {
		proto := c.Protocol.String()
		if (proto == "udp" && !opts.EnableUDP) || (proto == "tcp" && !opts.EnableTCP) {
			continue
		}
		out = append(out, domain.IceCandidate{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			IP:         c.Address,
			Address:    c.Address,
			Protocol:   proto,
			Port:       c.Port,
			Type:       c.Typ.String(),
			TCPType:    c.TCPType,
		})
	}
	if opts.PreferUDP {
		slices.SortStableFunc(out, func(a, b domain.IceCandidate) int {
			switch {
			case a.Protocol == b.Protocol:
				return 0
			case a.Protocol == "udp":
				return -1
			default:
				return 1
			}
		})
	}
	return out
}

func (t *Transport) ID() string { return t.id }

func (t *Transport) IceParameters() domain.IceParameters { return t.ice }

func (t *Transport) IceCandidates() []domain.IceCandidate { return slices.Clone(t.candidates) }

func (t *Transport) DtlsParameters() domain.DtlsParameters {
	out := t.dtls
	out.Fingerprints = slices.Clone(t.dtls.Fingerprints)
	return out
}

func validateRemoteDtls(p domain.DtlsParameters) error {
	switch p.Role {
	case "", domain.DtlsRoleAuto, domain.DtlsRoleClient, domain.DtlsRoleServer:
	default:
		return domain.Errorf(domain.KindProtocol, "invalid dtls role %q", p.Role)
	}
	if len(p.Fingerprints) == 0 {
		return domain.NewError(domain.KindProtocol, "dtlsParameters carry no fingerprint")
	}
	for _, fp := range p.Fingerprints {
		if !slices.Contains(supportedFingerprints, fp.Algorithm) {
			return domain.Errorf(domain.KindProtocol, "unsupported fingerprint algorithm %q", fp.Algorithm)
		}
		if fp.Value == "" {
			return domain.NewError(domain.KindProtocol, "empty fingerprint value")
		}
	}
	return nil
}

// Connect stores the remote DTLS parameters. The handshake itself runs on the
// media path, so the state stays connecting until media flows.
func (t *Transport) Connect(_ context.Context, remote domain.DtlsParameters) error {
	if err := validateRemoteDtls(remote); err != nil {
		return err
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domain.NewError(domain.KindInvalidState, "transport closed")
	}
	if t.remote != nil {
		t.mu.Unlock()
		return domain.NewError(domain.KindInvalidState, "connect already called")
	}
	t.remote = &remote
	t.mu.Unlock()

	t.setState(domain.DtlsConnecting)
	return nil
}

func (t *Transport) setState(st domain.DtlsState) {
	t.mu.Lock()
	if t.state == st {
		t.mu.Unlock()
		return
	}
	t.state = st
	fn := t.onDtls
	t.mu.Unlock()

	t.logger.Debug().Str("dtls_state", string(st)).Msg("dtls state")
	if fn != nil {
		fn(st)
	}
}

func (t *Transport) OnDtlsStateChange(fn func(domain.DtlsState)) {
	t.mu.Lock()
	t.onDtls = fn
	t.mu.Unlock()
}

func (t *Transport) Produce(_ context.Context, opts core.ProducerOptions) (core.Producer, error) {
	if !opts.Kind.Valid() {
		return nil, domain.Errorf(domain.KindProtocol, "invalid kind %q", opts.Kind)
	}
	if err := validateProducerParameters(opts.Kind, opts.RtpParameters, t.router.caps); err != nil {
		return nil, err
	}
	p := &Producer{
		id:        uuid.NewString(),
		kind:      opts.Kind,
		params:    opts.RtpParameters,
		transport: t,
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, domain.NewError(domain.KindInvalidState, "transport closed")
	}
	t.producers[p.id] = p
	t.mu.Unlock()
	t.router.addProducer(p)
	t.logger.Info().Str("producer", p.id).Str("kind", string(p.kind)).Msg("producer created")
	return p, nil
}

func (t *Transport) Consume(_ context.Context, opts core.ConsumerOptions) (core.Consumer, error) {
	p, ok := t.router.producer(opts.ProducerID)
	if !ok || p.closed.Load() {
		return nil, domain.Errorf(domain.KindInvalidState, "producer %s not found", opts.ProducerID)
	}
	mid := strconv.FormatUint(uint64(t.mids.Add(1)-1), 10)
	params, err := consumerParameters(p.params, t.router.caps, opts.RtpCapabilities, mid, t.router.worker.rng)
	if err != nil {
		return nil, err
	}
	c := &Consumer{
		id:         uuid.NewString(),
		producerID: p.id,
		kind:       p.kind,
		params:     params,
		transport:  t,
	}
	c.paused.Store(opts.Paused)
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, domain.NewError(domain.KindInvalidState, "transport closed")
	}
	t.consumers[c.id] = c
	t.mu.Unlock()
	t.logger.Info().Str("consumer", c.id).Str("producer", p.id).Bool("paused", opts.Paused).Msg("consumer created")
	return c, nil
}

func (t *Transport) forget(producerID, consumerID string) {
	t.mu.Lock()
	delete(t.producers, producerID)
	delete(t.consumers, consumerID)
	t.mu.Unlock()
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	producers := make([]*Producer, 0, len(t.producers))
	for _, p := range t.producers {
		producers = append(producers, p)
	}
	consumers := make([]*Consumer, 0, len(t.consumers))
	for _, c := range t.consumers {
		consumers = append(consumers, c)
	}
	t.mu.Unlock()

	for _, p := range producers {
		_ = p.Close()
	}
	for _, c := range consumers {
		_ = c.Close()
	}
	if t.gatherer != nil {
		if err := t.gatherer.Close(); err != nil {
			t.logger.Error().Err(err).Msg("close ice gatherer")
		}
	}
	t.router.transports.Delete(t.id)
	t.setState(domain.DtlsClosed)
	t.logger.Info().Msg("transport closed")
	return nil
}
