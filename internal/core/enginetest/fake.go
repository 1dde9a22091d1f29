// Package enginetest provides an in-memory media engine for tests.
package enginetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/google/uuid"
)

var ErrClosed = errors.New("enginetest: closed")

// Capabilities is the codec set every fake router reports.
func Capabilities() domain.RtpCapabilities {
	return domain.RtpCapabilities{
		Codecs: []domain.RtpCodecCapability{
			{Kind: domain.KindAudio, MimeType: "audio/opus", PreferredPayloadType: 100, ClockRate: 48000, Channels: 2},
			{Kind: domain.KindVideo, MimeType: "video/VP8", PreferredPayloadType: 101, ClockRate: 90000,
				Parameters: map[string]any{"x-google-start-bitrate": 1000}},
		},
		HeaderExtensions: []domain.RtpHeaderExtension{
			{Kind: domain.KindAudio, URI: "urn:ietf:params:rtp-hdrext:sdes:mid", PreferredID: 1},
		},
	}
}

// OpusParameters are valid producer parameters for the fake router.
func OpusParameters() domain.RtpParameters {
	return domain.RtpParameters{
		Mid:       "0",
		Codecs:    []domain.RtpCodecParameters{{MimeType: "audio/opus", PayloadType: 100, ClockRate: 48000, Channels: 2}},
		Encodings: []domain.RtpEncodingParameters{{Ssrc: 1111}},
		Rtcp:      domain.RtcpParameters{Cname: "fake"},
	}
}

type Worker struct {
	died chan error
	once sync.Once
}

func NewWorker() *Worker {
	return &Worker{died: make(chan error, 1)}
}

func (w *Worker) PID() int { return 4242 }

func (w *Worker) CreateRouter(_ context.Context, _ []domain.RtpCodecCapability) (core.Router, error) {
	return NewRouter(), nil
}

func (w *Worker) Died() <-chan error { return w.died }

// Kill simulates an engine crash.
func (w *Worker) Kill(err error) {
	w.once.Do(func() { w.died <- err })
}

func (w *Worker) Close() error { return nil }

type Router struct {
	caps domain.RtpCapabilities

	// CreateErr fails the next transport creations.
	CreateErr error
	// Delay blocks every engine call until it elapses or ctx ends.
	Delay time.Duration

	mu         sync.Mutex
	producers  map[string]*Producer
	transports []*Transport
}

func NewRouter() *Router {
	return &Router{caps: Capabilities(), producers: make(map[string]*Producer)}
}

func (r *Router) ID() string { return "router-1" }

func (r *Router) RtpCapabilities() domain.RtpCapabilities { return r.caps.Clone() }

func (r *Router) CanConsume(producerID string, caps domain.RtpCapabilities) bool {
	r.mu.Lock()
	p, ok := r.producers[producerID]
	r.mu.Unlock()
	if !ok || p.Closed() {
		return false
	}
	for _, pc := range p.params.MediaCodecs() {
		for _, c := range caps.Codecs {
			if strings.EqualFold(pc.MimeType, c.MimeType) {
				return true
			}
		}
	}
	return false
}

func (r *Router) wait(ctx context.Context) error {
	if r.Delay == 0 {
		return nil
	}
	select {
	case <-time.After(r.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) CreateWebRtcTransport(ctx context.Context, _ core.WebRtcTransportOptions) (core.Transport, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}
	t := &Transport{router: r, id: uuid.NewString()}
	r.mu.Lock()
	r.transports = append(r.transports, t)
	r.mu.Unlock()
	return t, nil
}

// Transports returns every transport created so far.
func (r *Router) Transports() []*Transport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Transport, len(r.transports))
	copy(out, r.transports)
	return out
}

func (r *Router) Close() error { return nil }

type Transport struct {
	router *Router
	id     string

	// ConnectErr fails Connect.
	ConnectErr error

	mu     sync.Mutex
	onDtls func(domain.DtlsState)
	remote *domain.DtlsParameters
	closed bool
}

func (t *Transport) ID() string { return t.id }

func (t *Transport) IceParameters() domain.IceParameters {
	return domain.IceParameters{UsernameFragment: "ufrag-" + t.id[:8], Password: "pwd-" + t.id, IceLite: true}
}

func (t *Transport) IceCandidates() []domain.IceCandidate {
	return []domain.IceCandidate{{
		Foundation: "udpcandidate", Priority: 1076302079, IP: "127.0.0.1", Address: "127.0.0.1",
		Protocol: "udp", Port: 2000, Type: "host",
	}}
}

func (t *Transport) DtlsParameters() domain.DtlsParameters {
	return domain.DtlsParameters{
		Role:         domain.DtlsRoleAuto,
		Fingerprints: []domain.DtlsFingerprint{{Algorithm: "sha-256", Value: "AA:BB"}},
	}
}

func (t *Transport) Connect(ctx context.Context, remote domain.DtlsParameters) error {
	if err := t.router.wait(ctx); err != nil {
		return err
	}
	if t.ConnectErr != nil {
		return t.ConnectErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.remote = &remote
	return nil
}

func (t *Transport) Produce(ctx context.Context, opts core.ProducerOptions) (core.Producer, error) {
	if err := t.router.wait(ctx); err != nil {
		return nil, err
	}
	p := &Producer{id: uuid.NewString(), kind: opts.Kind, params: opts.RtpParameters}
	t.router.mu.Lock()
	t.router.producers[p.id] = p
	t.router.mu.Unlock()
	return p, nil
}

func (t *Transport) Consume(ctx context.Context, opts core.ConsumerOptions) (core.Consumer, error) {
	if err := t.router.wait(ctx); err != nil {
		return nil, err
	}
	t.router.mu.Lock()
	p, ok := t.router.producers[opts.ProducerID]
	t.router.mu.Unlock()
	if !ok {
		return nil, errors.New("enginetest: producer not found")
	}
	c := &Consumer{id: uuid.NewString(), producerID: p.id, kind: p.kind, params: p.params}
	c.paused.Store(opts.Paused)
	return c, nil
}

func (t *Transport) OnDtlsStateChange(fn func(domain.DtlsState)) {
	t.mu.Lock()
	t.onDtls = fn
	t.mu.Unlock()
}

// EmitDtls fires the registered DTLS callback as the engine would.
func (t *Transport) EmitDtls(st domain.DtlsState) {
	t.mu.Lock()
	fn := t.onDtls
	t.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	t.EmitDtls(domain.DtlsClosed)
	return nil
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) RemoteDtls() *domain.DtlsParameters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remote
}

type Producer struct {
	id     string
	kind   domain.MediaKind
	params domain.RtpParameters
	closed atomic.Bool
}

func (p *Producer) ID() string                          { return p.id }
func (p *Producer) Kind() domain.MediaKind              { return p.kind }
func (p *Producer) RtpParameters() domain.RtpParameters { return p.params }
func (p *Producer) Closed() bool                        { return p.closed.Load() }

func (p *Producer) Close() error {
	p.closed.Store(true)
	return nil
}

type Consumer struct {
	id         string
	producerID string
	kind       domain.MediaKind
	params     domain.RtpParameters
	paused     atomic.Bool
	closed     atomic.Bool
	resumes    atomic.Int32
}

func (c *Consumer) ID() string                          { return c.id }
func (c *Consumer) ProducerID() string                  { return c.producerID }
func (c *Consumer) Kind() domain.MediaKind              { return c.kind }
func (c *Consumer) RtpParameters() domain.RtpParameters { return c.params }
func (c *Consumer) Paused() bool                        { return c.paused.Load() }
func (c *Consumer) Closed() bool                        { return c.closed.Load() }
func (c *Consumer) Resumes() int                        { return int(c.resumes.Load()) }

func (c *Consumer) Resume(_ context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.paused.Store(false)
	c.resumes.Add(1)
	return nil
}

func (c *Consumer) Close() error {
	c.closed.Store(true)
	return nil
}
