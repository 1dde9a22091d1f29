package rtc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/rs/zerolog"
)

type Router struct {
	id     string
	worker *Worker
	caps   domain.RtpCapabilities
	closed atomic.Bool

	mu         sync.RWMutex
	producers  map[string]*Producer
	transports sync.Map // id -> *Transport

	logger zerolog.Logger
}

func (r *Router) ID() string { return r.id }

func (r *Router) RtpCapabilities() domain.RtpCapabilities { return r.caps.Clone() }

func (r *Router) producer(id string) (*Producer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.producers[id]
	return p, ok
}

func (r *Router) addProducer(p *Producer) {
	r.mu.Lock()
	r.producers[p.id] = p
	r.mu.Unlock()
}

func (r *Router) removeProducer(id string) {
	r.mu.Lock()
	delete(r.producers, id)
	r.mu.Unlock()
}

func (r *Router) CanConsume(producerID string, caps domain.RtpCapabilities) bool {
	p, ok := r.producer(producerID)
	if !ok || p.closed.Load() {
		return false
	}
	_, err := consumerParameters(p.params, r.caps, caps, "", r.worker.rng)
	return err == nil
}

func (r *Router) CreateWebRtcTransport(ctx context.Context, opts core.WebRtcTransportOptions) (core.Transport, error) {
	if r.closed.Load() || r.worker.closed.Load() {
		return nil, domain.NewError(domain.KindEngineFatal, "router closed")
	}
	t, err := newTransport(ctx, r, opts)
	if err != nil {
		return nil, err
	}
	r.transports.Store(t.id, t)
	return t, nil
}

func (r *Router) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.transports.Range(func(_, v any) bool {
		_ = v.(*Transport).Close()
		return true
	})
	r.worker.removeRouter(r.id)
	r.logger.Info().Str("router", r.id).Msg("router closed")
	return nil
}
