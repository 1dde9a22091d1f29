package rtc

import (
	"context"
	"sync/atomic"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
)

type Producer struct {
	id        string
	kind      domain.MediaKind
	params    domain.RtpParameters
	transport *Transport
	closed    atomic.Bool
}

func (p *Producer) ID() string                          { return p.id }
func (p *Producer) Kind() domain.MediaKind              { return p.kind }
func (p *Producer) RtpParameters() domain.RtpParameters { return p.params }

func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.transport.router.removeProducer(p.id)
	p.transport.forget(p.id, "")
	return nil
}

type Consumer struct {
	id         string
	producerID string
	kind       domain.MediaKind
	params     domain.RtpParameters
	transport  *Transport
	paused     atomic.Bool
	closed     atomic.Bool
}

func (c *Consumer) ID() string                          { return c.id }
func (c *Consumer) ProducerID() string                  { return c.producerID }
func (c *Consumer) Kind() domain.MediaKind              { return c.kind }
func (c *Consumer) RtpParameters() domain.RtpParameters { return c.params }

func (c *Consumer) Resume(_ context.Context) error {
	if c.closed.Load() {
		return domain.NewError(domain.KindInvalidState, "consumer closed")
	}
	c.paused.Store(false)
	return nil
}

func (c *Consumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.transport.forget("", c.id)
	return nil
}
