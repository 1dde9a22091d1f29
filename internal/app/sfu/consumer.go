package sfu

import (
	"sync/atomic"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
)

// Consumer is one subscriber's view of a producer.
type Consumer struct {
	ID         string
	ProducerID string
	Kind       domain.MediaKind
	Owner      *app.Session

	engine core.Consumer
	relay  *Relay
	state  atomic.Int32 // zero is ConsumerPaused
}

func newConsumer(ec core.Consumer, owner *app.Session, relay *Relay) *Consumer {
	return &Consumer{
		ID:         ec.ID(),
		ProducerID: ec.ProducerID(),
		Kind:       ec.Kind(),
		Owner:      owner,
		engine:     ec,
		relay:      relay,
	}
}

func (c *Consumer) State() domain.ConsumerState {
	return domain.ConsumerState(c.state.Load())
}

func (c *Consumer) markResumed() bool {
	return c.state.CompareAndSwap(int32(domain.ConsumerPaused), int32(domain.ConsumerResumed))
}

func (c *Consumer) markPaused() {
	c.state.CompareAndSwap(int32(domain.ConsumerResumed), int32(domain.ConsumerPaused))
}

// markClosed reports whether this call closed the consumer.
func (c *Consumer) markClosed() bool {
	return c.state.Swap(int32(domain.ConsumerClosed)) != int32(domain.ConsumerClosed)
}

// Params is what the subscriber needs to build its local consumer.
type Params struct {
	ID            string               `json:"id"`
	ProducerID    string               `json:"producerId"`
	Kind          domain.MediaKind     `json:"kind"`
	RtpParameters domain.RtpParameters `json:"rtpParameters"`
}

func (c *Consumer) Params() Params {
	return Params{
		ID:            c.ID,
		ProducerID:    c.ProducerID,
		Kind:          c.Kind,
		RtpParameters: c.engine.RtpParameters(),
	}
}
