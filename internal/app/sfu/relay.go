package sfu

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
)

// Relay is one producer together with the ordered set of its consumers.
type Relay struct {
	ProducerID string
	Kind       domain.MediaKind
	Owner      *app.Session
	Room       domain.RoomName

	seq    uint64
	engine core.Producer
	closed atomic.Bool

	mu        sync.RWMutex
	consumers []*Consumer
}

func newRelay(ep core.Producer, owner *app.Session, seq uint64) *Relay {
	return &Relay{
		ProducerID: ep.ID(),
		Kind:       ep.Kind(),
		Owner:      owner,
		Room:       owner.Room(),
		seq:        seq,
		engine:     ep,
	}
}

func (r *Relay) State() domain.ProducerState {
	if r.closed.Load() {
		return domain.ProducerClosed
	}
	return domain.ProducerActive
}

// addConsumer fails once the relay is closed, so a late consumer cannot outlive it.
func (r *Relay) addConsumer(c *Consumer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return false
	}
	r.consumers = append(r.consumers, c)
	return true
}

func (r *Relay) removeConsumer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumers = slices.DeleteFunc(r.consumers, func(c *Consumer) bool { return c.ID == id })
}

// Consumers returns a snapshot in subscription order.
func (r *Relay) Consumers() []*Consumer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.consumers)
}

// markClosed flips the relay to closed and hands back the consumers to cascade to.
func (r *Relay) markClosed() ([]*Consumer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed.CompareAndSwap(false, true) {
		return nil, false
	}
	out := r.consumers
	r.consumers = nil
	return out, true
}
