package app

import (
	"sync"
	"time"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
)

// Transport tracks the negotiation state of one engine transport.
// Every close path converges on Close, which runs once.
type Transport struct {
	ID   string
	Role domain.TransportRole
	SID  core.SessionID

	engine core.Transport

	mu      sync.Mutex
	state   domain.TransportState
	reason  string
	timer   *time.Timer
	onClose []func(reason string)
}

func newTransport(sid core.SessionID, role domain.TransportRole) *Transport {
	return &Transport{SID: sid, Role: role, state: domain.TransportRequested}
}

// created binds the engine transport once the engine call returned.
func (t *Transport) created(et core.Transport) {
	t.mu.Lock()
	t.engine = et
	t.ID = et.ID()
	t.state = domain.TransportCreated
	t.mu.Unlock()
}

func (t *Transport) Engine() core.Transport { return t.engine }

func (t *Transport) State() domain.TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// CloseReason is empty until the transport is closed.
func (t *Transport) CloseReason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

func (t *Transport) Descriptor() domain.TransportDescriptor {
	return domain.TransportDescriptor{
		ID:             t.ID,
		IceParameters:  t.engine.IceParameters(),
		IceCandidates:  t.engine.IceCandidates(),
		DtlsParameters: t.engine.DtlsParameters(),
	}
}

// OnClose registers fn to run after the transport closes. Registering on a
// closed transport runs fn right away.
func (t *Transport) OnClose(fn func(reason string)) {
	t.mu.Lock()
	if t.state == domain.TransportClosed {
		reason := t.reason
		t.mu.Unlock()
		fn(reason)
		return
	}
	t.onClose = append(t.onClose, fn)
	t.mu.Unlock()
}

func (t *Transport) armTimeout(d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == domain.TransportClosed || d <= 0 {
		return
	}
	t.timer = time.AfterFunc(d, fire)
}

// ClosedError reports why an operation hit a closed transport.
func (t *Transport) ClosedError() error {
	if t.CloseReason() == domain.ReasonTimeout {
		return domain.Errorf(domain.KindTimeout, "%s transport closed: negotiation timed out", t.Role)
	}
	return domain.Errorf(domain.KindInvalidState, "%s transport closed", t.Role)
}

func (t *Transport) beginConnect() error {
	t.mu.Lock()
	state := t.state
	if state == domain.TransportCreated || state == domain.TransportConnecting {
		t.state = domain.TransportConnecting
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if state == domain.TransportClosed {
		return t.ClosedError()
	}
	return domain.Errorf(domain.KindInvalidState, "%s transport is %s", t.Role, state)
}

// abortConnect returns a failed connect to Created so the peer can retry.
func (t *Transport) abortConnect() {
	t.mu.Lock()
	if t.state == domain.TransportConnecting {
		t.state = domain.TransportCreated
	}
	t.mu.Unlock()
}

func (t *Transport) markConnected() error {
	t.mu.Lock()
	if t.state == domain.TransportClosed {
		t.mu.Unlock()
		return t.ClosedError()
	}
	t.state = domain.TransportConnected
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
	return nil
}

// Close is idempotent and reports whether this call closed the transport.
func (t *Transport) Close(reason string) bool {
	t.mu.Lock()
	if t.state == domain.TransportClosed {
		t.mu.Unlock()
		return false
	}
	t.state = domain.TransportClosed
	t.reason = reason
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	hooks := t.onClose
	t.onClose = nil
	et := t.engine
	t.mu.Unlock()

	if et != nil {
		_ = et.Close()
	}
	for _, fn := range hooks {
		fn(reason)
	}
	return true
}
